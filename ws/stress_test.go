package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/arenatest"
	"github.com/luciancaetano/arenanet/internal/protocol"
)

// TestStressManyClients connects many clients at once, drops them all and
// checks that every one of them comes back with its own session.
func TestStressManyClients(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const numClients = 100

	srv := arenatest.New(t)
	srv.Handle(func(p *arenatest.Peer, m protocol.Message) {
		if init, ok := m.(protocol.SessionInit); ok {
			_ = p.Send(protocol.PlayerInit{
				PlayerID: init.SessionID,
				Position: &protocol.Position{X: 1, Y: 1},
				Health:   100,
			})
		}
	})

	var (
		wg      sync.WaitGroup
		failed  atomic.Int64
		clients = make([]arenanet.GameClient, numClients)
	)
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := NewClient(context.Background(), Config{ServerURL: srv.URL(), Reconnect: fastReconnect(20)})
			if err != nil {
				failed.Add(1)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()
	require.Zero(t, failed.Load())
	t.Cleanup(func() {
		for _, c := range clients {
			_ = c.Close()
		}
	})

	allReady := func() bool {
		for _, c := range clients {
			if !c.IsConnected() || !c.State().Initialized {
				return false
			}
		}
		return true
	}
	require.Eventually(t, allReady, 10*time.Second, 20*time.Millisecond)

	ids := make(map[string]bool, numClients)
	for _, c := range clients {
		ids[c.SessionID()] = true
		assert.Equal(t, c.SessionID(), c.State().PlayerID)
	}
	assert.Len(t, ids, numClients, "session ids are unique")

	srv.DropAll()
	require.Eventually(t, func() bool {
		return len(srv.ReceivedKind(protocol.KindSessionInit)) >= 2*numClients
	}, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, allReady, 10*time.Second, 20*time.Millisecond)

	var sent atomic.Int64
	for _, c := range clients {
		wg.Add(1)
		go func(c arenanet.GameClient) {
			defer wg.Done()
			if c.SendPosition(arenanet.Position{X: 2, Y: 2}) {
				sent.Add(1)
			}
		}(c)
	}
	wg.Wait()

	t.Logf("reconnected %d clients, %d positions sent", numClients, sent.Load())
	assert.Equal(t, int64(numClients), sent.Load())
}
