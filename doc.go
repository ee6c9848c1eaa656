// Package arenanet is the client side of the arena shooter's realtime
// protocol.
//
// It keeps a WebSocket connection to the game server alive across network
// failures, remembers the player's session across restarts, mirrors the
// server-confirmed state of the local player and gates weapon fire so the
// client never shoots faster than the server accepts.
//
// # Architecture
//
// Every message is a JSON object with a required "type" field. The
// connection manager dials the server, announces the persisted session id in
// a session_init frame on every new connection and reconnects with
// exponential backoff when the connection is lost. After a bounded number of
// failed retries it gives up and reports the terminal state; calling
// Reconnect starts over.
//
// Inbound frames are decoded and handled one at a time, in arrival order.
// The dispatcher updates the session state, persists death records so that
// a restart within the respawn window shows the player dead, and invokes the
// registered callback for the message kind. Protocol noise (empty frames,
// malformed JSON, unknown types) is logged and dropped.
//
// Outbound sends are guarded by the session state: movement, shots and
// teleports need an initialized living player, match commands need an
// initialized player outside a running match. A teleport also needs the
// teleportation power-up, which it uses up.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/arenanet"
//	    "github.com/luciancaetano/arenanet/ws"
//	)
//
//	client, err := ws.NewClient(ctx, ws.Config{
//	    ServerURL:   "ws://localhost:8080/ws",
//	    StoragePath: "arenaclient.db",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnConnectionChange(func(ev arenanet.ConnectionEvent) {
//	    if ev.New == ws.GaveUp {
//	        // offer the player a retry button that calls client.Reconnect()
//	    }
//	})
//
//	// every frame
//	client.SendPosition(arenanet.Position{X: x, Y: y, Rotation: r})
//	client.Fire(time.Now(), arenanet.Trigger{Holding: held, NewPress: pressed, PressedAt: clickAt}, r)
//
// # Fire Control
//
// Each weapon has a cadence: sustained weapons fire while the trigger is held
// with a minimum interval between shots, single-interval weapons fire at most
// once per interval on a new press, and counted-window weapons admit N
// presses per sliding window. Picking up a weapon discards the previous
// weapon's shot history.
//
// # Configuration
//
// The arenaclient command reads arenaclient.yaml and ARENA_* environment
// variables; ARENA_SERVER_URL is the only required setting.
package arenanet
