package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/storage/memory"
)

// brokenKV fails every operation.
type brokenKV struct{}

var errBackend = errors.New("disk on fire")

func (brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, errBackend }
func (brokenKV) Set(context.Context, string, string) error         { return errBackend }
func (brokenKV) Delete(context.Context, string) error              { return errBackend }
func (brokenKV) Close() error                                      { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store, *memory.Store, *fakeClock) {
	t.Helper()
	kv := memory.New()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	return New(Config{KV: kv, Logger: zerolog.Nop(), Now: clock.Now}), kv, clock
}

// TestSessionIDCreatedOnce tests that the identity is generated, persisted and reused
func TestSessionIDCreatedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, kv, _ := newTestStore(t)

	id := s.SessionID(ctx)
	assert.Regexp(t, `^session-[0-9a-f-]{36}$`, id)
	assert.Equal(t, id, s.SessionID(ctx), "SessionID must be idempotent")

	stored, ok, err := kv.Get(ctx, KeySessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, stored)

	// A second store over the same backend sees the same identity.
	again := New(Config{KV: kv})
	assert.Equal(t, id, again.SessionID(ctx))
}

// TestSessionIDReadsExisting tests that a previously stored identity wins
func TestSessionIDReadsExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := memory.New()
	require.NoError(t, kv.Set(ctx, KeySessionID, "session-old"))

	s := New(Config{KV: kv, NewID: func() string { t.Fatal("should not generate"); return "" }})
	assert.Equal(t, "session-old", s.SessionID(ctx))
}

// TestSessionIDFailsOpen tests that a broken backend still yields a stable id
func TestSessionIDFailsOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New(Config{KV: brokenKV{}, NewID: func() string { return "session-fixed" }})
	assert.Equal(t, "session-fixed", s.SessionID(ctx))
	assert.Equal(t, "session-fixed", s.SessionID(ctx))
}

func TestResetSessionID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, kv, _ := newTestStore(t)
	first := s.SessionID(ctx)

	second, err := s.ResetSessionID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, s.SessionID(ctx))

	stored, _, _ := kv.Get(ctx, KeySessionID)
	assert.Equal(t, second, stored)

	_, err = New(Config{KV: brokenKV{}}).ResetSessionID(ctx)
	assert.ErrorIs(t, err, errBackend)
}

// TestDeathRecordRoundTrip tests save, load and clear of a fresh record
func TestDeathRecordRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _, clock := newTestStore(t)
	rec := DeathRecord{
		IsDead:    true,
		DeathTime: clock.t.Add(-time.Second).UnixMilli(),
		Position:  &protocol.Position{X: 5, Y: 5},
	}
	require.NoError(t, s.SaveDeathRecord(ctx, rec))

	got, ok := s.LoadDeathRecord(ctx)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	require.NoError(t, s.ClearDeathRecord(ctx))
	_, ok = s.LoadDeathRecord(ctx)
	assert.False(t, ok)
}

// TestDeathRecordStaleness tests that old records are discarded and erased
func TestDeathRecordStaleness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rec       DeathRecord
		wantFound bool
	}{
		{"just died", DeathRecord{IsDead: true, DeathTime: -1}, true},
		{"at threshold", DeathRecord{IsDead: true, DeathTime: -5000}, true},
		{"past threshold", DeathRecord{IsDead: true, DeathTime: -5001}, false},
		{"years old", DeathRecord{IsDead: true, DeathTime: -3 * 365 * 24 * 3600 * 1000}, false},
		{"no death time", DeathRecord{IsDead: true}, false},
		{"not dead", DeathRecord{IsDead: false, DeathTime: -1}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			s, kv, clock := newTestStore(t)
			rec := tt.rec
			if rec.DeathTime < 0 {
				rec.DeathTime = clock.t.UnixMilli() + rec.DeathTime
			}
			require.NoError(t, s.SaveDeathRecord(ctx, rec))

			_, ok := s.LoadDeathRecord(ctx)
			assert.Equal(t, tt.wantFound, ok)

			_, stillStored, err := kv.Get(ctx, KeyDeathRecord)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, stillStored, "rejected records must be erased")
		})
	}
}

// TestDeathRecordCorrupt tests that garbage is treated as absence and erased
func TestDeathRecordCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, kv, _ := newTestStore(t)
	require.NoError(t, kv.Set(ctx, KeyDeathRecord, "{not json"))

	_, ok := s.LoadDeathRecord(ctx)
	assert.False(t, ok)

	_, stillStored, _ := kv.Get(ctx, KeyDeathRecord)
	assert.False(t, stillStored)
}

// TestBrokenBackendIsAbsence tests that read failures never surface
func TestBrokenBackendIsAbsence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New(Config{KV: brokenKV{}})

	_, ok := s.LoadDeathRecord(ctx)
	assert.False(t, ok)

	_, ok = s.LoadLastPosition(ctx)
	assert.False(t, ok)

	assert.ErrorIs(t, s.SaveDeathRecord(ctx, DeathRecord{IsDead: true}), errBackend)
	assert.ErrorIs(t, s.ClearDeathRecord(ctx), errBackend)
	assert.ErrorIs(t, s.SaveLastPosition(ctx, protocol.Position{}), errBackend)
}

func TestLastPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, kv, _ := newTestStore(t)
	_, ok := s.LoadLastPosition(ctx)
	assert.False(t, ok)

	want := protocol.Position{X: 12.5, Y: -3, Rotation: 1.1}
	require.NoError(t, s.SaveLastPosition(ctx, want))

	got, ok := s.LoadLastPosition(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)

	raw, _, _ := kv.Get(ctx, KeyLastPosition)
	assert.JSONEq(t, `{"x":12.5,"y":-3,"rotation":1.1}`, raw)
}
