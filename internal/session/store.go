// Package session persists the client's identity and last known death state
// across restarts. All staleness rules are enforced here, at the read
// boundary, so callers never see a record they should not replay.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/storage"
)

// Storage keys.
const (
	KeySessionID    = "sessionId"
	KeyDeathRecord  = "playerDeathState"
	KeyLastPosition = "lastPosition"
)

const (
	// MaxDeathAge is how old a persisted death record may be before it is
	// discarded instead of replayed.
	MaxDeathAge = 5 * time.Second

	idPrefix = "session-"
)

// DeathRecord is the persisted {isDead, deathTime, position} blob.
// DeathTime is Unix milliseconds.
type DeathRecord struct {
	IsDead    bool               `json:"isDead"`
	DeathTime int64              `json:"deathTime"`
	Position  *protocol.Position `json:"position,omitempty"`
}

// DiedAt returns DeathTime as a time.Time, or the zero time when unset.
func (r DeathRecord) DiedAt() time.Time {
	if r.DeathTime <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.DeathTime)
}

// Config configures a Store. KV is required.
type Config struct {
	KV     storage.KV
	Logger zerolog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Store is the persistent session store.
type Store struct {
	kv    storage.KV
	log   zerolog.Logger
	now   func() time.Time
	newID func() string

	faults metric.Int64Counter

	mu        sync.Mutex
	sessionID string
}

// New creates a Store over cfg.KV.
func New(cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return idPrefix + uuid.NewString() }
	}

	faults, err := meter().Int64Counter(
		"session.storage.faults",
		metric.WithDescription("Persisted values that were missing, corrupt or unwritable"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("creating storage fault counter")
	}

	return &Store{
		kv:     cfg.KV,
		log:    cfg.Logger.With().Str("component", "session").Logger(),
		now:    cfg.Now,
		newID:  cfg.NewID,
		faults: faults,
	}
}

// SessionID returns the durable session identity, creating and persisting a
// new one the first time. A backend failure never prevents a usable id from
// being returned; the id is then only stable for this Store.
func (s *Store) SessionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID != "" {
		return s.sessionID
	}

	id, ok, err := s.kv.Get(ctx, KeySessionID)
	switch {
	case err != nil:
		s.fault(ctx, "read", KeySessionID, err)
	case ok && id != "":
		s.sessionID = id
		return id
	}

	id = s.newID()
	if err := s.kv.Set(ctx, KeySessionID, id); err != nil {
		s.fault(ctx, "write", KeySessionID, err)
	}
	s.sessionID = id
	s.log.Info().Str("session_id", id).Msg("Created new session identity")
	return id
}

// ResetSessionID discards the stored identity and persists a fresh one.
func (s *Store) ResetSessionID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if err := s.kv.Set(ctx, KeySessionID, id); err != nil {
		return "", fmt.Errorf("reset session id: %w", err)
	}
	s.sessionID = id
	return id, nil
}

// SaveDeathRecord persists rec, replacing any previous record.
func (s *Store) SaveDeathRecord(ctx context.Context, rec DeathRecord) error {
	return s.saveJSON(ctx, KeyDeathRecord, rec)
}

// LoadDeathRecord returns the persisted death record if one exists and is
// still fresh. Stale, empty or corrupt records are erased and reported as
// absent.
func (s *Store) LoadDeathRecord(ctx context.Context) (DeathRecord, bool) {
	var rec DeathRecord
	if !s.loadJSON(ctx, KeyDeathRecord, &rec) {
		return DeathRecord{}, false
	}

	if !rec.IsDead {
		s.erase(ctx, KeyDeathRecord)
		return DeathRecord{}, false
	}

	diedAt := rec.DiedAt()
	if diedAt.IsZero() || s.now().Sub(diedAt) > MaxDeathAge {
		s.log.Debug().Int64("death_time", rec.DeathTime).Msg("Discarding stale death record")
		s.erase(ctx, KeyDeathRecord)
		return DeathRecord{}, false
	}
	return rec, true
}

// ClearDeathRecord removes the persisted death record.
func (s *Store) ClearDeathRecord(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyDeathRecord); err != nil {
		s.fault(ctx, "write", KeyDeathRecord, err)
		return fmt.Errorf("clear death record: %w", err)
	}
	return nil
}

// SaveLastPosition persists the position used to restore the view on restart.
func (s *Store) SaveLastPosition(ctx context.Context, pos protocol.Position) error {
	return s.saveJSON(ctx, KeyLastPosition, pos)
}

// LoadLastPosition returns the last persisted position.
func (s *Store) LoadLastPosition(ctx context.Context) (protocol.Position, bool) {
	var pos protocol.Position
	if !s.loadJSON(ctx, KeyLastPosition, &pos) {
		return protocol.Position{}, false
	}
	return pos, true
}

func (s *Store) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		s.fault(ctx, "write", key, err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// loadJSON reports whether key held a decodable value. Corrupt values are
// erased.
func (s *Store) loadJSON(ctx context.Context, key string, v any) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.fault(ctx, "read", key, err)
		return false
	}
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.fault(ctx, "corrupt", key, err)
		s.erase(ctx, key)
		return false
	}
	return true
}

func (s *Store) erase(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, key); err != nil {
		s.fault(ctx, "write", key, err)
	}
}

func (s *Store) fault(ctx context.Context, reason, key string, err error) {
	s.log.Warn().Err(err).Str("key", key).Str("reason", reason).Msg("Session storage fault")
	if s.faults != nil {
		s.faults.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("key", key),
		))
	}
}
