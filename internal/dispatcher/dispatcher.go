// Package dispatcher decodes inbound frames, keeps the local player's State
// in step with the server and routes every message to its callback.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/session"
	"github.com/luciancaetano/arenanet/internal/weapon"
)

// Persister is the part of the session store the Dispatcher writes to.
type Persister interface {
	SaveDeathRecord(ctx context.Context, rec session.DeathRecord) error
	LoadDeathRecord(ctx context.Context) (session.DeathRecord, bool)
	ClearDeathRecord(ctx context.Context) error
	SaveLastPosition(ctx context.Context, pos protocol.Position) error
	LoadLastPosition(ctx context.Context) (protocol.Position, bool)
}

// Config configures a Dispatcher. Every field is optional.
type Config struct {
	Store    Persister
	Renderer EntityRenderer
	HUD      HUD
	Handlers Handlers
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Dispatcher is the single writer of State.
type Dispatcher struct {
	ctx      context.Context
	store    Persister
	renderer EntityRenderer
	hud      HUD
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	state    State
	handlers Handlers

	decodeErrors metric.Int64Counter
	handled      metric.Int64Counter
}

// New creates a Dispatcher. When a fresh death record was persisted by a
// previous run, the State starts dead and the HUD is shown the remaining
// respawn countdown.
func New(ctx context.Context, cfg Config) *Dispatcher {
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.HUD == nil {
		cfg.HUD = nopHUD{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		ctx:      ctx,
		store:    cfg.Store,
		renderer: cfg.Renderer,
		hud:      cfg.HUD,
		log:      cfg.Logger.With().Str("component", "dispatcher").Logger(),
		now:      cfg.Now,
		state:    newState(),
		handlers: cfg.Handlers,
	}

	var err error
	if d.decodeErrors, err = meter().Int64Counter("dispatcher.decode_errors",
		metric.WithDescription("Inbound frames discarded by reason")); err != nil {
		d.log.Warn().Err(err).Msg("creating decode error counter")
	}
	if d.handled, err = meter().Int64Counter("dispatcher.messages",
		metric.WithDescription("Inbound messages handled by kind")); err != nil {
		d.log.Warn().Err(err).Msg("creating message counter")
	}

	d.restore()
	return d
}

func (d *Dispatcher) restore() {
	if d.store == nil {
		return
	}

	if pos, ok := d.store.LoadLastPosition(d.ctx); ok && pos.Finite() {
		d.state.LastKnownPosition = pos
		d.state.HasPosition = true
	}

	rec, ok := d.store.LoadDeathRecord(d.ctx)
	if !ok {
		return
	}
	d.state.IsDead = true
	d.state.Health = 0
	d.state.DeathTime = rec.DiedAt()
	if rec.Position != nil {
		d.state.LastKnownPosition = *rec.Position
		d.state.HasPosition = true
	}

	left := d.state.RespawnIn(d.now())
	d.log.Info().Dur("respawn_in", left).Msg("Restored death state")
	if left > 0 {
		d.hud.ShowRespawnCountdown(left)
	}
}

// Snapshot returns a copy of the current State.
func (d *Dispatcher) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetHandlers replaces every callback at once.
func (d *Dispatcher) SetHandlers(h Handlers) {
	d.mu.Lock()
	d.handlers = h
	d.mu.Unlock()
}

// Handle decodes raw and applies it. Undecodable frames are logged and
// dropped; Handle never fails.
func (d *Dispatcher) Handle(raw []byte) {
	m, err := protocol.Decode(raw)
	if err != nil {
		d.discard(raw, err)
		return
	}
	d.Apply(m)
}

func (d *Dispatcher) discard(raw []byte, err error) {
	reason := "unknown"
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		reason = de.Reason.String()
	}

	switch {
	case errors.Is(err, protocol.ErrEmpty):
		d.log.Debug().Msg("Skipping empty frame")
	case errors.Is(err, protocol.ErrUnknownKind):
		d.log.Warn().Str("type", de.Kind).Msg("Unhandled message type")
	default:
		ev := d.log.Warn().Err(err).Int("size", len(raw))
		if len(raw) <= 256 {
			ev = ev.Bytes("raw", raw)
		}
		ev.Msg("Invalid message")
	}

	if d.decodeErrors != nil {
		d.decodeErrors.Add(d.ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// Apply updates State for a decoded message, performs its persisted side
// effects and invokes its callback.
func (d *Dispatcher) Apply(m protocol.Message) {
	if m == nil {
		return
	}
	if d.handled != nil {
		d.handled.Add(d.ctx, 1, metric.WithAttributes(attribute.String("kind", string(m.Kind()))))
	}

	d.mu.RLock()
	h := d.handlers
	d.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("type", string(m.Kind())).Msg("Message handler panicked")
		}
	}()

	switch msg := m.(type) {
	case protocol.SessionAck:
		d.update(func(s *State) { s.SessionAcked = true })
		call(h.SessionAck, msg)

	case protocol.PlayerInit:
		d.playerInit(msg)
		call(h.PlayerInit, msg)
		if msg.IsDead {
			death := protocol.PlayerDeath{PlayerID: msg.PlayerID, DeathTime: msg.DeathTime}
			if msg.Position != nil {
				death.Position = *msg.Position
			}
			call(h.PlayerDeath, death)
		}

	case protocol.PositionUpdate:
		d.renderer.UpdateEntity(msg.PlayerID, msg.Position, msg.Color)
		call(h.PositionUpdate, msg)

	case protocol.HealthUpdate:
		d.update(func(s *State) {
			if s.IsLocal(msg.PlayerID) {
				s.Health = clampHealth(msg.Health)
			}
		})
		call(h.HealthUpdate, msg)

	case protocol.PlayerDeath:
		d.playerDeath(msg)
		call(h.PlayerDeath, msg)

	case protocol.PlayerRespawn:
		d.playerRespawn(msg)
		call(h.PlayerRespawn, msg)

	case protocol.WeaponPickup:
		d.update(func(s *State) {
			if s.IsLocal(msg.PlayerID) {
				s.CurrentWeapon = weapon.Resolve(msg.Weapon)
			}
		})
		call(h.WeaponPickup, msg)

	case protocol.PowerUpPickup:
		d.powerUpPickup(msg)
		call(h.PowerUpPickup, msg)

	case protocol.MatchStarted:
		d.update(func(s *State) { s.MatchActive = true })
		call(h.MatchStarted, msg)

	case protocol.WeaponSpawn:
		call(h.WeaponSpawn, msg)
	case protocol.WeaponDespawn:
		call(h.WeaponDespawn, msg)
	case protocol.BulletUpdate:
		call(h.BulletUpdate, msg)
	case protocol.BulletHit:
		call(h.BulletHit, msg)
	case protocol.PowerUpSpawn:
		call(h.PowerUpSpawn, msg)
	case protocol.Teleport:
		call(h.Teleport, msg)
	case protocol.PlayerDisconnect:
		call(h.PlayerDisconnect, msg)
	case protocol.LobbyUpdate:
		call(h.LobbyUpdate, msg)

	default:
		d.log.Warn().Str("type", string(m.Kind())).Msg("Not an inbound message")
	}
}

func (d *Dispatcher) playerInit(msg protocol.PlayerInit) {
	var deathTime time.Time
	if msg.IsDead && msg.DeathTime > 0 {
		deathTime = time.UnixMilli(msg.DeathTime)
	}

	var moved bool
	s := d.update(func(s *State) {
		s.PlayerID = msg.PlayerID
		s.Health = clampHealth(msg.Health)
		s.CurrentWeapon = weapon.Resolve(msg.Weapon)
		s.IsDead = msg.IsDead
		s.DeathTime = deathTime
		s.Color = msg.Color
		s.TeleportAvailable = msg.TeleportAvailable
		s.ForceFieldActive = msg.ForceFieldActive
		s.HealthRegenActive = msg.HealthRegenActive
		if msg.Position != nil {
			moved = s.moveTo(*msg.Position)
			s.Initialized = true
		}
	})

	if moved {
		d.saveLastPosition(s.LastKnownPosition)
	}
	for _, kind := range s.ActivePowerUps() {
		d.hud.ShowPowerUp(kind)
	}

	if !msg.IsDead {
		d.clearDeathRecord()
		return
	}
	d.saveDeathRecord(session.DeathRecord{
		IsDead:    true,
		DeathTime: msg.DeathTime,
		Position:  msg.Position,
	})
	if left := s.RespawnIn(d.now()); left > 0 {
		d.hud.ShowRespawnCountdown(left)
	}
}

func (d *Dispatcher) playerDeath(msg protocol.PlayerDeath) {
	var local, moved bool
	s := d.update(func(s *State) {
		if !s.IsLocal(msg.PlayerID) {
			return
		}
		local = true
		s.IsDead = true
		s.Health = 0
		s.DeathTime = time.UnixMilli(msg.DeathTime)
		moved = s.moveTo(msg.Position)
	})
	if !local {
		return
	}

	if moved {
		d.saveLastPosition(s.LastKnownPosition)
	}
	pos := msg.Position
	d.saveDeathRecord(session.DeathRecord{
		IsDead:    true,
		DeathTime: msg.DeathTime,
		Position:  &pos,
	})
	d.hud.ShowRespawnCountdown(RespawnDelay)
}

func (d *Dispatcher) playerRespawn(msg protocol.PlayerRespawn) {
	var local, moved bool
	s := d.update(func(s *State) {
		if !s.IsLocal(msg.PlayerID) {
			return
		}
		local = true
		s.IsDead = false
		s.Health = clampHealth(msg.Health)
		s.CurrentWeapon = weapon.Resolve(msg.Weapon)
		s.DeathTime = time.Time{}
		moved = s.moveTo(msg.Position)
	})
	if !local {
		return
	}

	if moved {
		d.saveLastPosition(s.LastKnownPosition)
	}
	d.clearDeathRecord()
}

func (d *Dispatcher) powerUpPickup(msg protocol.PowerUpPickup) {
	var local, known bool
	d.update(func(s *State) {
		if !s.IsLocal(msg.PlayerID) {
			return
		}
		local = true
		known = s.grantPowerUp(msg.PowerUp)
	})
	if !local {
		return
	}

	for _, kind := range powerUpKinds {
		d.hud.HidePowerUp(kind)
	}
	if known {
		d.hud.ShowPowerUp(msg.PowerUp)
	} else {
		d.log.Warn().Str("powerup", msg.PowerUp).Msg("Unknown power-up")
	}
}

// ConsumeTeleport marks the held teleport as used and hides its indicator.
// It reports false when no teleport was available.
func (d *Dispatcher) ConsumeTeleport() bool {
	var had bool
	d.update(func(s *State) {
		had = s.TeleportAvailable
		s.TeleportAvailable = false
	})
	if had {
		d.hud.HidePowerUp(PowerUpTeleport)
	}
	return had
}

// update applies fn under the lock and returns the resulting State.
func (d *Dispatcher) update(fn func(*State)) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state)
	return d.state
}

func (d *Dispatcher) saveDeathRecord(rec session.DeathRecord) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveDeathRecord(d.ctx, rec); err != nil {
		d.log.Warn().Err(err).Msg("Failed to persist death record")
	}
}

func (d *Dispatcher) clearDeathRecord() {
	if d.store == nil {
		return
	}
	if err := d.store.ClearDeathRecord(d.ctx); err != nil {
		d.log.Warn().Err(err).Msg("Failed to clear death record")
	}
}

func (d *Dispatcher) saveLastPosition(pos protocol.Position) {
	if d.store == nil || !pos.Finite() {
		return
	}
	if err := d.store.SaveLastPosition(d.ctx, pos); err != nil {
		d.log.Warn().Err(err).Msg("Failed to persist last position")
	}
}

func call[T protocol.Message](fn func(T), m T) {
	if fn != nil {
		fn(m)
	}
}
