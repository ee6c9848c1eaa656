package dispatcher

import (
	"time"

	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/weapon"
)

// Server defaults for a freshly connected player.
const (
	DefaultHealth = 100
	DefaultWeapon = weapon.Pistol

	// MaxHealth bounds every health value taken from the wire.
	MaxHealth = 100

	// RespawnDelay is how long the server keeps a player dead.
	RespawnDelay = 3 * time.Second
)

// Power-up kinds as they appear in powerup_pickup. A player holds at most
// one at a time.
const (
	PowerUpTeleport    = "teleportation"
	PowerUpForceField  = "force_field"
	PowerUpHealthRegen = "health_regen"
)

var powerUpKinds = []string{PowerUpTeleport, PowerUpForceField, PowerUpHealthRegen}

// State mirrors the server-confirmed facts about the local player. Only the
// Dispatcher writes it; everyone else works on copies.
type State struct {
	PlayerID      string
	Health        int
	CurrentWeapon weapon.Kind
	IsDead        bool
	// DeathTime is zero unless the player is dead.
	DeathTime time.Time

	LastKnownPosition protocol.Position
	HasPosition       bool

	MatchActive bool
	// Initialized is set by the first player_init that carries a position.
	Initialized  bool
	SessionAcked bool

	Color             int
	TeleportAvailable bool
	ForceFieldActive  bool
	HealthRegenActive bool
}

func newState() State {
	return State{
		Health:        DefaultHealth,
		CurrentWeapon: DefaultWeapon,
	}
}

// CanAct reports whether movement, shoot and teleport frames may be sent.
func (s State) CanAct() bool {
	return s.Initialized && !s.IsDead
}

// CanJoin reports whether join_match and start_match frames may be sent.
func (s State) CanJoin() bool {
	return s.Initialized && !s.MatchActive
}

// IsLocal reports whether playerID names the local player.
func (s State) IsLocal(playerID string) bool {
	return s.PlayerID != "" && playerID == s.PlayerID
}

// RespawnIn returns how long until the server respawns the local player, or
// zero when the player is alive or the delay has passed.
func (s State) RespawnIn(now time.Time) time.Duration {
	if !s.IsDead || s.DeathTime.IsZero() {
		return 0
	}
	left := RespawnDelay - now.Sub(s.DeathTime)
	if left < 0 {
		return 0
	}
	return left
}

// moveTo sets the last known position and reports whether it changed.
func (s *State) moveTo(pos protocol.Position) bool {
	if s.HasPosition && s.LastKnownPosition == pos {
		return false
	}
	s.LastKnownPosition = pos
	s.HasPosition = true
	return true
}

// ActivePowerUps returns the kinds of the power-ups the player holds.
func (s State) ActivePowerUps() []string {
	var out []string
	if s.TeleportAvailable {
		out = append(out, PowerUpTeleport)
	}
	if s.ForceFieldActive {
		out = append(out, PowerUpForceField)
	}
	if s.HealthRegenActive {
		out = append(out, PowerUpHealthRegen)
	}
	return out
}

// grantPowerUp drops every held power-up and grants kind. Unknown kinds only
// clear. It reports whether kind was known.
func (s *State) grantPowerUp(kind string) bool {
	s.TeleportAvailable = false
	s.ForceFieldActive = false
	s.HealthRegenActive = false

	switch kind {
	case PowerUpTeleport:
		s.TeleportAvailable = true
	case PowerUpForceField:
		s.ForceFieldActive = true
	case PowerUpHealthRegen:
		s.HealthRegenActive = true
	default:
		return false
	}
	return true
}

func clampHealth(h int) int {
	return max(0, min(h, MaxHealth))
}
