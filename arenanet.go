package arenanet

import (
	"time"

	"github.com/luciancaetano/arenanet/internal/dispatcher"
	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/weapon"
	"github.com/luciancaetano/arenanet/internal/websocket"
)

type (
	// Position is a world position with a facing angle in radians.
	Position = protocol.Position
	// Point is a cursor target.
	Point = protocol.Point
	// SessionState is a snapshot of the server-confirmed local player state.
	SessionState = dispatcher.State
	// Handlers holds one optional callback per server message kind.
	Handlers = dispatcher.Handlers
	// Trigger is the input state sampled for one fire attempt.
	Trigger = weapon.Trigger
	// FireResult is the outcome of a fire attempt.
	FireResult = weapon.Result
	// ConnectionState is the lifecycle state of the server connection.
	ConnectionState = websocket.ConnectionState
	// ConnectionEvent describes one connection state transition.
	ConnectionEvent = websocket.StateEvent
)

// Server messages delivered to Handlers.
type (
	SessionAck       = protocol.SessionAck
	PlayerInit       = protocol.PlayerInit
	PositionUpdate   = protocol.PositionUpdate
	HealthUpdate     = protocol.HealthUpdate
	PlayerDeath      = protocol.PlayerDeath
	PlayerRespawn    = protocol.PlayerRespawn
	WeaponPickup     = protocol.WeaponPickup
	WeaponSpawn      = protocol.WeaponSpawn
	WeaponDespawn    = protocol.WeaponDespawn
	BulletUpdate     = protocol.BulletUpdate
	BulletHit        = protocol.BulletHit
	PowerUpSpawn     = protocol.PowerUpSpawn
	PowerUpPickup    = protocol.PowerUpPickup
	Teleport         = protocol.Teleport
	PlayerDisconnect = protocol.PlayerDisconnect
	LobbyUpdate      = protocol.LobbyUpdate
	MatchStarted     = protocol.MatchStarted
)

// GameClient is the gameplay-facing client of the arena server.
//
// Every send method is fire-and-forget: it returns false when the frame
// was refused, either because the connection is not open or because the
// session state forbids it, and nothing is ever queued for later.
//
// Example usage:
//
//	import "github.com/luciancaetano/arenanet/ws"
//
//	client, err := ws.NewClient(ctx, ws.Config{ServerURL: "ws://localhost:8080/ws"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetHandlers(arenanet.Handlers{
//	    PlayerDeath: func(m arenanet.PlayerDeath) { ... },
//	})
//	client.SendPosition(arenanet.Position{X: 10, Y: 20})
type GameClient interface {
	// SessionID returns the durable session identity announced on every
	// connection.
	SessionID() string

	// State returns a copy of the local player state.
	State() SessionState

	Connection

	// SetHandlers replaces the per-kind message callbacks.
	SetHandlers(h Handlers)

	// SendPosition reports the local player's position. Requires an
	// initialized, living player and is throttled to the server tick.
	SendPosition(pos Position) bool

	// SendShoot sends a shot without consulting fire control. Prefer Fire.
	SendShoot(rotation float64) bool

	// Fire gates a shot through the current weapon's fire control and sends
	// it when admitted.
	Fire(now time.Time, t Trigger, rotation float64) FireResult

	// SendTeleport asks the server to teleport toward cursor. Requires a
	// living player holding the teleportation power-up, and uses it up.
	SendTeleport(cursor Point) bool

	// JoinMatch and StartMatch require an initialized player and no match
	// in progress.
	JoinMatch() bool
	StartMatch() bool

	// Close shuts the client down and releases its session storage.
	Close() error
}

// Connection is the connection lifecycle part of GameClient.
type Connection interface {
	// ConnectionState returns the current connection state.
	ConnectionState() ConnectionState

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// OnConnectionChange registers fn for connection state transitions,
	// including the terminal gave-up state.
	OnConnectionChange(fn func(ConnectionEvent))

	// Reconnect drops the current connection and dials again with the retry
	// counter reset. It also recovers from the gave-up state.
	Reconnect()
}

// Fire results.
const (
	FireAdmitted    = weapon.Admitted
	FireIdle        = weapon.RejectedIdle
	FireEdgeSeen    = weapon.RejectedEdgeSeen
	FireCadence     = weapon.RejectedCadence
	FireClock       = weapon.RejectedClock
	FireUnavailable = weapon.RejectedUnavailable
)
