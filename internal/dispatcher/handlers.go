package dispatcher

import (
	"time"

	"github.com/luciancaetano/arenanet/internal/protocol"
)

// Handlers holds one optional callback per inbound kind. Callbacks run
// after the State has been updated, on the goroutine calling Handle.
type Handlers struct {
	SessionAck       func(protocol.SessionAck)
	PlayerInit       func(protocol.PlayerInit)
	PositionUpdate   func(protocol.PositionUpdate)
	HealthUpdate     func(protocol.HealthUpdate)
	PlayerDeath      func(protocol.PlayerDeath)
	PlayerRespawn    func(protocol.PlayerRespawn)
	WeaponPickup     func(protocol.WeaponPickup)
	WeaponSpawn      func(protocol.WeaponSpawn)
	WeaponDespawn    func(protocol.WeaponDespawn)
	BulletUpdate     func(protocol.BulletUpdate)
	BulletHit        func(protocol.BulletHit)
	PowerUpSpawn     func(protocol.PowerUpSpawn)
	PowerUpPickup    func(protocol.PowerUpPickup)
	Teleport         func(protocol.Teleport)
	PlayerDisconnect func(protocol.PlayerDisconnect)
	LobbyUpdate      func(protocol.LobbyUpdate)
	MatchStarted     func(protocol.MatchStarted)
}

// EntityRenderer draws other entities at server-reported positions.
type EntityRenderer interface {
	UpdateEntity(id string, pos protocol.Position, color int)
}

// HUD shows transient local player status.
type HUD interface {
	ShowPowerUp(kind string)
	HidePowerUp(kind string)
	ShowRespawnCountdown(remaining time.Duration)
}

type nopRenderer struct{}

func (nopRenderer) UpdateEntity(string, protocol.Position, int) {}

type nopHUD struct{}

func (nopHUD) ShowPowerUp(string)                 {}
func (nopHUD) HidePowerUp(string)                 {}
func (nopHUD) ShowRespawnCountdown(time.Duration) {}
