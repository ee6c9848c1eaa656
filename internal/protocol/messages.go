package protocol

// Position is a world position with a facing angle in radians.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// Point is a bare 2D coordinate, used for cursor targets.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionAck confirms the server correlated the session_init.
type SessionAck struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id,omitempty"`
}

// PlayerInit carries the full local player state. Position is nil until the
// server has placed the player.
type PlayerInit struct {
	PlayerID          string    `json:"player_id"`
	Color             int       `json:"color,omitempty"`
	Position          *Position `json:"position,omitempty"`
	Health            int       `json:"health"`
	Weapon            string    `json:"weapon,omitempty"`
	IsDead            bool      `json:"isDead"`
	DeathTime         int64     `json:"deathTime,omitempty"`
	TeleportAvailable bool      `json:"teleportAvailable,omitempty"`
	ForceFieldActive  bool      `json:"forceFieldActive,omitempty"`
	HealthRegenActive bool      `json:"healthRegenActive,omitempty"`
}

type PositionUpdate struct {
	PlayerID string   `json:"player_id"`
	Position Position `json:"position"`
	Color    int      `json:"color,omitempty"`
}

type HealthUpdate struct {
	PlayerID string `json:"player_id"`
	Health   int    `json:"health"`
}

// PlayerDeath reports a kill. DeathTime is Unix milliseconds.
type PlayerDeath struct {
	PlayerID  string   `json:"player_id"`
	DeathTime int64    `json:"deathTime"`
	Position  Position `json:"position"`
}

type PlayerRespawn struct {
	PlayerID string   `json:"player_id"`
	Position Position `json:"position"`
	Health   int      `json:"health"`
	Weapon   string   `json:"weapon,omitempty"`
}

type WeaponPickup struct {
	PlayerID string `json:"player_id"`
	WeaponID string `json:"weapon_id"`
	Weapon   string `json:"weapon"`
}

type WeaponSpawn struct {
	WeaponID string   `json:"weapon_id"`
	Position Position `json:"position"`
	Weapon   string   `json:"weapon"`
}

type WeaponDespawn struct {
	WeaponID string `json:"weapon_id"`
}

type BulletUpdate struct {
	BulletID string   `json:"bullet_id,omitempty"`
	PlayerID string   `json:"player_id,omitempty"`
	Position Position `json:"position"`
}

type BulletHit struct {
	BulletID string `json:"bullet_id"`
}

type PowerUpSpawn struct {
	PowerUpID string   `json:"powerup_id"`
	Position  Position `json:"position"`
	PowerUp   string   `json:"powerup"`
}

type PowerUpPickup struct {
	PlayerID  string `json:"player_id"`
	PowerUpID string `json:"powerup_id"`
	PowerUp   string `json:"powerup"`
}

// Teleport is the server's confirmation that a player moved.
type Teleport struct {
	PlayerID string   `json:"player_id"`
	Position Position `json:"position"`
}

type PlayerDisconnect struct {
	PlayerID string `json:"player_id"`
}

type LobbyUpdate struct {
	Players []string `json:"players"`
}

type MatchStarted struct{}

// SessionInit is the first frame on every new transport.
type SessionInit struct {
	SessionID string `json:"session_id"`
}

// PositionReport is the outbound "position" frame.
type PositionReport struct {
	Position Position `json:"position"`
}

type Shoot struct {
	Rotation float64 `json:"rotation"`
}

// TeleportRequest is the outbound "teleport" frame.
type TeleportRequest struct {
	CursorPos Point `json:"cursorPos"`
}

type JoinMatch struct{}

type StartMatch struct{}

func (SessionAck) Kind() Kind       { return KindSessionAck }
func (PlayerInit) Kind() Kind       { return KindPlayerInit }
func (PositionUpdate) Kind() Kind   { return KindPositionUpdate }
func (HealthUpdate) Kind() Kind     { return KindHealthUpdate }
func (PlayerDeath) Kind() Kind      { return KindPlayerDeath }
func (PlayerRespawn) Kind() Kind    { return KindPlayerRespawn }
func (WeaponPickup) Kind() Kind     { return KindWeaponPickup }
func (WeaponSpawn) Kind() Kind      { return KindWeaponSpawn }
func (WeaponDespawn) Kind() Kind    { return KindWeaponDespawn }
func (BulletUpdate) Kind() Kind     { return KindBulletUpdate }
func (BulletHit) Kind() Kind        { return KindBulletHit }
func (PowerUpSpawn) Kind() Kind     { return KindPowerUpSpawn }
func (PowerUpPickup) Kind() Kind    { return KindPowerUpPickup }
func (Teleport) Kind() Kind         { return KindTeleport }
func (PlayerDisconnect) Kind() Kind { return KindPlayerDisconnect }
func (LobbyUpdate) Kind() Kind      { return KindLobbyUpdate }
func (MatchStarted) Kind() Kind     { return KindMatchStarted }

func (SessionInit) Kind() Kind     { return KindSessionInit }
func (PositionReport) Kind() Kind  { return KindPosition }
func (Shoot) Kind() Kind           { return KindShoot }
func (TeleportRequest) Kind() Kind { return KindTeleport }
func (JoinMatch) Kind() Kind       { return KindJoinMatch }
func (StartMatch) Kind() Kind      { return KindStartMatch }
