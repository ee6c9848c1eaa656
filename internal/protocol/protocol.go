package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const (
	// MaxFrameSize is the largest inbound frame Decode will look at.
	MaxFrameSize = 1024 * 1024 // 1MiB
)

// Kind is the value of the required "type" field carried by every frame.
type Kind string

// Server -> client kinds.
const (
	KindSessionAck       Kind = "session_ack"
	KindPlayerInit       Kind = "player_init"
	KindPositionUpdate   Kind = "position_update"
	KindHealthUpdate     Kind = "health_update"
	KindPlayerDeath      Kind = "player_death"
	KindPlayerRespawn    Kind = "player_respawn"
	KindWeaponPickup     Kind = "weapon_pickup"
	KindWeaponSpawn      Kind = "weapon_spawn"
	KindWeaponDespawn    Kind = "weapon_despawn"
	KindBulletUpdate     Kind = "bullet_update"
	KindBulletHit        Kind = "bullet_hit"
	KindPowerUpSpawn     Kind = "powerup_spawn"
	KindPowerUpPickup    Kind = "powerup_pickup"
	KindTeleport         Kind = "teleport"
	KindPlayerDisconnect Kind = "player_disconnect"
	KindLobbyUpdate      Kind = "lobby_update"
	KindMatchStarted     Kind = "match_started"
)

// Client -> server kinds. KindTeleport is shared by both directions.
const (
	KindSessionInit Kind = "session_init"
	KindPosition    Kind = "position"
	KindShoot       Kind = "shoot"
	KindJoinMatch   Kind = "join_match"
	KindStartMatch  Kind = "start_match"
)

// Message is implemented by every frame type of the protocol. The set of
// implementations is closed: one struct per kind and direction.
type Message interface {
	Kind() Kind
}

// Encode serializes m as a JSON object whose first field is "type".
// Well-formed messages never fail; an error is only returned for values JSON
// cannot represent, such as NaN coordinates.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}

	kind := strconv.Quote(string(m.Kind()))
	out := make([]byte, 0, len(body)+len(kind)+9)
	out = append(out, `{"type":`...)
	out = append(out, kind...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Decode parses a frame sent by the server. It never panics; every failure is
// a *DecodeError.
func Decode(data []byte) (Message, error) {
	return decode(data, inbound)
}

// DecodeOutbound parses a frame sent by a client. The arena test server uses it
// to inspect what the client put on the wire.
func DecodeOutbound(data []byte) (Message, error) {
	return decode(data, outbound)
}

func decode(data []byte, table map[Kind]func([]byte) (Message, error)) (Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodeError{Reason: Empty}
	}
	if len(data) > MaxFrameSize {
		return nil, &DecodeError{
			Reason: MalformedSyntax,
			Err:    fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), MaxFrameSize),
		}
	}

	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: MalformedSyntax, Err: err}
	}
	if env.Type == nil || *env.Type == "" {
		return nil, &DecodeError{Reason: MalformedSyntax, Err: errMissingType}
	}

	kind := Kind(*env.Type)
	fn, ok := table[kind]
	if !ok {
		return nil, &DecodeError{Reason: UnknownKind, Kind: string(kind)}
	}

	m, err := fn(data)
	if err != nil {
		return nil, &DecodeError{Reason: MalformedSyntax, Kind: string(kind), Err: err}
	}
	return m, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var inbound = map[Kind]func([]byte) (Message, error){
	KindSessionAck:       decodeAs[SessionAck],
	KindPlayerInit:       decodeAs[PlayerInit],
	KindPositionUpdate:   decodeAs[PositionUpdate],
	KindHealthUpdate:     decodeAs[HealthUpdate],
	KindPlayerDeath:      decodeAs[PlayerDeath],
	KindPlayerRespawn:    decodeAs[PlayerRespawn],
	KindWeaponPickup:     decodeAs[WeaponPickup],
	KindWeaponSpawn:      decodeAs[WeaponSpawn],
	KindWeaponDespawn:    decodeAs[WeaponDespawn],
	KindBulletUpdate:     decodeAs[BulletUpdate],
	KindBulletHit:        decodeAs[BulletHit],
	KindPowerUpSpawn:     decodeAs[PowerUpSpawn],
	KindPowerUpPickup:    decodeAs[PowerUpPickup],
	KindTeleport:         decodeAs[Teleport],
	KindPlayerDisconnect: decodeAs[PlayerDisconnect],
	KindLobbyUpdate:      decodeAs[LobbyUpdate],
	KindMatchStarted:     decodeAs[MatchStarted],
}

var outbound = map[Kind]func([]byte) (Message, error){
	KindSessionInit: decodeAs[SessionInit],
	KindPosition:    decodeAs[PositionReport],
	KindShoot:       decodeAs[Shoot],
	KindTeleport:    decodeAs[TeleportRequest],
	KindJoinMatch:   decodeAs[JoinMatch],
	KindStartMatch:  decodeAs[StartMatch],
}

// IsInbound reports whether k is a server -> client kind.
func IsInbound(k Kind) bool {
	_, ok := inbound[k]
	return ok
}

// IsOutbound reports whether k is a client -> server kind.
func IsOutbound(k Kind) bool {
	_, ok := outbound[k]
	return ok
}

// Finite reports whether every coordinate of p can be encoded.
func (p Position) Finite() bool {
	return finite(p.X) && finite(p.Y) && finite(p.Rotation)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
