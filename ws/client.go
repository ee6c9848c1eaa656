// Package ws is the gameplay-facing arena client. It composes the session
// store, the connection manager, the message dispatcher and weapon fire
// control behind arenanet.GameClient.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/dispatcher"
	"github.com/luciancaetano/arenanet/internal/protocol"
	"github.com/luciancaetano/arenanet/internal/session"
	"github.com/luciancaetano/arenanet/internal/storage"
	"github.com/luciancaetano/arenanet/internal/storage/memory"
	"github.com/luciancaetano/arenanet/internal/storage/sqlite"
	"github.com/luciancaetano/arenanet/internal/weapon"
	"github.com/luciancaetano/arenanet/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type ReconnectPolicy = websocket.ReconnectPolicy
type Dialer = websocket.Dialer
type EntityRenderer = dispatcher.EntityRenderer
type HUD = dispatcher.HUD

// Connection states.
const (
	Disconnected = websocket.Disconnected
	Connecting   = websocket.Connecting
	Open         = websocket.Open
	Closed       = websocket.Closed
	GaveUp       = websocket.GaveUp
)

// Config configures a Client. Only ServerURL is required.
type Config struct {
	// ServerURL is the ws:// or wss:// endpoint of the arena server.
	ServerURL string

	// StoragePath is the SQLite file that keeps the session across
	// restarts. When both StoragePath and KV are empty the session lives in
	// memory only.
	StoragePath string
	// KV overrides StoragePath. The caller keeps ownership of it.
	KV storage.KV

	// Reconnect controls automatic reconnection. The zero value selects
	// DefaultReconnectPolicy.
	Reconnect ReconnectPolicy
	// RateLimit throttles SendPosition. Nil selects DefaultRateLimitConfig.
	RateLimit *RateLimitConfig

	Renderer EntityRenderer
	HUD      HUD
	Handlers arenanet.Handlers
	// OnConnectionChange is registered before the first dial.
	OnConnectionChange func(arenanet.ConnectionEvent)

	Logger zerolog.Logger
	// Dialer defaults to a gorilla/websocket dialer.
	Dialer Dialer
	// Now is the clock used for throttling and respawn countdowns.
	Now func() time.Time
}

// Client implements arenanet.GameClient.
type Client struct {
	kv      storage.KV
	ownsKV  bool
	store   *session.Store
	disp    *dispatcher.Dispatcher
	conn    *websocket.Manager
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time

	fmu sync.Mutex
	gun *weapon.Controller

	closeOnce sync.Once
	closeErr  error
}

// NewClient opens the session storage, restores the persisted session and
// starts connecting to cfg.ServerURL. The client is shut down when ctx is
// done or Close is called.
//
// Example:
//
//	client, err := ws.NewClient(ctx, ws.Config{
//	    ServerURL:   "ws://localhost:8080/ws",
//	    StoragePath: "arenaclient.db",
//	    Handlers: arenanet.Handlers{
//	        PlayerInit: func(m arenanet.PlayerInit) { log.Printf("I am %s", m.PlayerID) },
//	    },
//	})
func NewClient(ctx context.Context, cfg Config) (arenanet.GameClient, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New(arenanet.ErrServerURLRequired)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = DefaultRateLimitConfig()
	}

	c := &Client{
		log: cfg.Logger.With().Str("component", "client").Logger(),
		now: cfg.Now,
	}

	if err := c.openStorage(cfg); err != nil {
		return nil, err
	}

	c.store = session.New(session.Config{KV: c.kv, Logger: cfg.Logger, Now: cfg.Now})
	sessionID := c.store.SessionID(ctx)

	c.disp = dispatcher.New(ctx, dispatcher.Config{
		Store:    c.store,
		Renderer: cfg.Renderer,
		HUD:      cfg.HUD,
		Handlers: cfg.Handlers,
		Logger:   cfg.Logger,
		Now:      cfg.Now,
	})
	c.gun = weapon.NewController(c.disp.Snapshot().CurrentWeapon, cfg.Logger)
	c.limiter = cfg.RateLimit.NewLimiter()

	conn, err := websocket.New(ctx, &websocket.Config{
		URL:           cfg.ServerURL,
		SessionID:     sessionID,
		Policy:        cfg.Reconnect,
		Dialer:        cfg.Dialer,
		Logger:        cfg.Logger,
		OnStateChange: cfg.OnConnectionChange,
		OnMessage:     c.disp.Handle,
	})
	if err != nil {
		_ = c.closeStorage()
		return nil, fmt.Errorf("%s: %w", arenanet.ErrConnect, err)
	}
	c.conn = conn

	c.log.Info().Str("session_id", sessionID).Str("url", cfg.ServerURL).Msg("Client started")
	return c, nil
}

func (c *Client) openStorage(cfg Config) error {
	switch {
	case cfg.KV != nil:
		c.kv = cfg.KV
	case cfg.StoragePath != "":
		kv, err := sqlite.Open(cfg.StoragePath, cfg.Logger)
		if err != nil {
			return fmt.Errorf("%s: %w", arenanet.ErrOpenStorage, err)
		}
		c.kv, c.ownsKV = kv, true
	default:
		c.kv, c.ownsKV = memory.New(), true
	}
	return nil
}

func (c *Client) closeStorage() error {
	if !c.ownsKV {
		return nil
	}
	return c.kv.Close()
}

// SessionID returns the persisted session identity.
func (c *Client) SessionID() string {
	return c.store.SessionID(context.Background())
}

// State returns a copy of the local player state.
func (c *Client) State() arenanet.SessionState {
	return c.disp.Snapshot()
}

// ConnectionState returns the current connection state.
func (c *Client) ConnectionState() arenanet.ConnectionState {
	return c.conn.State()
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.conn.IsOpen()
}

// OnConnectionChange registers fn for connection state transitions.
func (c *Client) OnConnectionChange(fn func(arenanet.ConnectionEvent)) {
	c.conn.OnStateChange(fn)
}

// SetHandlers replaces every message callback.
func (c *Client) SetHandlers(h arenanet.Handlers) {
	c.disp.SetHandlers(h)
}

// Reconnect drops the current connection and dials again.
func (c *Client) Reconnect() {
	c.log.Info().Msg("Manual reconnect")
	c.conn.Reconnect()
}

// SendPosition reports pos when the player can act and the throttle has a
// token left.
func (c *Client) SendPosition(pos arenanet.Position) bool {
	if !c.canAct() {
		return false
	}
	if c.limiter != nil && !c.limiter.AllowN(c.now(), 1) {
		return false
	}
	return c.send(protocol.PositionReport{Position: pos})
}

// SendShoot sends a shot without consulting fire control.
func (c *Client) SendShoot(rotation float64) bool {
	if !c.canAct() {
		return false
	}
	return c.send(protocol.Shoot{Rotation: rotation})
}

// Fire gates a shot with the fire control of the server-confirmed weapon.
// When the player cannot act the window is not touched and
// RejectedUnavailable is returned. An admitted shot counts against the
// window even if the frame is then refused by the connection.
func (c *Client) Fire(now time.Time, t arenanet.Trigger, rotation float64) arenanet.FireResult {
	if !c.canAct() {
		return weapon.RejectedUnavailable
	}
	current := c.disp.Snapshot().CurrentWeapon

	c.fmu.Lock()
	if c.gun.Kind() != current {
		c.gun.Switch(current)
	}
	res := c.gun.TryFire(now, t)
	c.fmu.Unlock()

	if res.OK() && !c.send(protocol.Shoot{Rotation: rotation}) {
		c.log.Debug().Msg("Admitted shot was not sent")
	}
	return res
}

// SendTeleport asks for a teleport toward cursor. It needs a held teleport
// power-up, which is used up once the request is on its way.
func (c *Client) SendTeleport(cursor arenanet.Point) bool {
	if !c.canAct() || !c.disp.Snapshot().TeleportAvailable {
		return false
	}
	if !c.send(protocol.TeleportRequest{CursorPos: cursor}) {
		return false
	}
	c.disp.ConsumeTeleport()
	return true
}

// JoinMatch asks to join the lobby.
func (c *Client) JoinMatch() bool {
	if !c.canJoin() {
		return false
	}
	return c.send(protocol.JoinMatch{})
}

// StartMatch asks the server to start the match.
func (c *Client) StartMatch() bool {
	if !c.canJoin() {
		return false
	}
	return c.send(protocol.StartMatch{})
}

// Close stops the connection for good and releases owned storage. It is
// safe to call more than once, but not from a message or connection
// callback, since it waits for the running callback to return.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Shutdown()
		if err := c.closeStorage(); err != nil {
			c.closeErr = fmt.Errorf("closing session storage: %w", err)
		}
		c.log.Info().Msg("Client closed")
	})
	return c.closeErr
}

func (c *Client) canAct() bool {
	return c.conn.IsOpen() && c.disp.Snapshot().CanAct()
}

func (c *Client) canJoin() bool {
	return c.conn.IsOpen() && c.disp.Snapshot().CanJoin()
}

func (c *Client) send(m protocol.Message) bool {
	data, err := protocol.Encode(m)
	if err != nil {
		c.log.Warn().Err(err).Str("type", string(m.Kind())).Msg(arenanet.ErrFailedEncode)
		return false
	}
	return c.conn.Send(data)
}

// DefaultRateLimitConfig returns the default position throttle.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with position throttling disabled.
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}

// DefaultReconnectPolicy returns 1s base delay doubling up to 30s with 5
// retries.
func DefaultReconnectPolicy() ReconnectPolicy {
	return websocket.DefaultReconnectPolicy()
}
