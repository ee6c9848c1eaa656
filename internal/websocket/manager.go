// Package websocket keeps one client connection to the arena server alive.
//
// A Manager dials as soon as it is created, announces the session on every
// new transport and reconnects with exponential backoff after the transport
// is lost. State changes and inbound frames are delivered to the registered
// callbacks from a single goroutine, in the order they happened.
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/luciancaetano/arenanet/internal/protocol"
)

// ErrNoURL is returned by New when Config.URL is empty.
var ErrNoURL = errors.New("websocket: server url is required")

// Config configures a Manager.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the arena server.
	URL string
	// SessionID is announced in a session_init frame on every open.
	SessionID string
	// Policy controls automatic reconnection. The zero value selects
	// DefaultReconnectPolicy.
	Policy ReconnectPolicy
	// Dialer defaults to NewGorillaDialer().
	Dialer Dialer
	Logger zerolog.Logger

	// Initial callbacks, so no event of the first dial is missed.
	OnStateChange func(StateEvent)
	OnMessage     func([]byte)
}

type event struct {
	state *StateEvent
	data  []byte
}

// Manager owns the connection state machine. All methods are safe for
// concurrent use.
type Manager struct {
	url    string
	policy ReconnectPolicy
	dialer Dialer
	log    zerolog.Logger
	hello  []byte

	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	mu       sync.Mutex
	state    ConnectionState
	attempt  int
	gen      uint64
	cur      *transport
	timer    *time.Timer
	timerSeq uint64
	stopped  bool

	qmu   sync.Mutex
	queue []event
	wake  chan struct{}

	hmu       sync.RWMutex
	onState   func(StateEvent)
	onMessage func([]byte)

	reconnects metric.Int64Counter
	giveUps    metric.Int64Counter
	dropped    metric.Int64Counter
}

// New creates a Manager and starts the first dial. The Manager shuts down
// when ctx is done.
func New(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrNoURL
	}

	hello, err := protocol.Encode(protocol.SessionInit{SessionID: cfg.SessionID})
	if err != nil {
		return nil, err
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewGorillaDialer()
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		url:       cfg.URL,
		policy:    cfg.Policy.normalized(),
		dialer:    dialer,
		log:       cfg.Logger.With().Str("component", "connection").Logger(),
		hello:     hello,
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		wake:      make(chan struct{}, 1),
		onState:   cfg.OnStateChange,
		onMessage: cfg.OnMessage,
	}
	m.initMetrics()

	go m.loop()

	m.mu.Lock()
	m.dialLocked()
	m.mu.Unlock()

	return m, nil
}

func (m *Manager) initMetrics() {
	var err error
	if m.reconnects, err = meter().Int64Counter("connection.reconnects",
		metric.WithDescription("Automatic reconnect attempts")); err != nil {
		m.log.Warn().Err(err).Msg("creating reconnect counter")
	}
	if m.giveUps, err = meter().Int64Counter("connection.give_ups",
		metric.WithDescription("Times automatic reconnection was abandoned")); err != nil {
		m.log.Warn().Err(err).Msg("creating give-up counter")
	}
	if m.dropped, err = meter().Int64Counter("connection.dropped_sends",
		metric.WithDescription("Frames refused by Send")); err != nil {
		m.log.Warn().Err(err).Msg("creating dropped send counter")
	}
}

// OnStateChange replaces the state change callback.
func (m *Manager) OnStateChange(fn func(StateEvent)) {
	m.hmu.Lock()
	m.onState = fn
	m.hmu.Unlock()
}

// OnMessage replaces the inbound frame callback.
func (m *Manager) OnMessage(fn func([]byte)) {
	m.hmu.Lock()
	m.onMessage = fn
	m.hmu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOpen reports whether Send would currently accept a frame.
func (m *Manager) IsOpen() bool {
	return m.State() == Open
}

// Attempt returns the number of automatic retries since the last open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Open re-enables automatic reconnection, resets the attempt counter and
// dials unless a transport is already open or being dialed. A pending
// reconnect timer is cancelled first.
func (m *Manager) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return
	}
	m.stopped = false
	m.attempt = 0
	m.cancelTimerLocked()

	if m.state == Open || m.state == Connecting {
		return
	}
	m.dialLocked()
}

// Reconnect drops the current transport, if any, and dials a fresh one with
// the attempt counter reset.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.stopped = false
	m.attempt = 0
	m.cancelTimerLocked()

	t := m.cur
	m.cur = nil
	if t != nil {
		m.setStateLocked(Closed, nil)
	}
	m.dialLocked()
	m.mu.Unlock()

	if t != nil {
		t.close(websocket.CloseNormalClosure)
	}
}

// Close cancels any pending reconnect, closes the transport and disables
// automatic reconnection until the next Open.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopped = true
	m.cancelTimerLocked()
	m.gen++

	t := m.cur
	m.cur = nil
	if m.state != Closed && m.state != GaveUp {
		m.setStateLocked(Closed, nil)
	}
	m.mu.Unlock()

	if t != nil {
		t.close(websocket.CloseNormalClosure)
	}
}

// Shutdown closes the Manager for good and waits until the last callback
// has returned.
func (m *Manager) Shutdown() {
	m.cancel()
	<-m.loopDone
}

// Send hands data to the live transport. It returns false when the
// connection is not open or the outbound buffer is full. Frames are never
// queued for a later transport.
func (m *Manager) Send(data []byte) bool {
	m.mu.Lock()
	t := m.cur
	open := m.state == Open
	m.mu.Unlock()

	if open && t != nil && t.enqueue(data) {
		return true
	}

	if m.dropped != nil {
		m.dropped.Add(m.ctx, 1)
	}
	return false
}

// dialLocked supersedes the current generation and starts a dial.
func (m *Manager) dialLocked() {
	m.gen++
	gen := m.gen
	m.setStateLocked(Connecting, nil)
	go m.dial(gen)
}

func (m *Manager) dial(gen uint64) {
	conn, err := m.dialer.Dial(m.ctx, m.url)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.ctx.Err() != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		m.log.Warn().Err(err).Str("url", m.url).Int("attempt", m.attempt).Msg("Dial failed")
		m.lostLocked(err)
		return
	}

	t := newTransport(gen, conn)
	m.cur = t
	m.attempt = 0
	// session_init is buffered before any other caller can see Open.
	t.enqueue(m.hello)
	m.setStateLocked(Open, nil)
	m.log.Info().Str("url", m.url).Msg("Connected")

	go t.writePump(m.transportLost)
	go t.readPump(m.deliver, m.transportLost)
}

func (m *Manager) deliver(t *transport, data []byte) {
	m.mu.Lock()
	current := m.cur == t
	m.mu.Unlock()

	if current {
		m.emit(event{data: data})
	}
}

func (m *Manager) transportLost(t *transport, err error) {
	m.mu.Lock()
	if m.cur != t {
		m.mu.Unlock()
		return
	}
	m.cur = nil
	m.log.Warn().Err(err).Msg("Connection lost")
	m.lostLocked(err)
	m.mu.Unlock()

	t.close(websocket.CloseGoingAway)
}

// lostLocked moves to Closed and either schedules the next retry or gives
// up.
func (m *Manager) lostLocked(err error) {
	m.setStateLocked(Closed, err)
	if m.stopped || m.ctx.Err() != nil {
		return
	}

	if m.attempt >= m.policy.MaxAttempts {
		m.log.Error().Int("attempts", m.attempt).Msg("Giving up reconnecting")
		if m.giveUps != nil {
			m.giveUps.Add(m.ctx, 1)
		}
		m.setStateLocked(GaveUp, err)
		return
	}

	delay := m.policy.Delay(m.attempt)
	m.attempt++
	m.log.Info().Int("attempt", m.attempt).Dur("delay", delay).Msg("Scheduling reconnect")
	m.scheduleLocked(delay)
}

func (m *Manager) scheduleLocked(delay time.Duration) {
	m.cancelTimerLocked()
	seq := m.timerSeq
	m.timer = time.AfterFunc(delay, func() { m.retry(seq) })
}

// cancelTimerLocked stops the pending reconnect timer. Calling it with no
// timer pending does nothing.
func (m *Manager) cancelTimerLocked() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.timerSeq++
}

func (m *Manager) retry(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer == nil || seq != m.timerSeq || m.stopped || m.ctx.Err() != nil {
		return
	}
	m.timer = nil
	m.timerSeq++

	if m.reconnects != nil {
		m.reconnects.Add(m.ctx, 1, metric.WithAttributes(attribute.Int("attempt", m.attempt)))
	}
	m.dialLocked()
}

func (m *Manager) setStateLocked(s ConnectionState, err error) {
	old := m.state
	if old == s {
		return
	}
	m.state = s
	m.emit(event{state: &StateEvent{Old: old, New: s, Err: err, Attempt: m.attempt}})
}

// emit queues ev for the event loop without blocking.
func (m *Manager) emit(ev event) {
	m.qmu.Lock()
	m.queue = append(m.queue, ev)
	m.qmu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) next() (event, bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if len(m.queue) == 0 {
		return event{}, false
	}
	ev := m.queue[0]
	m.queue[0] = event{}
	m.queue = m.queue[1:]
	return ev, true
}

// loop delivers queued events one at a time until the Manager shuts down.
func (m *Manager) loop() {
	defer close(m.loopDone)

	for {
		select {
		case <-m.wake:
			m.drain()
		case <-m.ctx.Done():
			m.Close()
			m.drain()
			return
		}
	}
}

func (m *Manager) drain() {
	for {
		ev, ok := m.next()
		if !ok {
			return
		}

		m.hmu.RLock()
		onState, onMessage := m.onState, m.onMessage
		m.hmu.RUnlock()

		if ev.state != nil {
			if onState != nil {
				onState(*ev.state)
			}
			continue
		}
		if onMessage != nil {
			onMessage(ev.data)
		}
	}
}
