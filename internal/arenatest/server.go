// Package arenatest provides a scriptable in-process arena server for tests.
//
// The server speaks the real wire protocol over gorilla/websocket on an
// httptest listener, records every frame a client sends and lets the test
// push frames, drop connections or refuse new ones.
package arenatest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luciancaetano/arenanet/internal/protocol"
)

const writeWait = 2 * time.Second

// HandlerFn is called for every frame a peer sends, after it was recorded.
// It runs on the peer's read goroutine.
type HandlerFn = func(p *Peer, m protocol.Message)

// Peer is one connected client.
type Peer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex

	sessionMu sync.Mutex
	sessionID string
}

// ID returns a unique identifier assigned on upgrade.
func (p *Peer) ID() string {
	return p.id
}

// SessionID returns the id the peer announced in session_init.
func (p *Peer) SessionID() string {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()
	return p.sessionID
}

// Send encodes m and writes it to the peer.
func (p *Peer) Send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return p.SendRaw(data)
}

// SendRaw writes data as one text frame, bypassing the codec.
func (p *Peer) SendRaw(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Drop closes the underlying connection without a close handshake.
func (p *Peer) Drop() {
	_ = p.conn.Close()
}

// Server is the fake arena server.
type Server struct {
	t        testing.TB
	srv      *httptest.Server
	upgrader websocket.Upgrader

	peers sync.Map // map[string]*Peer

	mu       sync.Mutex
	received []protocol.Message
	garbage  [][]byte
	refuse   bool
	handler  HandlerFn
	accepts  int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t: t,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// endpoint of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

// Handle installs fn for every subsequently received frame.
func (s *Server) Handle(fn HandlerFn) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// Refuse makes the server answer new upgrade requests with 503.
func (s *Server) Refuse(refuse bool) {
	s.mu.Lock()
	s.refuse = refuse
	s.mu.Unlock()
}

// Accepts returns how many connections were upgraded so far.
func (s *Server) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

// Peers returns the currently connected clients.
func (s *Server) Peers() []*Peer {
	var out []*Peer
	s.peers.Range(func(_, value any) bool {
		out = append(out, value.(*Peer))
		return true
	})
	return out
}

// Broadcast sends m to every connected client.
func (s *Server) Broadcast(m protocol.Message) {
	for _, p := range s.Peers() {
		if err := p.Send(m); err != nil {
			s.t.Logf("arenatest: broadcast to %s: %v", p.ID(), err)
		}
	}
}

// BroadcastRaw sends data to every connected client as is.
func (s *Server) BroadcastRaw(data []byte) {
	for _, p := range s.Peers() {
		if err := p.SendRaw(data); err != nil {
			s.t.Logf("arenatest: broadcast to %s: %v", p.ID(), err)
		}
	}
}

// DropAll abruptly closes every connection.
func (s *Server) DropAll() {
	for _, p := range s.Peers() {
		p.Drop()
	}
}

// Received returns every decoded frame, in arrival order.
func (s *Server) Received() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.Message, len(s.received))
	copy(out, s.received)
	return out
}

// Garbage returns the client frames that did not decode.
func (s *Server) Garbage() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.garbage))
	copy(out, s.garbage)
	return out
}

// ReceivedKind returns the received frames of one kind.
func (s *Server) ReceivedKind(kind protocol.Kind) []protocol.Message {
	var out []protocol.Message
	for _, m := range s.Received() {
		if m.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

// Close shuts the server down and drops every client.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refuse := s.refuse
	s.mu.Unlock()
	if refuse {
		http.Error(w, "arena unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := &Peer{id: uuid.NewString(), conn: conn}
	s.peers.Store(p.id, p)
	s.mu.Lock()
	s.accepts++
	s.mu.Unlock()

	go s.handlePeer(p)
}

func (s *Server) handlePeer(p *Peer) {
	defer func() {
		s.peers.Delete(p.id)
		_ = p.conn.Close()
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		m, err := protocol.DecodeOutbound(data)
		if err != nil {
			s.mu.Lock()
			s.garbage = append(s.garbage, data)
			s.mu.Unlock()
			continue
		}
		if init, ok := m.(protocol.SessionInit); ok {
			p.sessionMu.Lock()
			p.sessionID = init.SessionID
			p.sessionMu.Unlock()
		}

		s.mu.Lock()
		s.received = append(s.received, m)
		handler := s.handler
		s.mu.Unlock()

		if handler != nil {
			handler(p, m)
		}
	}
}
