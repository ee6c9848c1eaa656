package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a frame.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong or frame.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

// transport is one live connection. It is owned by the Manager that created
// it and is never reused after it dies.
type transport struct {
	gen    uint64
	conn   Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newTransport(gen uint64, conn Conn) *transport {
	return &transport{
		gen:    gen,
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking.
func (t *transport) enqueue(data []byte) bool {
	select {
	case <-t.done:
		return false
	default:
	}

	select {
	case t.sendCh <- data:
		return true
	default:
		return false
	}
}

// close tears the transport down. Frames still buffered are dropped.
func (t *transport) close(code int) {
	t.once.Do(func() {
		close(t.done)
		msg := websocket.FormatCloseMessage(code, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = t.conn.Close()
	})
}

// writePump pumps frames from the send channel to the connection and keeps
// it alive with pings. It returns the first write error.
func (t *transport) writePump(lost func(*transport, error)) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-t.sendCh:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				lost(t, err)
				return
			}

		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				lost(t, err)
				return
			}

		case <-t.done:
			return
		}
	}
}

// readPump delivers every inbound frame to deliver, in order, until the
// connection fails.
func (t *transport) readPump(deliver func(*transport, []byte), lost func(*transport, error)) {
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			lost(t, err)
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
		deliver(t, data)
	}
}
