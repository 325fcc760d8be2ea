// Package ws runs the transport over websockets. Each frame is one
// binary websocket message with a one byte channel prefix; websockets
// are reliable, so unreliable frames get the same delivery and the
// prefix only preserves the sender's intent.
package ws

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"syncwire/server/internal/telemetry"
	"syncwire/server/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendQueueDepth = 64
)

// Config tunes the websocket transport.
type Config struct {
	// MaxMessageSize caps inbound frames; zero means 64 KiB.
	MaxMessageSize int64
	// CheckOrigin overrides the upgrader origin check. Nil allows all
	// origins, matching a server that fronts its own clients.
	CheckOrigin func(r *http.Request) bool
}

// Transport implements transport.Transport over gorilla websockets.
// Mount Handler on an HTTP mux to accept connections.
type Transport struct {
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	maxSize  int64

	mu       sync.Mutex
	cb       transport.Callbacks
	nextID   uint64
	sessions map[uint64]*session
	started  bool
	closed   bool
}

// New builds a websocket transport. logger may be nil.
func New(cfg Config, logger telemetry.Logger) *Transport {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	maxSize := cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 64 * 1024
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Transport{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		maxSize:  maxSize,
		nextID:   1,
		sessions: make(map[uint64]*session),
	}
}

func (t *Transport) Start(cb transport.Callbacks) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("ws: transport closed")
	}
	t.cb = cb
	t.started = true
	return nil
}

// Handler upgrades HTTP requests into transport connections.
func (t *Transport) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.mu.Lock()
		started, closed := t.started, t.closed
		t.mu.Unlock()
		if !started || closed {
			http.Error(w, "server not accepting connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Printf("ws: upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}
		t.serve(conn, r.RemoteAddr)
	})
}

func (t *Transport) serve(conn *websocket.Conn, remoteAddr string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	id := t.nextID
	t.nextID++
	s := &session{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
		done: make(chan struct{}),
	}
	t.sessions[id] = s
	cb := t.cb
	t.mu.Unlock()

	cb.OnConnected(id, remoteAddr)
	go s.writePump()
	go t.readPump(s, cb)
}

func (t *Transport) readPump(s *session, cb transport.Callbacks) {
	defer t.drop(s, cb)

	s.conn.SetReadLimit(t.maxSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if cb.OnError != nil {
					cb.OnError(s.id, err)
				}
			}
			return
		}
		if kind != websocket.BinaryMessage || len(payload) < 1 {
			continue
		}
		channel := transport.Channel(payload[0])
		if channel != transport.Reliable && channel != transport.Unreliable {
			t.logger.Printf("ws: conn %d sent unknown channel %d", s.id, payload[0])
			continue
		}
		if cb.OnData != nil {
			cb.OnData(s.id, channel, payload[1:])
		}
	}
}

func (t *Transport) drop(s *session, cb transport.Callbacks) {
	t.mu.Lock()
	_, present := t.sessions[s.id]
	delete(t.sessions, s.id)
	t.mu.Unlock()

	s.close()
	if present && cb.OnDisconnected != nil {
		cb.OnDisconnected(s.id)
	}
}

func (t *Transport) Send(connID uint64, channel transport.Channel, data []byte) error {
	t.mu.Lock()
	s, ok := t.sessions[connID]
	t.mu.Unlock()
	if !ok {
		return transport.ErrUnknownConnection
	}

	frame := make([]byte, 1+len(data))
	frame[0] = byte(channel)
	copy(frame[1:], data)

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return transport.ErrUnknownConnection
	default:
		// A full queue means the client stopped reading.
		t.logger.Printf("ws: conn %d send queue full, dropping connection", connID)
		s.close()
		return transport.ErrUnknownConnection
	}
}

func (t *Transport) Disconnect(connID uint64) error {
	t.mu.Lock()
	s, ok := t.sessions[connID]
	t.mu.Unlock()
	if !ok {
		return transport.ErrUnknownConnection
	}
	s.close()
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessions := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	return nil
}

type session struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return
		}
	}
}
