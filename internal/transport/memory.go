package transport

import (
	"sync"
)

// Memory is an in-process transport used by tests and the loopback
// client. Connections are created explicitly with Connect; frames are
// delivered synchronously on the calling goroutine so tests stay
// deterministic.
type Memory struct {
	mu     sync.Mutex
	cb     Callbacks
	nextID uint64
	conns  map[uint64]*MemoryConn
	closed bool
}

// NewMemory returns an empty in-process transport.
func NewMemory() *Memory {
	return &Memory{nextID: 1, conns: make(map[uint64]*MemoryConn)}
}

func (m *Memory) Start(cb Callbacks) error {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
	return nil
}

// Connect attaches a new client endpoint and fires OnConnected.
func (m *Memory) Connect() *MemoryConn {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	conn := &MemoryConn{transport: m, id: id}
	m.conns[id] = conn
	cb := m.cb
	m.mu.Unlock()

	cb.connected(id, "memory:local")
	return conn
}

func (m *Memory) Send(connID uint64, channel Channel, data []byte) error {
	m.mu.Lock()
	conn, ok := m.conns[connID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownConnection
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	conn.mu.Lock()
	conn.received = append(conn.received, MemoryFrame{Channel: channel, Data: frame})
	conn.mu.Unlock()
	return nil
}

func (m *Memory) Disconnect(connID uint64) error {
	m.mu.Lock()
	_, ok := m.conns[connID]
	delete(m.conns, connID)
	cb := m.cb
	m.mu.Unlock()
	if !ok {
		return ErrUnknownConnection
	}
	cb.disconnected(connID)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ids := make([]uint64, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.conns = make(map[uint64]*MemoryConn)
	cb := m.cb
	m.mu.Unlock()

	for _, id := range ids {
		cb.disconnected(id)
	}
	return nil
}

// MemoryFrame is one server-to-client frame captured by a MemoryConn.
type MemoryFrame struct {
	Channel Channel
	Data    []byte
}

// MemoryConn is the client endpoint of a Memory connection.
type MemoryConn struct {
	transport *Memory
	id        uint64

	mu       sync.Mutex
	received []MemoryFrame
}

// ID returns the connection id the server sees.
func (c *MemoryConn) ID() uint64 { return c.id }

// Send delivers a client frame to the server's OnData callback.
func (c *MemoryConn) Send(channel Channel, data []byte) {
	c.transport.mu.Lock()
	_, open := c.transport.conns[c.id]
	cb := c.transport.cb
	c.transport.mu.Unlock()
	if !open {
		return
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	cb.data(c.id, channel, frame)
}

// Received drains and returns the frames sent to this client so far.
func (c *MemoryConn) Received() []MemoryFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.received
	c.received = nil
	return out
}

// Close disconnects this endpoint.
func (c *MemoryConn) Close() {
	c.transport.Disconnect(c.id)
}
