// Package transport abstracts the byte pipes the replication server runs
// over. A transport accepts connections, surfaces inbound frames through
// callbacks and sends whole frames back out; everything above it works in
// terms of connection ids and channels.
package transport

import "errors"

// Channel selects delivery guarantees for a frame.
type Channel uint8

const (
	// Reliable frames arrive in order or the connection dies.
	Reliable Channel = iota
	// Unreliable frames may be dropped or reordered.
	Unreliable
)

func (c Channel) String() string {
	switch c {
	case Reliable:
		return "reliable"
	case Unreliable:
		return "unreliable"
	default:
		return "unknown"
	}
}

// ErrUnknownConnection is returned for sends to connections the
// transport no longer tracks.
var ErrUnknownConnection = errors.New("transport: unknown connection")

// Callbacks receive transport events. All callbacks for one connection
// are invoked sequentially; OnDisconnected is the last event a
// connection produces.
type Callbacks struct {
	OnConnected    func(connID uint64, remoteAddr string)
	OnData         func(connID uint64, channel Channel, data []byte)
	OnError        func(connID uint64, err error)
	OnDisconnected func(connID uint64)
}

func (c Callbacks) connected(connID uint64, addr string) {
	if c.OnConnected != nil {
		c.OnConnected(connID, addr)
	}
}

func (c Callbacks) data(connID uint64, channel Channel, data []byte) {
	if c.OnData != nil {
		c.OnData(connID, channel, data)
	}
}

func (c Callbacks) errored(connID uint64, err error) {
	if c.OnError != nil {
		c.OnError(connID, err)
	}
}

func (c Callbacks) disconnected(connID uint64) {
	if c.OnDisconnected != nil {
		c.OnDisconnected(connID)
	}
}

// Transport is a server-side frame pipe.
type Transport interface {
	// Start begins accepting connections and delivering events to cb.
	Start(cb Callbacks) error
	// Send queues one frame to a connection.
	Send(connID uint64, channel Channel, data []byte) error
	// Disconnect closes one connection; OnDisconnected still fires.
	Disconnect(connID uint64) error
	// Close shuts the transport down and disconnects everyone.
	Close() error
}
