// Package replicate implements per-object state replication: components
// with dirty flags, the owner/observer dirty masks that select which
// component payloads each connection receives, and net id allocation.
package replicate

import (
	"errors"

	"syncwire/server/internal/wire"
)

// SyncDirection controls who is allowed to write a component's state.
type SyncDirection uint8

const (
	// ServerToClient state is authoritative on the server.
	ServerToClient SyncDirection = iota
	// ClientToServer state is written by the owning connection.
	ClientToServer
)

func (d SyncDirection) String() string {
	switch d {
	case ServerToClient:
		return "server-to-client"
	case ClientToServer:
		return "client-to-server"
	default:
		return "unknown"
	}
}

// SyncMode controls how widely a component's state is replicated.
type SyncMode uint8

const (
	// SyncModeObservers replicates to the owner and all observers.
	SyncModeObservers SyncMode = iota
	// SyncModeOwner replicates to the owning connection only.
	SyncModeOwner
)

func (m SyncMode) String() string {
	switch m {
	case SyncModeObservers:
		return "observers"
	case SyncModeOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Component is one replicated unit of state on an identity. Concrete
// components embed Base and implement the two serialization hooks.
type Component interface {
	ComponentIndex() uint8
	SyncDirection() SyncDirection
	SyncMode() SyncMode
	IsDirty() bool
	ClearDirty()

	// OnSerialize appends the component's state. With initial set the
	// full state is written; otherwise only what changed since the
	// last clear.
	OnSerialize(w *wire.Writer, initial bool)
	// OnDeserialize consumes what OnSerialize wrote.
	OnDeserialize(r *wire.Reader, initial bool) error

	attach(owner *Identity, index uint8)
}

// Base carries the bookkeeping shared by every component. Embed it by
// pointer-receiver convention: components are used as pointers.
type Base struct {
	Direction SyncDirection
	Mode      SyncMode

	owner *Identity
	index uint8
	dirty bool
}

func (b *Base) attach(owner *Identity, index uint8) {
	b.owner = owner
	b.index = index
}

// ComponentIndex returns the position assigned at identity creation.
func (b *Base) ComponentIndex() uint8 { return b.index }

// Identity returns the owning identity, nil before attachment.
func (b *Base) Identity() *Identity { return b.owner }

func (b *Base) SyncDirection() SyncDirection { return b.Direction }

func (b *Base) SyncMode() SyncMode { return b.Mode }

// SetDirty marks the component for the next replication pass.
func (b *Base) SetDirty() { b.dirty = true }

func (b *Base) IsDirty() bool { return b.dirty }

func (b *Base) ClearDirty() { b.dirty = false }

var (
	// ErrTooManyComponents is returned when an identity would exceed
	// the 64 component slots addressable by the dirty mask.
	ErrTooManyComponents = errors.New("replicate: identity exceeds 64 components")
	// ErrDirectionViolation is returned when a client writes state it
	// has no authority over.
	ErrDirectionViolation = errors.New("replicate: client wrote server-authoritative component")
	// ErrUnknownComponent is returned when a mask or message names a
	// component index the identity does not have.
	ErrUnknownComponent = errors.New("replicate: unknown component index")
)
