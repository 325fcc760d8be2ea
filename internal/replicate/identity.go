package replicate

import (
	"sync"

	"syncwire/server/internal/wire"
)

// maxComponents is fixed by the 64-bit dirty mask.
const maxComponents = 64

// Identity is one replicated object: a net id, an optional owning
// connection, the set of observing connections and up to 64 components.
// Identities are mutated from the tick goroutine only; the observer set
// uses Identity methods exclusively.
type Identity struct {
	NetID   uint32
	SceneID uint64
	AssetID uint32

	// OwnerConnID is the owning connection, zero for server-owned.
	OwnerConnID uint64

	components []Component
	observers  map[uint64]struct{}
}

// NewIdentity builds an identity and assigns component indexes in
// argument order. More than 64 components is a configuration error.
func NewIdentity(netID uint32, components ...Component) (*Identity, error) {
	if len(components) > maxComponents {
		return nil, ErrTooManyComponents
	}
	id := &Identity{
		NetID:      netID,
		components: components,
		observers:  make(map[uint64]struct{}),
	}
	for i, c := range components {
		c.attach(id, uint8(i))
	}
	return id, nil
}

// Components returns the component slice; callers must not mutate it.
func (id *Identity) Components() []Component {
	return id.components
}

// Component returns the component at index, nil when out of range.
func (id *Identity) Component(index uint8) Component {
	if int(index) >= len(id.components) {
		return nil
	}
	return id.components[index]
}

// AddObserver registers a connection to receive observer-stream state.
func (id *Identity) AddObserver(connID uint64) {
	id.observers[connID] = struct{}{}
}

// RemoveObserver drops a connection from the observer set.
func (id *Identity) RemoveObserver(connID uint64) {
	delete(id.observers, connID)
}

// IsObserver reports whether connID observes this identity.
func (id *Identity) IsObserver(connID uint64) bool {
	_, ok := id.observers[connID]
	return ok
}

// Observers returns a copy of the observer connection ids.
func (id *Identity) Observers() []uint64 {
	out := make([]uint64, 0, len(id.observers))
	for c := range id.observers {
		out = append(out, c)
	}
	return out
}

// ObserverCount returns the size of the observer set.
func (id *Identity) ObserverCount() int {
	return len(id.observers)
}

// IsDirty reports whether any component has pending changes.
func (id *Identity) IsDirty() bool {
	for _, c := range id.components {
		if c.IsDirty() {
			return true
		}
	}
	return false
}

// ClearDirty clears every component's dirty flag.
func (id *Identity) ClearDirty() {
	for _, c := range id.components {
		c.ClearDirty()
	}
}

// ServerDirtyMasks computes the owner and observer component masks for
// one serialization pass. The owner stream carries a component when the
// pass is initial or when server-authoritative state changed; the
// observer stream additionally requires the component to replicate to
// observers at all.
func (id *Identity) ServerDirtyMasks(initial bool) (ownerMask, observerMask uint64) {
	for i, c := range id.components {
		bit := uint64(1) << uint(i)
		dirty := c.IsDirty()
		if initial || (c.SyncDirection() == ServerToClient && dirty) {
			ownerMask |= bit
		}
		if c.SyncMode() == SyncModeObservers && (initial || dirty) {
			observerMask |= bit
		}
	}
	return ownerMask, observerMask
}

// SerializeServer writes this identity's state for the owner and the
// observers. Each selected component is serialized exactly once and its
// bytes copied to whichever streams include it. Both outputs start with
// the varint mask; a stream whose mask is zero receives nothing and the
// corresponding return value is false. Dirty flags are cleared after a
// non-initial pass.
func (id *Identity) SerializeServer(initial bool, ownerW, observerW *wire.Writer) (ownerWritten, observerWritten bool) {
	ownerMask, observerMask := id.ServerDirtyMasks(initial)
	if ownerMask == 0 && observerMask == 0 {
		return false, false
	}
	if ownerMask != 0 {
		ownerW.WriteVarUint(ownerMask)
	}
	if observerMask != 0 {
		observerW.WriteVarUint(observerMask)
	}

	scratch := scratchPool.Get().(*wire.Writer)
	defer func() {
		scratch.Reset()
		scratchPool.Put(scratch)
	}()

	for i, c := range id.components {
		bit := uint64(1) << uint(i)
		if ownerMask&bit == 0 && observerMask&bit == 0 {
			continue
		}
		scratch.Reset()
		c.OnSerialize(scratch, initial)
		if ownerMask&bit != 0 {
			ownerW.WriteRaw(scratch.Bytes())
		}
		if observerMask&bit != 0 {
			observerW.WriteRaw(scratch.Bytes())
		}
	}
	if !initial {
		id.ClearDirty()
	}
	return ownerMask != 0, observerMask != 0
}

// DeserializeClient applies a state payload produced by SerializeServer.
// Used by the loopback client path and by tests.
func (id *Identity) DeserializeClient(r *wire.Reader, initial bool) error {
	mask, err := r.ReadVarUint()
	if err != nil {
		return err
	}
	return id.applyMasked(r, mask, initial, false)
}

// DeserializeServer applies a client-authority payload from the owning
// connection. Any component in the mask that is not client-writable
// fails the whole payload.
func (id *Identity) DeserializeServer(r *wire.Reader) error {
	mask, err := r.ReadVarUint()
	if err != nil {
		return err
	}
	return id.applyMasked(r, mask, false, true)
}

func (id *Identity) applyMasked(r *wire.Reader, mask uint64, initial, fromClient bool) error {
	for i := 0; mask != 0; i++ {
		bit := uint64(1) << uint(i)
		if mask&bit == 0 {
			continue
		}
		mask &^= bit
		if i >= len(id.components) {
			return ErrUnknownComponent
		}
		c := id.components[i]
		if fromClient && c.SyncDirection() != ClientToServer {
			return ErrDirectionViolation
		}
		if err := c.OnDeserialize(r, initial); err != nil {
			return err
		}
	}
	return nil
}

var scratchPool = sync.Pool{
	New: func() any { return wire.NewWriter() },
}

// IDAllocator hands out net ids. Zero is reserved for "no object".
type IDAllocator struct {
	mu   sync.Mutex
	next uint32
}

// NewIDAllocator starts allocation at 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Allocate returns the next net id, skipping zero on wraparound.
func (a *IDAllocator) Allocate() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return id
}
