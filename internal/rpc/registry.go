// Package rpc maps 16-bit stable signature hashes to invocable handlers
// for the Command/ClientRpc mechanism. The registry is built once, before
// the server accepts connections, and is read-only afterwards; there is no
// lazy first-use registration.
package rpc

import (
	"errors"
	"fmt"

	"syncwire/server/internal/stablehash"
	"syncwire/server/internal/wire"
)

// Kind distinguishes the two remote-call directions.
type Kind int

const (
	// KindCommand is a client-to-server call on an owned object.
	KindCommand Kind = iota
	// KindClientRpc is a server-to-client call broadcast to observers.
	KindClientRpc
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindClientRpc:
		return "rpc"
	}
	return "unknown"
}

// Errors surfaced by dispatch. None of them crash the calling context.
var (
	ErrUnknownMethod = errors.New("rpc: unknown method hash")
	ErrKindMismatch  = errors.New("rpc: call kind does not match registration")
	ErrCollision     = errors.New("rpc: signature hash collision")
)

// Target is the capability a registered handler needs from its receiver.
// Handlers are registered per concrete component type and recover their
// own type from the target; the registry itself never downcasts.
type Target interface {
	ComponentIndex() uint8
}

// Func executes one remote call against target, decoding its arguments
// from r in the exact order the signature declares.
type Func func(target Target, caller uint64, r *wire.Reader) error

// Entry describes one registered remote call.
type Entry struct {
	ComponentType     string
	Signature         string
	Kind              Kind
	RequiresAuthority bool
	Fn                Func
}

// Registry is the hash-keyed dispatch table.
type Registry struct {
	entries map[uint16]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint16]*Entry)}
}

// Register adds one remote call under the stable hash of signature.
// Re-registering an identical signature is a no-op so constructing many
// instances of a component type stays cheap; a different signature
// landing on the same 16-bit hash is a configuration error. Collisions
// across peers that never share a registry remain an accepted risk of the
// 16-bit hash and are not detectable here.
func (reg *Registry) Register(componentType, signature string, kind Kind, requiresAuthority bool, fn Func) error {
	hash := stablehash.FunctionHash(signature)
	if existing, ok := reg.entries[hash]; ok {
		if existing.Signature == signature && existing.Kind == kind {
			return nil
		}
		return fmt.Errorf("%w: %q and %q both hash to %d", ErrCollision, existing.Signature, signature, hash)
	}
	reg.entries[hash] = &Entry{
		ComponentType:     componentType,
		Signature:         signature,
		Kind:              kind,
		RequiresAuthority: requiresAuthority,
		Fn:                fn,
	}
	return nil
}

// Lookup returns the entry for hash.
func (reg *Registry) Lookup(hash uint16) (*Entry, bool) {
	e, ok := reg.entries[hash]
	return e, ok
}

// RequiresAuthority reports whether the call demands an owning caller.
// Unknown hashes require authority so unresolvable calls fail closed.
func (reg *Registry) RequiresAuthority(hash uint16) bool {
	if e, ok := reg.entries[hash]; ok {
		return e.RequiresAuthority
	}
	return true
}

// Invoke dispatches one call. The caller has already resolved target from
// (netID, componentIndex) and verified authority.
func (reg *Registry) Invoke(hash uint16, kind Kind, target Target, caller uint64, r *wire.Reader) error {
	e, ok := reg.entries[hash]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMethod, hash)
	}
	if e.Kind != kind {
		return fmt.Errorf("%w: hash %d registered as %s, called as %s", ErrKindMismatch, hash, e.Kind, kind)
	}
	return e.Fn(target, caller, r)
}

// Len reports the number of registered calls.
func (reg *Registry) Len() int {
	return len(reg.entries)
}
