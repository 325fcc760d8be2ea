package rpc

import (
	"errors"
	"testing"

	"syncwire/server/internal/stablehash"
	"syncwire/server/internal/wire"
)

type fakeTarget struct {
	index  uint8
	calls  int
	lastV  uint32
	caller uint64
}

func (f *fakeTarget) ComponentIndex() uint8 { return f.index }

const testSignature = "System.Void Game.Mover::CmdNudge(System.UInt32)"

func testHandler(target Target, caller uint64, r *wire.Reader) error {
	f := target.(*fakeTarget)
	v, err := r.ReadUint32()
	if err != nil {
		return err
	}
	f.calls++
	f.lastV = v
	f.caller = caller
	return nil
}

func TestRegisterAndInvoke(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("Mover", testSignature, KindCommand, true, testHandler); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}

	hash := stablehash.FunctionHash(testSignature)
	if !reg.RequiresAuthority(hash) {
		t.Fatalf("expected call to require authority")
	}

	w := wire.NewWriter()
	w.WriteUint32(42)
	target := &fakeTarget{index: 3}
	if err := reg.Invoke(hash, KindCommand, target, 7, wire.NewReader(w.Bytes())); err != nil {
		t.Fatalf("expected invoke to succeed, got %v", err)
	}
	if target.calls != 1 || target.lastV != 42 || target.caller != 7 {
		t.Fatalf("expected handler invoked with 42 from caller 7, got %+v", target)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 3; i++ {
		if err := reg.Register("Mover", testSignature, KindCommand, true, testHandler); err != nil {
			t.Fatalf("expected repeated registration to be a no-op, got %v", err)
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", reg.Len())
	}
}

func TestUnknownHashFails(t *testing.T) {
	reg := NewRegistry()
	err := reg.Invoke(12345, KindCommand, &fakeTarget{}, 0, wire.NewReader(nil))
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
	if !reg.RequiresAuthority(12345) {
		t.Fatalf("expected unknown hashes to fail closed on authority")
	}
}

func TestKindMismatchFails(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("Mover", testSignature, KindCommand, true, testHandler); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	hash := stablehash.FunctionHash(testSignature)
	err := reg.Invoke(hash, KindClientRpc, &fakeTarget{}, 0, wire.NewReader(nil))
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestHandlerDecodeErrorPropagates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("Mover", testSignature, KindCommand, true, testHandler); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	hash := stablehash.FunctionHash(testSignature)
	err := reg.Invoke(hash, KindCommand, &fakeTarget{}, 0, wire.NewReader([]byte{1, 2}))
	if !errors.Is(err, wire.ErrShortBuffer) {
		t.Fatalf("expected short-buffer decode error, got %v", err)
	}
}
