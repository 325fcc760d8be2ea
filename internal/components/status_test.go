package components

import (
	"testing"

	"syncwire/server/internal/replicate"
	"syncwire/server/internal/wire"
)

func TestStatusInitialRoundTrip(t *testing.T) {
	src := NewStatus(replicate.SyncModeObservers)
	src.SetName("miner")
	src.SetHealth(80)
	src.SetEnergy(40)
	src.SetLevel(3)

	w := wire.NewWriter()
	src.OnSerialize(w, true)

	dst := NewStatus(replicate.SyncModeObservers)
	if err := dst.OnDeserialize(wire.NewReader(w.Bytes()), true); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if dst.Name() != "miner" || dst.Health() != 80 || dst.Energy() != 40 || dst.Level() != 3 {
		t.Fatalf("unexpected state: %q %d %d %d", dst.Name(), dst.Health(), dst.Energy(), dst.Level())
	}
}

func TestStatusDeltaCarriesOnlyChangedFields(t *testing.T) {
	src := NewStatus(replicate.SyncModeObservers)
	src.SetName("miner")
	src.SetHealth(100)

	w := wire.NewWriter()
	src.OnSerialize(w, true)
	dst := NewStatus(replicate.SyncModeObservers)
	if err := dst.OnDeserialize(wire.NewReader(w.Bytes()), true); err != nil {
		t.Fatalf("initial: %v", err)
	}

	// Flush pending changed bits from before the initial pass.
	w.Reset()
	src.OnSerialize(w, false)

	src.SetHealth(55)
	w.Reset()
	src.OnSerialize(w, false)
	// header + uint16 health only
	if w.Len() != 3 {
		t.Fatalf("expected 3-byte delta, got %d", w.Len())
	}
	if err := dst.OnDeserialize(wire.NewReader(w.Bytes()), false); err != nil {
		t.Fatalf("delta: %v", err)
	}
	if dst.Health() != 55 {
		t.Fatalf("expected health 55, got %d", dst.Health())
	}
	if dst.Name() != "miner" {
		t.Fatalf("untouched field changed: %q", dst.Name())
	}
}

func TestStatusSettersDirtyOnlyOnChange(t *testing.T) {
	s := NewStatus(replicate.SyncModeOwner)
	s.SetHealth(0)
	if s.IsDirty() {
		t.Fatal("no-op setter must not dirty")
	}
	s.SetHealth(10)
	if !s.IsDirty() {
		t.Fatal("expected dirty after change")
	}
}
