package compress

import (
	"math"
	"testing"

	"syncwire/server/internal/geom"
	"syncwire/server/internal/wire"
)

func TestScaleToLongRoundsToNearest(t *testing.T) {
	v, err := ScaleToLong(10.004, 0.01)
	if err != nil {
		t.Fatalf("expected quantization to succeed, got %v", err)
	}
	if v != 1000 {
		t.Fatalf("expected 1000, got %d", v)
	}
	v, err = ScaleToLong(10.006, 0.01)
	if err != nil {
		t.Fatalf("expected quantization to succeed, got %v", err)
	}
	if v != 1001 {
		t.Fatalf("expected 1001, got %d", v)
	}
	if _, err := ScaleToLong(float32(math.NaN()), 0.01); err != ErrNotFinite {
		t.Fatalf("expected ErrNotFinite, got %v", err)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	cases := []struct {
		baseline geom.Vector3Long
		current  geom.Vector3Long
	}{
		{geom.Vector3Long{}, geom.Vector3Long{}},
		{geom.Vector3Long{X: 100, Y: 200, Z: 300}, geom.Vector3Long{X: 100, Y: 200, Z: 300}},
		{geom.Vector3Long{X: 100}, geom.Vector3Long{X: 105, Y: -3, Z: 1}},
		{geom.Vector3Long{X: -50, Y: -50, Z: -50}, geom.Vector3Long{X: 50, Y: -150, Z: 0}},
		{geom.Vector3Long{X: math.MaxInt32}, geom.Vector3Long{X: math.MinInt32}},
	}
	for _, tc := range cases {
		w := wire.NewWriter()
		CompressVector3Long(w, tc.baseline, tc.current)
		r := wire.NewReader(w.Bytes())
		got, err := DecompressVector3Long(r, tc.baseline)
		if err != nil {
			t.Fatalf("expected delta decode to succeed, got %v", err)
		}
		if got != tc.current {
			t.Fatalf("expected %+v, got %+v", tc.current, got)
		}
	}
}

func TestZeroDeltaIsOneBytePerComponent(t *testing.T) {
	w := wire.NewWriter()
	base := geom.Vector3Long{X: 12345, Y: -9999, Z: 42}
	CompressVector3Long(w, base, base)
	if w.Len() != 3 {
		t.Fatalf("expected 3 bytes for a zero delta, got %d", w.Len())
	}
}

func TestQuantizeDequantizeWithinPrecision(t *testing.T) {
	precision := float32(0.01)
	v := geom.Vector3{X: 1.2345, Y: -6.789, Z: 0}
	q, err := QuantizeVector3(v, precision)
	if err != nil {
		t.Fatalf("expected quantization to succeed, got %v", err)
	}
	back := DequantizeVector3(q, precision)
	if math.Abs(float64(back.X-v.X)) > float64(precision)/2+1e-6 {
		t.Fatalf("expected X within half precision, got %v vs %v", back.X, v.X)
	}
	if math.Abs(float64(back.Y-v.Y)) > float64(precision)/2+1e-6 {
		t.Fatalf("expected Y within half precision, got %v vs %v", back.Y, v.Y)
	}
}

func TestQuaternionCompressionRoundTrip(t *testing.T) {
	rotations := []geom.Quaternion{
		geom.QuaternionIdentity,
		{X: 0.707107, W: 0.707107},
		{Y: 1},
		{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
		{X: -0.5, Y: 0.5, Z: -0.5, W: 0.5},
		{X: 0.1, Y: 0.2, Z: 0.3, W: 0.927},
	}
	for _, q := range rotations {
		q = q.Normalized()
		packed := CompressQuaternion(q)
		back := DecompressQuaternion(packed)
		// q and -q describe the same rotation; compare by angle.
		if angle := geom.Angle(q, back); angle > 0.01 {
			t.Fatalf("expected %+v to survive compression, got %+v (angle %v)", q, back, angle)
		}
	}
}

func TestQuaternionCompressionNormalizesInput(t *testing.T) {
	q := geom.Quaternion{X: 2, Y: 0, Z: 0, W: 2}
	back := DecompressQuaternion(CompressQuaternion(q))
	if n := back.Norm(); math.Abs(float64(n)-1) > 1e-4 {
		t.Fatalf("expected unit quaternion, got norm %v", n)
	}
}
