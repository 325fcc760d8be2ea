// Package compress converts continuously-varying vectors and rotations
// into compact wire forms: fixed-point quantization, zigzag varint deltas
// against a remembered baseline, and a 32-bit smallest-three packing for
// unit quaternions.
package compress

import (
	"errors"
	"math"

	"syncwire/server/internal/geom"
	"syncwire/server/internal/wire"
)

// ErrNotFinite reports a value that cannot be quantized.
var ErrNotFinite = errors.New("compress: value is not finite")

// ScaleToLong quantizes v to a fixed-point integer at the given precision.
// A precision of 0.01 keeps centimeter accuracy for meter-scale values.
func ScaleToLong(v float32, precision float32) (int64, error) {
	scaled := float64(v) / float64(precision)
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return 0, ErrNotFinite
	}
	return int64(math.Round(scaled)), nil
}

// ScaleToFloat is the inverse of ScaleToLong.
func ScaleToFloat(v int64, precision float32) float32 {
	return float32(float64(v) * float64(precision))
}

// QuantizeVector3 quantizes each component of v.
func QuantizeVector3(v geom.Vector3, precision float32) (geom.Vector3Long, error) {
	x, err := ScaleToLong(v.X, precision)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	y, err := ScaleToLong(v.Y, precision)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	z, err := ScaleToLong(v.Z, precision)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	return geom.Vector3Long{X: x, Y: y, Z: z}, nil
}

// DequantizeVector3 is the inverse of QuantizeVector3.
func DequantizeVector3(v geom.Vector3Long, precision float32) geom.Vector3 {
	return geom.Vector3{
		X: ScaleToFloat(v.X, precision),
		Y: ScaleToFloat(v.Y, precision),
		Z: ScaleToFloat(v.Z, precision),
	}
}

// CompressLong writes current as a zigzag varint delta against baseline.
// The caller must advance its baseline to current after a successful send;
// both sides must advance identically or drift accumulates undetected.
func CompressLong(w *wire.Writer, baseline, current int64) {
	w.WriteVarInt(current - baseline)
}

// DecompressLong reads a delta and applies it to baseline.
func DecompressLong(r *wire.Reader, baseline int64) (int64, error) {
	delta, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	return baseline + delta, nil
}

// CompressVector3Long delta-encodes each component.
func CompressVector3Long(w *wire.Writer, baseline, current geom.Vector3Long) {
	CompressLong(w, baseline.X, current.X)
	CompressLong(w, baseline.Y, current.Y)
	CompressLong(w, baseline.Z, current.Z)
}

// DecompressVector3Long reads three component deltas against baseline.
func DecompressVector3Long(r *wire.Reader, baseline geom.Vector3Long) (geom.Vector3Long, error) {
	x, err := DecompressLong(r, baseline.X)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	y, err := DecompressLong(r, baseline.Y)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	z, err := DecompressLong(r, baseline.Z)
	if err != nil {
		return geom.Vector3Long{}, err
	}
	return geom.Vector3Long{X: x, Y: y, Z: z}, nil
}
