// Package geom holds the engine-facing vector and quaternion value types
// carried by replicated state. They are plain value types; the replication
// core never owns their lifecycle.
package geom

import "math"

// Vector3 is a 3-component float vector.
type Vector3 struct {
	X, Y, Z float32
}

// Vector4 is a 4-component float vector.
type Vector4 struct {
	X, Y, Z, W float32
}

// Vector3Long is the fixed-point form of a Vector3 after quantization.
type Vector3Long struct {
	X, Y, Z int64
}

// Quaternion is a rotation. Wire operations expect it normalized.
type Quaternion struct {
	X, Y, Z, W float32
}

// QuaternionIdentity is the no-rotation quaternion.
var QuaternionIdentity = Quaternion{W: 1}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Lerp linearly interpolates between a and b by t.
func Lerp(a, b Vector3, t float64) Vector3 {
	return Vector3{
		X: lerp32(a.X, b.X, t),
		Y: lerp32(a.Y, b.Y, t),
		Z: lerp32(a.Z, b.Z, t),
	}
}

func lerp32(a, b float32, t float64) float32 {
	return float32(float64(a) + (float64(b)-float64(a))*t)
}

// Dot returns the quaternion dot product.
func (q Quaternion) Dot(o Quaternion) float32 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float32 {
	return float32(math.Sqrt(float64(q.Dot(q))))
}

// Normalized returns q scaled to unit length. The identity is returned for
// degenerate input so downstream math stays finite.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n < 1e-7 || math.IsNaN(float64(n)) {
		return QuaternionIdentity
	}
	inv := 1 / n
	return Quaternion{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Slerp spherically interpolates between two unit quaternions. Inputs on
// opposite hemispheres are flipped so interpolation takes the short arc.
func Slerp(a, b Quaternion, t float64) Quaternion {
	dot := float64(a.Dot(b))
	if dot < 0 {
		b = Quaternion{-b.X, -b.Y, -b.Z, -b.W}
		dot = -dot
	}
	if dot > 0.9995 {
		// Nearly parallel, fall back to nlerp.
		return Quaternion{
			X: lerp32(a.X, b.X, t),
			Y: lerp32(a.Y, b.Y, t),
			Z: lerp32(a.Z, b.Z, t),
			W: lerp32(a.W, b.W, t),
		}.Normalized()
	}
	theta := math.Acos(dot)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Quaternion{
		X: float32(float64(a.X)*wa + float64(b.X)*wb),
		Y: float32(float64(a.Y)*wa + float64(b.Y)*wb),
		Z: float32(float64(a.Z)*wa + float64(b.Z)*wb),
		W: float32(float64(a.W)*wa + float64(b.W)*wb),
	}
}

// Angle returns the angle in radians between two unit quaternions.
func Angle(a, b Quaternion) float64 {
	dot := math.Abs(float64(a.Dot(b)))
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}
