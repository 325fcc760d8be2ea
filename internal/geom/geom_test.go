package geom

import (
	"math"
	"testing"
)

func TestLerpEndpointsAndMidpoint(t *testing.T) {
	a := Vector3{X: 1, Y: 2, Z: 3}
	b := Vector3{X: 3, Y: 6, Z: -1}

	if got := Lerp(a, b, 0); got != a {
		t.Fatalf("expected %v at t=0, got %v", a, got)
	}
	if got := Lerp(a, b, 1); got != b {
		t.Fatalf("expected %v at t=1, got %v", b, got)
	}
	mid := Lerp(a, b, 0.5)
	want := Vector3{X: 2, Y: 4, Z: 1}
	if mid != want {
		t.Fatalf("expected midpoint %v, got %v", want, mid)
	}
}

func TestNormalizedDegenerateFallsBackToIdentity(t *testing.T) {
	if got := (Quaternion{}).Normalized(); got != QuaternionIdentity {
		t.Fatalf("expected identity for zero quaternion, got %v", got)
	}

	q := Quaternion{X: 0, Y: 3, Z: 0, W: 4}.Normalized()
	if n := q.Norm(); math.Abs(float64(n)-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", n)
	}
}

func TestSlerpHalfwayBetweenIdentityAndQuarterTurn(t *testing.T) {
	// 90 degree rotation about Y.
	s := float32(math.Sin(math.Pi / 4))
	c := float32(math.Cos(math.Pi / 4))
	quarter := Quaternion{Y: s, W: c}

	half := Slerp(QuaternionIdentity, quarter, 0.5)
	// 45 degree rotation about Y.
	wantS := math.Sin(math.Pi / 8)
	wantC := math.Cos(math.Pi / 8)
	if math.Abs(float64(half.Y)-wantS) > 1e-5 || math.Abs(float64(half.W)-wantC) > 1e-5 {
		t.Fatalf("expected 45 degree rotation, got %v", half)
	}
}

func TestSlerpTakesShortArc(t *testing.T) {
	a := QuaternionIdentity
	// Same rotation as identity, opposite hemisphere.
	b := Quaternion{W: -1}

	got := Slerp(a, b, 0.5)
	if ang := Angle(a, got); ang > 1e-5 {
		t.Fatalf("expected no rotation across the double cover, got angle %v", ang)
	}
}

func TestAngleBetweenRotations(t *testing.T) {
	s := float32(math.Sin(math.Pi / 4))
	c := float32(math.Cos(math.Pi / 4))
	quarter := Quaternion{Y: s, W: c}

	if ang := Angle(QuaternionIdentity, quarter); math.Abs(ang-math.Pi/2) > 1e-5 {
		t.Fatalf("expected pi/2, got %v", ang)
	}
	// Single-precision dot products land acos a few 1e-4 off exact zero.
	if ang := Angle(quarter, quarter); ang > 1e-3 {
		t.Fatalf("expected zero angle, got %v", ang)
	}
}
