package compress

import (
	"math"

	"syncwire/server/internal/geom"
)

// Smallest-three quaternion packing. A unit quaternion's largest-magnitude
// component is implied by the other three, so we store a 2-bit index of
// the largest component and the remaining three scaled into 10 bits each,
// over the range [-1/sqrt2, +1/sqrt2]. Sign is normalized by negating the
// whole quaternion when the largest component is negative (q and -q are
// the same rotation).

const (
	quatMinRange = -0.707107
	quatMaxRange = 0.707107
	tenBitsMax   = 0x3FF
)

func scaleFloatToUint(v float32) uint32 {
	t := (float64(v) - quatMinRange) / (quatMaxRange - quatMinRange)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return uint32(math.Round(t * tenBitsMax))
}

func scaleUintToFloat(v uint32) float32 {
	t := float64(v) / tenBitsMax
	return float32(quatMinRange + t*(quatMaxRange-quatMinRange))
}

// CompressQuaternion packs q into 32 bits. Non-unit input is normalized
// first.
func CompressQuaternion(q geom.Quaternion) uint32 {
	q = q.Normalized()

	components := [4]float32{q.X, q.Y, q.Z, q.W}
	largestIndex := 0
	largestAbs := float32(math.Abs(float64(components[0])))
	for i := 1; i < 4; i++ {
		abs := float32(math.Abs(float64(components[i])))
		if abs > largestAbs {
			largestAbs = abs
			largestIndex = i
		}
	}
	if components[largestIndex] < 0 {
		for i := range components {
			components[i] = -components[i]
		}
	}

	var small [3]float32
	n := 0
	for i := 0; i < 4; i++ {
		if i == largestIndex {
			continue
		}
		small[n] = components[i]
		n++
	}

	return uint32(largestIndex)<<30 |
		scaleFloatToUint(small[0])<<20 |
		scaleFloatToUint(small[1])<<10 |
		scaleFloatToUint(small[2])
}

// DecompressQuaternion unpacks a 32-bit smallest-three rotation. The
// result is normalized.
func DecompressQuaternion(data uint32) geom.Quaternion {
	largestIndex := int(data >> 30)
	a := scaleUintToFloat((data >> 20) & tenBitsMax)
	b := scaleUintToFloat((data >> 10) & tenBitsMax)
	c := scaleUintToFloat(data & tenBitsMax)

	d := float64(1) - float64(a)*float64(a) - float64(b)*float64(b) - float64(c)*float64(c)
	if d < 0 {
		d = 0
	}
	largest := float32(math.Sqrt(d))

	var components [4]float32
	n := 0
	for i := 0; i < 4; i++ {
		if i == largestIndex {
			components[i] = largest
			continue
		}
		components[i] = [3]float32{a, b, c}[n]
		n++
	}
	return geom.Quaternion{
		X: components[0],
		Y: components[1],
		Z: components[2],
		W: components[3],
	}.Normalized()
}
