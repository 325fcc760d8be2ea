package wire

import (
	"encoding/binary"
	"math"

	"syncwire/server/internal/geom"
)

// Reader consumes encoded values from a byte slice. It never reads past
// the end: an exhausted buffer yields ErrShortBuffer and leaves the
// position unchanged for the failed read.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader positioned at the start of buf. The reader
// does not copy buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Position reports the current read offset.
func (r *Reader) Position() int {
	return r.pos
}

// ReadRaw consumes n bytes. The returned slice aliases the underlying
// buffer.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	p := r.buf[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

// ReadBool consumes one byte; any non-zero value reads as true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	return b != 0, err
}

// ReadUint8 consumes one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrShortBuffer
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 consumes two little-endian bytes.
func (r *Reader) ReadUint16() (uint16, error) {
	p, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadUint32 consumes four little-endian bytes.
func (r *Reader) ReadUint32() (uint32, error) {
	p, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadUint64 consumes eight little-endian bytes.
func (r *Reader) ReadUint64() (uint64, error) {
	p, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// ReadInt8 consumes one byte as a signed value.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadInt16 consumes two little-endian bytes as a signed value.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadInt32 consumes four little-endian bytes as a signed value.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 consumes eight little-endian bytes as a signed value.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 consumes four bytes as IEEE 754 bits.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 consumes eight bytes as IEEE 754 bits.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString consumes a varint byte length then that many UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		return "", ErrShortBuffer
	}
	p, err := r.ReadRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadBytesAndSize consumes a +1-biased varint length then the bytes.
// A 0 length yields nil (absent). The returned slice is a copy.
func (r *Reader) ReadBytesAndSize() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	size := n - 1
	if size > uint64(r.Remaining()) {
		return nil, ErrShortBuffer
	}
	p, err := r.ReadRaw(int(size))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// ReadVector3 consumes three fixed-width floats.
func (r *Reader) ReadVector3() (geom.Vector3, error) {
	var v geom.Vector3
	var err error
	if v.X, err = r.ReadFloat32(); err != nil {
		return geom.Vector3{}, err
	}
	if v.Y, err = r.ReadFloat32(); err != nil {
		return geom.Vector3{}, err
	}
	if v.Z, err = r.ReadFloat32(); err != nil {
		return geom.Vector3{}, err
	}
	return v, nil
}

// ReadVector4 consumes four fixed-width floats.
func (r *Reader) ReadVector4() (geom.Vector4, error) {
	var v geom.Vector4
	var err error
	if v.X, err = r.ReadFloat32(); err != nil {
		return geom.Vector4{}, err
	}
	if v.Y, err = r.ReadFloat32(); err != nil {
		return geom.Vector4{}, err
	}
	if v.Z, err = r.ReadFloat32(); err != nil {
		return geom.Vector4{}, err
	}
	if v.W, err = r.ReadFloat32(); err != nil {
		return geom.Vector4{}, err
	}
	return v, nil
}

// ReadQuaternion consumes four raw float components.
func (r *Reader) ReadQuaternion() (geom.Quaternion, error) {
	v, err := r.ReadVector4()
	if err != nil {
		return geom.Quaternion{}, err
	}
	return geom.Quaternion{X: v.X, Y: v.Y, Z: v.Z, W: v.W}, nil
}

// ReadBoolNullable consumes a presence flag and, when set, the value.
func (r *Reader) ReadBoolNullable() (*bool, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadUint32Nullable consumes a presence flag and, when set, the value.
func (r *Reader) ReadUint32Nullable() (*uint32, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadFloat64Nullable consumes a presence flag and, when set, the value.
func (r *Reader) ReadFloat64Nullable() (*float64, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := r.ReadFloat64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
