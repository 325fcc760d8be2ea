// Package wire implements the binary codec shared by both ends of the
// protocol: little-endian fixed-width scalars, varint-prefixed strings and
// blobs, and the tiered variable-length integer scheme. Every byte layout
// here is part of the wire format and must not change.
package wire

import (
	"encoding/binary"
	"math"

	"syncwire/server/internal/geom"
)

// Writer appends encoded values to an owned, growable byte buffer.
// The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with a small pre-sized buffer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the written bytes. The slice aliases the writer's buffer
// and is invalidated by further writes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reset truncates the buffer without releasing its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// WriteRaw appends p verbatim.
func (w *Writer) WriteRaw(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteBool appends a bool as a single 0/1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint16 appends v little-endian.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends v little-endian.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteUint64 appends v little-endian.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteInt8 appends v as one byte.
func (w *Writer) WriteInt8(v int8) { w.WriteUint8(uint8(v)) }

// WriteInt16 appends v little-endian.
func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

// WriteInt32 appends v little-endian.
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

// WriteInt64 appends v little-endian.
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteFloat32 appends the IEEE 754 bits of v little-endian.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends the IEEE 754 bits of v little-endian.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString appends a varint byte length followed by the raw UTF-8
// bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteVarUint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytesAndSize appends a +1-biased varint length then the bytes.
// A nil slice encodes as 0, meaning absent; an empty non-nil slice
// encodes as 1 with no payload.
func (w *Writer) WriteBytesAndSize(p []byte) {
	if p == nil {
		w.WriteVarUint(0)
		return
	}
	w.WriteVarUint(uint64(len(p)) + 1)
	w.buf = append(w.buf, p...)
}

// WriteVector3 appends three fixed-width floats.
func (w *Writer) WriteVector3(v geom.Vector3) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

// WriteVector4 appends four fixed-width floats.
func (w *Writer) WriteVector4(v geom.Vector4) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
	w.WriteFloat32(v.W)
}

// WriteQuaternion appends the four raw float components.
func (w *Writer) WriteQuaternion(q geom.Quaternion) {
	w.WriteFloat32(q.X)
	w.WriteFloat32(q.Y)
	w.WriteFloat32(q.Z)
	w.WriteFloat32(q.W)
}

// WriteBoolNullable appends a presence flag and, when present, the value.
func (w *Writer) WriteBoolNullable(v *bool) {
	w.WriteBool(v != nil)
	if v != nil {
		w.WriteBool(*v)
	}
}

// WriteUint32Nullable appends a presence flag and, when present, the value.
func (w *Writer) WriteUint32Nullable(v *uint32) {
	w.WriteBool(v != nil)
	if v != nil {
		w.WriteUint32(*v)
	}
}

// WriteFloat64Nullable appends a presence flag and, when present, the value.
func (w *Writer) WriteFloat64Nullable(v *float64) {
	w.WriteBool(v != nil)
	if v != nil {
		w.WriteFloat64(*v)
	}
}
