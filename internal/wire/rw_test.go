package wire

import (
	"bytes"
	"testing"

	"syncwire/server/internal/geom"
)

func TestScalarRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteUint8(0xAB)
	w.WriteUint16(0xCDEF)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)
	w.WriteInt32(-12345)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)

	r := NewReader(w.Bytes())
	if v, err := r.ReadBool(); err != nil || !v {
		t.Fatalf("expected bool true, got %v err %v", v, err)
	}
	if v, err := r.ReadUint8(); err != nil || v != 0xAB {
		t.Fatalf("expected 0xAB, got %#x err %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0xCDEF {
		t.Fatalf("expected 0xCDEF, got %#x err %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("expected 0xDEADBEEF, got %#x err %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("expected packed u64, got %#x err %v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -12345 {
		t.Fatalf("expected -12345, got %d err %v", v, err)
	}
	if v, err := r.ReadFloat32(); err != nil || v != 1.5 {
		t.Fatalf("expected 1.5, got %v err %v", v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != -2.25 {
		t.Fatalf("expected -2.25, got %v err %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected all bytes consumed, %d left", r.Remaining())
	}
}

func TestLittleEndianLayout(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(0x11223344)
	if !bytes.Equal(w.Bytes(), []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Fatalf("expected little-endian layout, got %x", w.Bytes())
	}
}

func TestStringRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteString("héllo")
	w.WriteString("")

	r := NewReader(w.Bytes())
	if s, err := r.ReadString(); err != nil || s != "héllo" {
		t.Fatalf("expected héllo, got %q err %v", s, err)
	}
	if s, err := r.ReadString(); err != nil || s != "" {
		t.Fatalf("expected empty string, got %q err %v", s, err)
	}
}

func TestBytesAndSizeBias(t *testing.T) {
	w := NewWriter()
	w.WriteBytesAndSize(nil)
	w.WriteBytesAndSize([]byte{})
	w.WriteBytesAndSize([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if p, err := r.ReadBytesAndSize(); err != nil || p != nil {
		t.Fatalf("expected absent blob, got %v err %v", p, err)
	}
	if p, err := r.ReadBytesAndSize(); err != nil || p == nil || len(p) != 0 {
		t.Fatalf("expected present empty blob, got %v err %v", p, err)
	}
	if p, err := r.ReadBytesAndSize(); err != nil || !bytes.Equal(p, []byte{1, 2, 3}) {
		t.Fatalf("expected 010203, got %x err %v", p, err)
	}
}

func TestBlobLengthBeyondBufferFails(t *testing.T) {
	w := NewWriter()
	w.WriteVarUint(100) // claims a 99-byte blob with no payload behind it
	r := NewReader(w.Bytes())
	if _, err := r.ReadBytesAndSize(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestVectorQuaternionRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteVector3(geom.Vector3{X: 1, Y: -2, Z: 3.5})
	w.WriteQuaternion(geom.Quaternion{X: 0, Y: 0.707107, Z: 0, W: 0.707107})

	r := NewReader(w.Bytes())
	v, err := r.ReadVector3()
	if err != nil || v != (geom.Vector3{X: 1, Y: -2, Z: 3.5}) {
		t.Fatalf("expected vector round trip, got %+v err %v", v, err)
	}
	q, err := r.ReadQuaternion()
	if err != nil || q != (geom.Quaternion{X: 0, Y: 0.707107, Z: 0, W: 0.707107}) {
		t.Fatalf("expected quaternion round trip, got %+v err %v", q, err)
	}
}

func TestNullableRoundTrip(t *testing.T) {
	val := uint32(77)
	w := NewWriter()
	w.WriteUint32Nullable(nil)
	w.WriteUint32Nullable(&val)

	r := NewReader(w.Bytes())
	if p, err := r.ReadUint32Nullable(); err != nil || p != nil {
		t.Fatalf("expected absent value, got %v err %v", p, err)
	}
	p, err := r.ReadUint32Nullable()
	if err != nil || p == nil || *p != 77 {
		t.Fatalf("expected 77, got %v err %v", p, err)
	}
}

func TestReaderNeverPanicsOnEmpty(t *testing.T) {
	r := NewReader(nil)
	if _, err := r.ReadUint64(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := r.ReadVector3(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := r.ReadString(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}
