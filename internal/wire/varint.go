package wire

// Tiered variable-length integers. Values up to 240 take one byte; each
// later tier is signaled by a marker byte (241-255) so decoding is
// unambiguous and every value has exactly one encoding (the smallest
// sufficient tier).
//
//	<= 240                  1 byte   value itself
//	<= 2287                 2 bytes  240 + 256*(b0-241) + b1
//	<= 67823                3 bytes  249, then 2288 + 256*b1 + b2
//	<= 2^24-1               4 bytes  250, then 3 raw bytes LE
//	<= 2^32-1               5 bytes  251, then 4 raw bytes LE
//	<= 2^40-1               6 bytes  252, then 5 raw bytes LE
//	<= 2^48-1               7 bytes  253, then 6 raw bytes LE
//	<= 2^56-1               8 bytes  254, then 7 raw bytes LE
//	otherwise               9 bytes  255, then 8 raw bytes LE

// WriteVarUint appends value in the smallest sufficient tier.
func (w *Writer) WriteVarUint(value uint64) {
	switch {
	case value <= 240:
		w.WriteUint8(uint8(value))
	case value <= 2287:
		v := value - 240
		w.WriteUint8(uint8(v>>8) + 241)
		w.WriteUint8(uint8(v))
	case value <= 67823:
		v := value - 2288
		w.WriteUint8(249)
		w.WriteUint8(uint8(v >> 8))
		w.WriteUint8(uint8(v))
	case value <= 0xFFFFFF:
		w.WriteUint8(250)
		w.writeRawLE(value, 3)
	case value <= 0xFFFFFFFF:
		w.WriteUint8(251)
		w.writeRawLE(value, 4)
	case value <= 0xFFFFFFFFFF:
		w.WriteUint8(252)
		w.writeRawLE(value, 5)
	case value <= 0xFFFFFFFFFFFF:
		w.WriteUint8(253)
		w.writeRawLE(value, 6)
	case value <= 0xFFFFFFFFFFFFFF:
		w.WriteUint8(254)
		w.writeRawLE(value, 7)
	default:
		w.WriteUint8(255)
		w.writeRawLE(value, 8)
	}
}

// WriteVarInt zigzag-encodes value then writes it as an unsigned varint.
func (w *Writer) WriteVarInt(value int64) {
	zigzag := uint64((value >> 63) ^ (value << 1))
	w.WriteVarUint(zigzag)
}

func (w *Writer) writeRawLE(value uint64, n int) {
	for i := 0; i < n; i++ {
		w.WriteUint8(uint8(value >> (8 * i)))
	}
}

// ReadVarUint decodes one tiered varint.
func (r *Reader) ReadVarUint() (uint64, error) {
	b0, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	switch {
	case b0 <= 240:
		return uint64(b0), nil
	case b0 <= 248:
		b1, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		return 240 + 256*(uint64(b0)-241) + uint64(b1), nil
	case b0 == 249:
		b1, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		b2, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		return 2288 + 256*uint64(b1) + uint64(b2), nil
	default:
		return r.readRawLE(int(b0) - 247)
	}
}

// ReadVarInt decodes one zigzag varint.
func (r *Reader) ReadVarInt() (int64, error) {
	zigzag, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	return int64(zigzag>>1) ^ -int64(zigzag&1), nil
}

// ReadVarUint32 decodes a varint and rejects values beyond 32 bits.
func (r *Reader) ReadVarUint32() (uint32, error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, ErrOverflow
	}
	return uint32(v), nil
}

func (r *Reader) readRawLE(n int) (uint64, error) {
	var value uint64
	for i := 0; i < n; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		value |= uint64(b) << (8 * i)
	}
	return value, nil
}

// VarUintSize reports the encoded byte length of value.
func VarUintSize(value uint64) int {
	switch {
	case value <= 240:
		return 1
	case value <= 2287:
		return 2
	case value <= 67823:
		return 3
	case value <= 0xFFFFFF:
		return 4
	case value <= 0xFFFFFFFF:
		return 5
	case value <= 0xFFFFFFFFFF:
		return 6
	case value <= 0xFFFFFFFFFFFF:
		return 7
	case value <= 0xFFFFFFFFFFFFFF:
		return 8
	default:
		return 9
	}
}
