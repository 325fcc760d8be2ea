package wire

import "errors"

// ErrShortBuffer reports a read past the end of the buffer. The remainder
// of the frame that produced it must be discarded, never re-guessed.
var ErrShortBuffer = errors.New("wire: read past end of buffer")

// ErrOverflow reports a decoded value out of the declared range, e.g. a
// varint too large for the requested width.
var ErrOverflow = errors.New("wire: value out of range")
