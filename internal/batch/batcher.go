// Package batch accumulates serialized messages into timestamped,
// size-bounded frames ready for the transport. Batching amortizes the
// per-packet transport overhead for the many small messages a tick
// produces.
package batch

import (
	"syncwire/server/internal/wire"
)

// TimestampSize is the fixed frame header: the send timestamp as a
// little-endian float64.
const TimestampSize = 8

// MaxMessageOverhead reports the worst-case per-message framing overhead
// for a transport whose packets carry at most maxPacketSize bytes.
func MaxMessageOverhead(maxPacketSize int) int {
	return wire.VarUintSize(uint64(maxPacketSize))
}

type frame struct {
	timestamp float64
	body      []byte
}

// Batcher packs messages into frames whose body stays at or under the
// configured threshold. A single message larger than the threshold forms
// its own oversized frame; messages are never split. Not safe for
// concurrent use; each connection owns its batchers.
type Batcher struct {
	threshold int

	// Finished frames in FIFO order. Bodies are length-prefixed per
	// message; the timestamp header is written when a frame is pulled.
	full []frame

	pending frame
}

// NewBatcher returns a batcher with the given body-size threshold.
func NewBatcher(threshold int) *Batcher {
	return &Batcher{threshold: threshold}
}

// Add appends one serialized message, prefixed with its varint length, to
// the pending frame, rolling the frame over first if the message would
// push its body past the threshold. The timestamp of the first message
// queued into a frame becomes the frame's header timestamp.
func (b *Batcher) Add(message []byte, timestamp float64) {
	size := wire.VarUintSize(uint64(len(message))) + len(message)
	if len(b.pending.body) > 0 && len(b.pending.body)+size > b.threshold {
		b.full = append(b.full, b.pending)
		b.pending = frame{}
	}
	if len(b.pending.body) == 0 {
		b.pending.timestamp = timestamp
	}
	w := wire.NewWriter()
	w.WriteVarUint(uint64(len(message)))
	b.pending.body = append(b.pending.body, w.Bytes()...)
	b.pending.body = append(b.pending.body, message...)
}

// Next pops the oldest finished frame into w: the 8-byte timestamp header
// followed by the frame body. It reports false when no finished frame is
// queued; call Flush first to drain the pending frame.
func (b *Batcher) Next(w *wire.Writer) bool {
	if len(b.full) == 0 {
		return false
	}
	f := b.full[0]
	b.full = b.full[1:]
	w.WriteFloat64(f.timestamp)
	w.WriteRaw(f.body)
	return true
}

// Flush finalizes the pending frame, if any, so Next can emit it. Empty
// frames are never emitted.
func (b *Batcher) Flush() {
	if len(b.pending.body) > 0 {
		b.full = append(b.full, b.pending)
		b.pending = frame{}
	}
}

// Clear drops all buffered frames without emitting them. Used when a
// connection goes away.
func (b *Batcher) Clear() {
	b.full = nil
	b.pending = frame{}
}

// Empty reports whether the batcher holds no data at all.
func (b *Batcher) Empty() bool {
	return len(b.full) == 0 && len(b.pending.body) == 0
}
