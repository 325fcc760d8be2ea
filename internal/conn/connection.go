// Package conn tracks one client connection on the server: its batched
// outgoing traffic, its authentication and ready state, the objects it
// owns or observes, and the remote timeline driven by the client's time
// snapshots.
package conn

import (
	"errors"
	"fmt"

	"syncwire/server/internal/batch"
	"syncwire/server/internal/interp"
	"syncwire/server/internal/proto"
	"syncwire/server/internal/transport"
	"syncwire/server/internal/wire"
)

// ErrMessageTooLarge is returned when a single message exceeds the
// transport's frame budget; oversized messages are refused rather than
// split.
var ErrMessageTooLarge = errors.New("conn: message exceeds max packet size")

// Config sizes a connection's batching and timeline tracking.
type Config struct {
	// MaxPacketSize caps one transport frame, batch header included.
	MaxPacketSize int
	// SendInterval is the server broadcast interval in seconds; it
	// drives the remote timeline's buffering.
	SendInterval float64
	// Interpolation tunes the remote timeline clock.
	Interpolation interp.Config
}

// DefaultConfig suits a 30 Hz broadcast over an MTU-bounded pipe.
func DefaultConfig() Config {
	return Config{
		MaxPacketSize: 1200,
		SendInterval:  1.0 / 30.0,
		Interpolation: interp.DefaultConfig(),
	}
}

// Connection is the server-side handle for one client.
type Connection struct {
	ID         uint64
	RemoteAddr string

	// Authenticated is set once the handshake accepts the client.
	Authenticated bool
	// Ready gates spawn and state traffic.
	Ready bool

	// RTT is the smoothed round trip time in seconds, updated by the
	// ping/pong exchange.
	RTT float64

	config     Config
	maxMessage int
	reliable   *batch.Batcher
	unreliable *batch.Batcher

	// remoteTimeline tracks the client clock from its time snapshots;
	// client-authority component state is sampled against it.
	remoteTimeline *interp.Clock
	snapshots      *interp.Buffer

	owned     map[uint32]struct{}
	observing map[uint32]struct{}
}

// New builds a connection handle for transport connection id.
func New(id uint64, remoteAddr string, config Config) *Connection {
	threshold := config.MaxPacketSize - batch.TimestampSize
	// The largest single message still has its varint length prefix
	// inside the frame budget, so no batch ever exceeds the packet size.
	maxMessage := threshold - batch.MaxMessageOverhead(config.MaxPacketSize)
	return &Connection{
		ID:             id,
		RemoteAddr:     remoteAddr,
		config:         config,
		maxMessage:     maxMessage,
		reliable:       batch.NewBatcher(threshold),
		unreliable:     batch.NewBatcher(threshold),
		remoteTimeline: interp.NewClock(config.Interpolation),
		snapshots:      interp.NewBuffer(config.Interpolation.BufferLimit),
		owned:          make(map[uint32]struct{}),
		observing:      make(map[uint32]struct{}),
	}
}

// Send batches one message for channel, stamped with the server time.
func (c *Connection) Send(channel transport.Channel, message []byte, now float64) error {
	if len(message) > c.maxMessage {
		return fmt.Errorf("%w: %d bytes over %d budget", ErrMessageTooLarge, len(message), c.maxMessage)
	}
	c.batcher(channel).Add(message, now)
	return nil
}

// SendMessage serializes and batches a typed message.
func (c *Connection) SendMessage(channel transport.Channel, msg proto.Message, now float64) error {
	return c.Send(channel, proto.Pack(msg), now)
}

func (c *Connection) batcher(channel transport.Channel) *batch.Batcher {
	if channel == transport.Unreliable {
		return c.unreliable
	}
	return c.reliable
}

// Update seals pending batches and pushes every full frame to the
// transport. Called once per tick after broadcast; scratch is reused
// across frames.
func (c *Connection) Update(t transport.Transport, scratch *wire.Writer) (frames int, bytes int, err error) {
	flush := func(channel transport.Channel, b *batch.Batcher) error {
		b.Flush()
		for {
			scratch.Reset()
			if !b.Next(scratch) {
				return nil
			}
			frame := scratch.Bytes()
			if sendErr := t.Send(c.ID, channel, frame); sendErr != nil {
				return sendErr
			}
			frames++
			bytes += len(frame)
		}
	}
	if err = flush(transport.Reliable, c.reliable); err != nil {
		return frames, bytes, err
	}
	if err = flush(transport.Unreliable, c.unreliable); err != nil {
		return frames, bytes, err
	}
	return frames, bytes, nil
}

// OnTimeSnapshot feeds one client time snapshot into the remote
// timeline; remoteTime is the client clock, localTime the server clock
// at receipt.
func (c *Connection) OnTimeSnapshot(remoteTime, localTime float64) {
	c.remoteTimeline.InsertAndAdjust(c.snapshots, interp.Snapshot{
		RemoteTime: remoteTime,
		LocalTime:  localTime,
	}, c.config.SendInterval)
}

// StepRemoteTime advances the remote timeline by one server tick.
func (c *Connection) StepRemoteTime(delta float64) {
	c.remoteTimeline.StepTime(delta)
	c.remoteTimeline.StepInterpolation(c.snapshots)
}

// RemoteTimeline returns the interpolated client time the server
// currently renders this connection at.
func (c *Connection) RemoteTimeline() float64 {
	return c.remoteTimeline.RemoteTimeline
}

// RemoteTimescale reports whether the timeline is catching up (>1),
// slowing down (<1) or in step (1).
func (c *Connection) RemoteTimescale() float64 {
	return c.remoteTimeline.RemoteTimescale
}

// BufferTime returns the timeline's current buffering in seconds.
func (c *Connection) BufferTime() float64 {
	return c.remoteTimeline.BufferTime(c.config.SendInterval)
}

// AddOwned records ownership of a net id.
func (c *Connection) AddOwned(netID uint32) {
	c.owned[netID] = struct{}{}
}

// RemoveOwned drops ownership of a net id.
func (c *Connection) RemoveOwned(netID uint32) {
	delete(c.owned, netID)
}

// Owns reports whether this connection owns netID.
func (c *Connection) Owns(netID uint32) bool {
	_, ok := c.owned[netID]
	return ok
}

// Owned returns the owned net ids.
func (c *Connection) Owned() []uint32 {
	out := make([]uint32, 0, len(c.owned))
	for id := range c.owned {
		out = append(out, id)
	}
	return out
}

// AddObserving records that this connection observes netID.
func (c *Connection) AddObserving(netID uint32) {
	c.observing[netID] = struct{}{}
}

// RemoveObserving drops netID from the observed set.
func (c *Connection) RemoveObserving(netID uint32) {
	delete(c.observing, netID)
}

// Observing returns the observed net ids.
func (c *Connection) Observing() []uint32 {
	out := make([]uint32, 0, len(c.observing))
	for id := range c.observing {
		out = append(out, id)
	}
	return out
}

// UpdateRTT folds one round trip sample into the smoothed RTT.
func (c *Connection) UpdateRTT(sample float64) {
	if sample < 0 {
		return
	}
	if c.RTT == 0 {
		c.RTT = sample
		return
	}
	const alpha = 2.0 / (10 + 1)
	c.RTT += alpha * (sample - c.RTT)
}

// PendingBatches reports whether any outgoing data is queued.
func (c *Connection) PendingBatches() bool {
	return !c.reliable.Empty() || !c.unreliable.Empty()
}

// Reset drops queued traffic and object sets, keeping the id.
func (c *Connection) Reset() {
	c.reliable.Clear()
	c.unreliable.Clear()
	c.snapshots.Clear()
	c.owned = make(map[uint32]struct{})
	c.observing = make(map[uint32]struct{})
	c.Ready = false
}
