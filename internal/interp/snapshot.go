// Package interp smooths irregular network delivery into continuous
// playback. Timestamped snapshots are buffered per connection, a synthetic
// remote timeline advances at an adjustable timescale, and callers sample
// the two snapshots bracketing the timeline for interpolation.
package interp

import (
	"sort"

	"syncwire/server/internal/geom"
)

// Snapshot is one timestamped remote state sample.
type Snapshot struct {
	// RemoteTime is the sender's clock when the state was captured.
	RemoteTime float64
	// LocalTime is the receiver's clock when the sample arrived.
	LocalTime float64

	Position geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3
}

// Config tunes snapshot buffering and catch-up behavior. Defaults match
// the reference protocol.
type Config struct {
	// BufferLimit caps the snapshot buffer; inserts beyond it are dropped.
	BufferLimit int
	// CatchupNegativeThreshold and CatchupPositiveThreshold are expressed
	// in multiples of the send interval.
	CatchupNegativeThreshold float64
	CatchupPositiveThreshold float64
	// CatchupSpeed and SlowdownSpeed bound how far the timescale moves
	// from 1.0.
	CatchupSpeed  float64
	SlowdownSpeed float64
	// DriftEMAWindow and DeliveryEMAWindow size the two moving averages
	// in sample counts.
	DriftEMAWindow    int
	DeliveryEMAWindow int
	// DynamicAdjustment recomputes the buffer multiplier from observed
	// jitter when enabled.
	DynamicAdjustment          bool
	DynamicAdjustmentTolerance float64
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		BufferLimit:                64,
		CatchupNegativeThreshold:   -1,
		CatchupPositiveThreshold:   1,
		CatchupSpeed:               0.02,
		SlowdownSpeed:              0.04,
		DriftEMAWindow:             60,
		DeliveryEMAWindow:          10,
		DynamicAdjustment:          true,
		DynamicAdjustmentTolerance: 1,
	}
}

// Buffer holds snapshots ordered by remote time. Insertion is
// insert-if-absent; duplicates at the same timestamp are rejected.
type Buffer struct {
	snapshots []Snapshot
	limit     int
}

// NewBuffer returns a buffer that drops inserts beyond limit entries.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Len reports the number of buffered snapshots.
func (b *Buffer) Len() int {
	return len(b.snapshots)
}

// At returns the i-th oldest snapshot.
func (b *Buffer) At(i int) Snapshot {
	return b.snapshots[i]
}

// Latest returns the newest snapshot; ok is false when empty.
func (b *Buffer) Latest() (Snapshot, bool) {
	if len(b.snapshots) == 0 {
		return Snapshot{}, false
	}
	return b.snapshots[len(b.snapshots)-1], true
}

// Insert adds snap ordered by RemoteTime. It reports false when the
// buffer is full or a snapshot with the same RemoteTime already exists.
// A full buffer dropping samples is expected transport-level loss, not an
// error.
func (b *Buffer) Insert(snap Snapshot) bool {
	if len(b.snapshots) >= b.limit {
		return false
	}
	i := sort.Search(len(b.snapshots), func(i int) bool {
		return b.snapshots[i].RemoteTime >= snap.RemoteTime
	})
	if i < len(b.snapshots) && b.snapshots[i].RemoteTime == snap.RemoteTime {
		return false
	}
	b.snapshots = append(b.snapshots, Snapshot{})
	copy(b.snapshots[i+1:], b.snapshots[i:])
	b.snapshots[i] = snap
	return true
}

// Clear drops all snapshots.
func (b *Buffer) Clear() {
	b.snapshots = b.snapshots[:0]
}

// Sample finds the pair bracketing timeline and the normalized fraction t
// between them. Outside the buffered range the nearest snapshot is
// returned as both from and to with t = 0.
func (b *Buffer) Sample(timeline float64) (from, to Snapshot, t float64, fromIndex int) {
	n := len(b.snapshots)
	if n == 0 {
		return Snapshot{}, Snapshot{}, 0, 0
	}
	if timeline < b.snapshots[0].RemoteTime {
		return b.snapshots[0], b.snapshots[0], 0, 0
	}
	last := b.snapshots[n-1]
	if timeline >= last.RemoteTime {
		return last, last, 0, n - 1
	}
	// First snapshot strictly newer than the timeline.
	i := sort.Search(n, func(i int) bool {
		return b.snapshots[i].RemoteTime > timeline
	})
	from = b.snapshots[i-1]
	to = b.snapshots[i]
	span := to.RemoteTime - from.RemoteTime
	if span > 0 {
		t = (timeline - from.RemoteTime) / span
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return from, to, t, i - 1
}

// removeBefore discards snapshots older than index i, keeping the from
// sample so interpolation stays bracketed.
func (b *Buffer) removeBefore(i int) {
	if i <= 0 {
		return
	}
	b.snapshots = append(b.snapshots[:0], b.snapshots[i:]...)
}

// Clock is the synthetic remote clock for one connection: a local
// estimate of the sender's timeline plus drift bookkeeping driving
// catch-up and slowdown.
type Clock struct {
	config Config

	// RemoteTimeline is the local estimate of the sender's clock.
	RemoteTimeline float64
	// RemoteTimescale is the playback speed multiplier, nominally 1.0.
	RemoteTimescale float64
	// BufferTimeMultiplier scales the send interval into the target
	// buffer depth; grows under jitter when dynamic adjustment is on.
	BufferTimeMultiplier float64

	driftEMA    *EMA
	deliveryEMA *EMA
}

// NewClock returns a clock with nominal timescale.
func NewClock(config Config) *Clock {
	return &Clock{
		config:               config,
		RemoteTimescale:      1,
		BufferTimeMultiplier: 2,
		driftEMA:             NewEMA(config.DriftEMAWindow),
		deliveryEMA:          NewEMA(config.DeliveryEMAWindow),
	}
}

// BufferTime is the target buffered playback depth for the given send
// interval.
func (c *Clock) BufferTime(sendInterval float64) float64 {
	return sendInterval * c.BufferTimeMultiplier
}

// JitterStandardDeviation exposes the delivery-time jitter estimate.
func (c *Clock) JitterStandardDeviation() float64 {
	return c.deliveryEMA.StandardDeviation
}

// InsertAndAdjust inserts snap into buffer and retunes the timeline and
// timescale. sendInterval is the sender's nominal snapshot spacing.
func (c *Clock) InsertAndAdjust(buffer *Buffer, snap Snapshot, sendInterval float64) bool {
	if c.config.DynamicAdjustment {
		c.BufferTimeMultiplier = DynamicAdjustment(
			sendInterval,
			c.deliveryEMA.StandardDeviation,
			c.config.DynamicAdjustmentTolerance,
		)
	}
	bufferTime := c.BufferTime(sendInterval)

	// The first sample pins the timeline a buffer behind the sender.
	if buffer.Len() == 0 {
		c.RemoteTimeline = snap.RemoteTime - bufferTime
	}

	if !buffer.Insert(snap) {
		return false
	}

	// Local inter-arrival spacing feeds the jitter estimate.
	if n := buffer.Len(); n >= 2 {
		spacing := buffer.At(n-1).LocalTime - buffer.At(n-2).LocalTime
		c.deliveryEMA.Add(spacing)
	}

	latest, _ := buffer.Latest()
	c.RemoteTimeline = timelineClamp(c.RemoteTimeline, bufferTime, latest.RemoteTime)

	c.driftEMA.Add(latest.RemoteTime - c.RemoteTimeline)
	drift := c.driftEMA.Value - bufferTime

	c.RemoteTimescale = timescale(
		drift,
		c.config.CatchupSpeed,
		c.config.SlowdownSpeed,
		sendInterval*c.config.CatchupNegativeThreshold,
		sendInterval*c.config.CatchupPositiveThreshold,
	)
	return true
}

// StepTime advances the timeline by delta scaled by the current
// timescale.
func (c *Clock) StepTime(delta float64) {
	c.RemoteTimeline += delta * c.RemoteTimescale
}

// StepInterpolation samples the buffer at the current timeline and
// discards snapshots older than the bracketing pair.
func (c *Clock) StepInterpolation(buffer *Buffer) (from, to Snapshot, t float64) {
	from, to, t, fromIndex := buffer.Sample(c.RemoteTimeline)
	buffer.removeBefore(fromIndex)
	return from, to, t
}

// timescale snaps the playback speed to catch-up, slowdown, or nominal
// depending on how far the drift sits outside the thresholds.
func timescale(drift, catchupSpeed, slowdownSpeed, absoluteNegative, absolutePositive float64) float64 {
	if drift > absolutePositive {
		return 1 + catchupSpeed
	}
	if drift < absoluteNegative {
		return 1 - slowdownSpeed
	}
	return 1
}

// timelineClamp keeps the timeline within one buffer of the target
// playback point so bursts cannot run it arbitrarily far off.
func timelineClamp(timeline, bufferTime, latestRemoteTime float64) float64 {
	target := latestRemoteTime - bufferTime
	lower := target - bufferTime
	upper := target + bufferTime
	if timeline < lower {
		return lower
	}
	if timeline > upper {
		return upper
	}
	return timeline
}

// DynamicAdjustment computes the buffer-time multiplier from observed
// jitter so buffering grows under jittery delivery and shrinks when the
// stream is stable.
func DynamicAdjustment(sendInterval, jitterStandardDeviation, tolerance float64) float64 {
	intervalWithJitter := sendInterval + jitterStandardDeviation
	multiples := intervalWithJitter / sendInterval
	return multiples + tolerance
}

// TransformSnapshot interpolates all tracked fields between two samples.
func TransformSnapshot(from, to Snapshot, t float64) Snapshot {
	return Snapshot{
		RemoteTime: from.RemoteTime + (to.RemoteTime-from.RemoteTime)*t,
		LocalTime:  from.LocalTime + (to.LocalTime-from.LocalTime)*t,
		Position:   geom.Lerp(from.Position, to.Position, t),
		Rotation:   geom.Slerp(from.Rotation, to.Rotation, t),
		Scale:      geom.Lerp(from.Scale, to.Scale, t),
	}
}
