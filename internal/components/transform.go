// Package components provides the built-in replicated components: a
// quantized, delta-compressed transform and a server-authoritative
// status block. Both exercise the replication core the way game code
// would.
package components

import (
	"errors"
	"math"

	"syncwire/server/internal/compress"
	"syncwire/server/internal/geom"
	"syncwire/server/internal/interp"
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/rpc"
	"syncwire/server/internal/stablehash"
	"syncwire/server/internal/wire"
)

// Remote call signatures for the transform, pinned to the reference
// protocol's published hashes.
const (
	SigCmdTeleport             = "System.Void Mirror.NetworkTransformBase::CmdTeleport(UnityEngine.Vector3)"
	SigCmdTeleportWithRotation = "System.Void Mirror.NetworkTransformBase::CmdTeleport(UnityEngine.Vector3,UnityEngine.Quaternion)"
	SigRpcTeleport             = "System.Void Mirror.NetworkTransformBase::RpcTeleport(UnityEngine.Vector3)"
	SigRpcTeleportWithRotation = "System.Void Mirror.NetworkTransformBase::RpcTeleport(UnityEngine.Vector3,UnityEngine.Quaternion)"
)

// changed-bits flags in the delta header.
const (
	transformChangedPosition = 1 << iota
	transformChangedRotation
	transformChangedScale
)

// TransformConfig tunes quantization and client-authority buffering.
type TransformConfig struct {
	// Direction selects server or client authority over the transform.
	Direction replicate.SyncDirection
	// PositionPrecision quantizes position axes, in world units.
	PositionPrecision float32
	// ScalePrecision quantizes scale axes.
	ScalePrecision float32
	// SyncScale includes scale in replication; most objects skip it.
	SyncScale bool
	// SendInterval is the owner's nominal snapshot spacing in seconds,
	// used by the client-authority timeline.
	SendInterval float64
	// Interpolation tunes the client-authority snapshot timeline.
	Interpolation interp.Config
}

// DefaultTransformConfig returns centimeter precision, no scale sync.
func DefaultTransformConfig() TransformConfig {
	return TransformConfig{
		Direction:         replicate.ServerToClient,
		PositionPrecision: 0.01,
		ScalePrecision:    0.01,
		SendInterval:      1.0 / 30.0,
		Interpolation:     interp.DefaultConfig(),
	}
}

// Transform replicates position, rotation and optionally scale.
// Position and scale are quantized and delta-compressed against the
// last serialized baseline; rotation packs into a single uint32.
// Client-authority transforms buffer incoming snapshots and play them
// back on an interpolated timeline instead of applying writes raw.
type Transform struct {
	replicate.Base

	config TransformConfig

	position geom.Vector3
	rotation geom.Quaternion
	scale    geom.Vector3

	// baselines for outgoing deltas
	sentPosition geom.Vector3Long
	sentRotation uint32
	sentScale    geom.Vector3Long
	hasSent      bool

	sender RpcSender

	// baselines for incoming deltas
	recvPosition geom.Vector3Long
	recvRotation uint32
	recvScale    geom.Vector3Long

	// client-authority playback
	snapshots    *interp.Buffer
	timeline     *interp.Clock
	pendingApply interp.Snapshot
	hasPending   bool
}

// NewTransform builds a transform component at the origin.
func NewTransform(config TransformConfig) *Transform {
	t := &Transform{
		Base: replicate.Base{
			Direction: config.Direction,
			Mode:      replicate.SyncModeObservers,
		},
		config:   config,
		rotation: geom.QuaternionIdentity,
		scale:    geom.Vector3{X: 1, Y: 1, Z: 1},
	}
	// Baselines that decode back to the starting pose, so an untouched
	// field in a delta reconstructs exactly.
	t.sentRotation = compress.CompressQuaternion(t.rotation)
	t.recvRotation = t.sentRotation
	if config.Direction == replicate.ClientToServer {
		t.snapshots = interp.NewBuffer(config.Interpolation.BufferLimit)
		t.timeline = interp.NewClock(config.Interpolation)
	}
	return t
}

// Position returns the current position.
func (t *Transform) Position() geom.Vector3 { return t.position }

// Rotation returns the current rotation.
func (t *Transform) Rotation() geom.Quaternion { return t.rotation }

// Scale returns the current scale.
func (t *Transform) Scale() geom.Vector3 { return t.scale }

// SetPosition moves the transform and marks it for replication.
// Non-finite positions are dropped.
func (t *Transform) SetPosition(p geom.Vector3) {
	if t.position == p || !finiteVector(p) {
		return
	}
	t.position = p
	t.SetDirty()
}

func finiteVector(v geom.Vector3) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SetRotation rotates the transform and marks it for replication.
func (t *Transform) SetRotation(q geom.Quaternion) {
	if t.rotation == q {
		return
	}
	t.rotation = q
	t.SetDirty()
}

// SetScale resizes the transform and marks it for replication.
func (t *Transform) SetScale(s geom.Vector3) {
	if t.scale == s || !finiteVector(s) {
		return
	}
	t.scale = s
	t.SetDirty()
}

// Teleport applies an absolute move that skips interpolation: the
// snapshot timeline resets so stale buffered movement cannot drag the
// object back.
func (t *Transform) Teleport(p geom.Vector3, q geom.Quaternion) {
	if !finiteVector(p) {
		return
	}
	t.position = p
	t.rotation = q
	if t.snapshots != nil {
		t.snapshots.Clear()
	}
	t.SetDirty()
}

func (t *Transform) OnSerialize(w *wire.Writer, initial bool) {
	// Setters refuse non-finite values, so quantization only fails on
	// range overflow; the baseline then stands in and the axis simply
	// does not move.
	posQ, err := compress.QuantizeVector3(t.position, t.config.PositionPrecision)
	if err != nil {
		posQ = t.sentPosition
	}
	rotQ := compress.CompressQuaternion(t.rotation)
	scaleQ, err := compress.QuantizeVector3(t.scale, t.config.ScalePrecision)
	if err != nil {
		scaleQ = t.sentScale
	}

	if initial {
		// Late joiners get the delta baseline, not the live pose: every
		// receiver must hold the same baseline or the next delta lands
		// on the wrong state. Until a first delta goes out the current
		// pose is the baseline.
		if !t.hasSent {
			t.sentPosition = posQ
			t.sentRotation = rotQ
			t.sentScale = scaleQ
			t.hasSent = true
		}
		w.WriteVarInt(t.sentPosition.X)
		w.WriteVarInt(t.sentPosition.Y)
		w.WriteVarInt(t.sentPosition.Z)
		w.WriteUint32(t.sentRotation)
		if t.config.SyncScale {
			w.WriteVarInt(t.sentScale.X)
			w.WriteVarInt(t.sentScale.Y)
			w.WriteVarInt(t.sentScale.Z)
		}
		return
	}

	var changed uint8
	if posQ != t.sentPosition {
		changed |= transformChangedPosition
	}
	if rotQ != t.sentRotation {
		changed |= transformChangedRotation
	}
	if t.config.SyncScale && scaleQ != t.sentScale {
		changed |= transformChangedScale
	}
	w.WriteUint8(changed)
	if changed&transformChangedPosition != 0 {
		compress.CompressVector3Long(w, t.sentPosition, posQ)
	}
	if changed&transformChangedRotation != 0 {
		w.WriteUint32(rotQ)
	}
	if changed&transformChangedScale != 0 {
		compress.CompressVector3Long(w, t.sentScale, scaleQ)
	}

	t.sentPosition = posQ
	t.sentRotation = rotQ
	t.sentScale = scaleQ
	t.hasSent = true
}

func (t *Transform) OnDeserialize(r *wire.Reader, initial bool) error {
	if initial {
		var posQ geom.Vector3Long
		var err error
		if posQ.X, err = r.ReadVarInt(); err != nil {
			return err
		}
		if posQ.Y, err = r.ReadVarInt(); err != nil {
			return err
		}
		if posQ.Z, err = r.ReadVarInt(); err != nil {
			return err
		}
		rotQ, err := r.ReadUint32()
		if err != nil {
			return err
		}
		scaleQ := t.recvScale
		if t.config.SyncScale {
			if scaleQ.X, err = r.ReadVarInt(); err != nil {
				return err
			}
			if scaleQ.Y, err = r.ReadVarInt(); err != nil {
				return err
			}
			if scaleQ.Z, err = r.ReadVarInt(); err != nil {
				return err
			}
		}
		t.apply(posQ, rotQ, scaleQ)
		return nil
	}

	changed, err := r.ReadUint8()
	if err != nil {
		return err
	}
	posQ, rotQ, scaleQ := t.recvPosition, t.recvRotation, t.recvScale
	if changed&transformChangedPosition != 0 {
		if posQ, err = compress.DecompressVector3Long(r, t.recvPosition); err != nil {
			return err
		}
	}
	if changed&transformChangedRotation != 0 {
		if rotQ, err = r.ReadUint32(); err != nil {
			return err
		}
	}
	if changed&transformChangedScale != 0 {
		if scaleQ, err = compress.DecompressVector3Long(r, t.recvScale); err != nil {
			return err
		}
	}
	t.apply(posQ, rotQ, scaleQ)
	return nil
}

func (t *Transform) apply(posQ geom.Vector3Long, rotQ uint32, scaleQ geom.Vector3Long) {
	t.recvPosition = posQ
	t.recvRotation = rotQ
	t.recvScale = scaleQ

	position := compress.DequantizeVector3(posQ, t.config.PositionPrecision)
	rotation := compress.DecompressQuaternion(rotQ)
	scale := t.scale
	if t.config.SyncScale {
		scale = compress.DequantizeVector3(scaleQ, t.config.ScalePrecision)
	}

	if t.snapshots != nil {
		// Client authority: stage the state on the timeline; Step
		// plays it back smoothly and re-dirties for observers.
		t.pendingApply = interp.Snapshot{
			Position: position,
			Rotation: rotation,
			Scale:    scale,
		}
		t.hasPending = true
		return
	}

	t.position = position
	t.rotation = rotation
	t.scale = scale
	t.SetDirty()
}

// BufferSnapshot commits the last deserialized client state onto the
// playback timeline. remoteTime is the owner's clock for that state,
// localTime the server clock at receipt.
func (t *Transform) BufferSnapshot(remoteTime, localTime float64) {
	if t.snapshots == nil || !t.hasPending {
		return
	}
	snap := t.pendingApply
	snap.RemoteTime = remoteTime
	snap.LocalTime = localTime
	t.timeline.InsertAndAdjust(t.snapshots, snap, t.config.SendInterval)
	t.hasPending = false
}

// Step advances the client-authority playback timeline by one server
// tick and applies the interpolated state. No-op for server-authority
// transforms.
func (t *Transform) Step(delta float64) {
	if t.snapshots == nil || t.snapshots.Len() == 0 {
		return
	}
	t.timeline.StepTime(delta)
	from, to, alpha := t.timeline.StepInterpolation(t.snapshots)
	state := interp.TransformSnapshot(from, to, alpha)
	t.SetPosition(state.Position)
	t.SetRotation(state.Rotation)
	if t.config.SyncScale {
		t.SetScale(state.Scale)
	}
}

// RpcSender broadcasts a client rpc to an object's observers. The
// server implements it.
type RpcSender interface {
	SendRpc(netID uint32, componentIndex uint8, functionHash uint16, payload []byte) error
}

// SetRpcSender wires the transform's rpc broadcasts. Without a sender
// accepted teleports still apply, they just are not relayed.
func (t *Transform) SetRpcSender(s RpcSender) {
	t.sender = s
}

// broadcastTeleport relays an accepted teleport command to observers as
// the matching client rpc.
func (t *Transform) broadcastTeleport(p geom.Vector3, q *geom.Quaternion) error {
	if t.sender == nil || t.Identity() == nil {
		return nil
	}
	w := wire.NewWriter()
	w.WriteVector3(p)
	sig := SigRpcTeleport
	if q != nil {
		w.WriteQuaternion(*q)
		sig = SigRpcTeleportWithRotation
	}
	return t.sender.SendRpc(t.Identity().NetID, t.ComponentIndex(), stablehash.FunctionHash(sig), w.Bytes())
}

// RegisterRemoteCalls wires the teleport command and rpc pair into reg.
// Call once at assembly time, before the server accepts connections.
func RegisterRemoteCalls(reg *rpc.Registry) error {
	if err := reg.Register("Transform", SigCmdTeleport, rpc.KindCommand, true, cmdTeleport); err != nil {
		return err
	}
	if err := reg.Register("Transform", SigCmdTeleportWithRotation, rpc.KindCommand, true, cmdTeleportWithRotation); err != nil {
		return err
	}
	if err := reg.Register("Transform", SigRpcTeleport, rpc.KindClientRpc, false, rpcTeleport); err != nil {
		return err
	}
	return reg.Register("Transform", SigRpcTeleportWithRotation, rpc.KindClientRpc, false, rpcTeleportWithRotation)
}

// ErrWrongTarget is returned when a remote call resolves to a component
// of another type.
var ErrWrongTarget = errors.New("components: remote call target has wrong type")

func cmdTeleport(target rpc.Target, caller uint64, r *wire.Reader) error {
	t, ok := target.(*Transform)
	if !ok {
		return ErrWrongTarget
	}
	p, err := r.ReadVector3()
	if err != nil {
		return err
	}
	t.Teleport(p, t.rotation)
	return t.broadcastTeleport(p, nil)
}

func cmdTeleportWithRotation(target rpc.Target, caller uint64, r *wire.Reader) error {
	t, ok := target.(*Transform)
	if !ok {
		return ErrWrongTarget
	}
	p, err := r.ReadVector3()
	if err != nil {
		return err
	}
	q, err := r.ReadQuaternion()
	if err != nil {
		return err
	}
	t.Teleport(p, q)
	return t.broadcastTeleport(p, &q)
}

func rpcTeleport(target rpc.Target, caller uint64, r *wire.Reader) error {
	return cmdTeleport(target, caller, r)
}

func rpcTeleportWithRotation(target rpc.Target, caller uint64, r *wire.Reader) error {
	return cmdTeleportWithRotation(target, caller, r)
}
