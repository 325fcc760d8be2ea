// Package proto defines the typed wire messages and their envelope.
// Every message starts with the 16-bit stable hash of its canonical name;
// receivers dispatch purely on that id. The canonical names (and so the
// ids) are pinned for compatibility with the reference protocol and must
// not change.
package proto

import (
	"syncwire/server/internal/geom"
	"syncwire/server/internal/stablehash"
	"syncwire/server/internal/wire"
)

// IDSize is the byte length of the envelope id.
const IDSize = 2

// Canonical message names. The leading namespace is part of the hashed
// bytes and therefore part of the wire format.
const (
	nameTimeSnapshot        = "Mirror.TimeSnapshotMessage"
	nameReady               = "Mirror.ReadyMessage"
	nameNotReady            = "Mirror.NotReadyMessage"
	nameAddPlayer           = "Mirror.AddPlayerMessage"
	nameScene               = "Mirror.SceneMessage"
	nameCommand             = "Mirror.CommandMessage"
	nameRpc                 = "Mirror.RpcMessage"
	nameSpawn               = "Mirror.SpawnMessage"
	nameChangeOwner         = "Mirror.ChangeOwnerMessage"
	nameObjectSpawnStarted  = "Mirror.ObjectSpawnStartedMessage"
	nameObjectSpawnFinished = "Mirror.ObjectSpawnFinishedMessage"
	nameObjectDestroy       = "Mirror.ObjectDestroyMessage"
	nameObjectHide          = "Mirror.ObjectHideMessage"
	nameEntityState         = "Mirror.EntityStateMessage"
	namePing                = "Mirror.NetworkPingMessage"
	namePong                = "Mirror.NetworkPongMessage"
)

// Envelope ids, derived once at startup.
var (
	TimeSnapshotID        = stablehash.MessageID(nameTimeSnapshot)
	ReadyID               = stablehash.MessageID(nameReady)
	NotReadyID            = stablehash.MessageID(nameNotReady)
	AddPlayerID           = stablehash.MessageID(nameAddPlayer)
	SceneID               = stablehash.MessageID(nameScene)
	CommandID             = stablehash.MessageID(nameCommand)
	RpcID                 = stablehash.MessageID(nameRpc)
	SpawnID               = stablehash.MessageID(nameSpawn)
	ChangeOwnerID         = stablehash.MessageID(nameChangeOwner)
	ObjectSpawnStartedID  = stablehash.MessageID(nameObjectSpawnStarted)
	ObjectSpawnFinishedID = stablehash.MessageID(nameObjectSpawnFinished)
	ObjectDestroyID       = stablehash.MessageID(nameObjectDestroy)
	ObjectHideID          = stablehash.MessageID(nameObjectHide)
	EntityStateID         = stablehash.MessageID(nameEntityState)
	PingID                = stablehash.MessageID(namePing)
	PongID                = stablehash.MessageID(namePong)
)

// Message is any value that can serialize itself, envelope id included.
type Message interface {
	// ID returns the envelope id dispatched on by receivers.
	ID() uint16
	// Serialize appends the id and the body to w.
	Serialize(w *wire.Writer)
}

// Pack serializes msg into a fresh buffer.
func Pack(msg Message) []byte {
	w := wire.NewWriter()
	msg.Serialize(w)
	return w.Bytes()
}

// UnpackID consumes the envelope id from r.
func UnpackID(r *wire.Reader) (uint16, error) {
	return r.ReadUint16()
}

// TimeSnapshotMessage tells the client a batch timestamp alone carries
// the snapshot timing; it has no body.
type TimeSnapshotMessage struct{}

func (TimeSnapshotMessage) ID() uint16 { return TimeSnapshotID }

func (TimeSnapshotMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(TimeSnapshotID)
}

// ReadyMessage marks the sending connection ready for spawn traffic.
type ReadyMessage struct{}

func (ReadyMessage) ID() uint16 { return ReadyID }

func (ReadyMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ReadyID)
}

// NotReadyMessage clears the ready flag, e.g. across scene changes.
type NotReadyMessage struct{}

func (NotReadyMessage) ID() uint16 { return NotReadyID }

func (NotReadyMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(NotReadyID)
}

// AddPlayerMessage asks the server to spawn the caller's player object.
type AddPlayerMessage struct{}

func (AddPlayerMessage) ID() uint16 { return AddPlayerID }

func (AddPlayerMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(AddPlayerID)
}

// SceneOperation selects how a scene message is applied.
type SceneOperation uint8

const (
	SceneOperationNormal SceneOperation = iota
	SceneOperationLoadAdditive
	SceneOperationUnloadAdditive
)

// SceneMessage instructs clients to switch or modify scenes.
type SceneMessage struct {
	SceneName      string
	Operation      SceneOperation
	CustomHandling bool
}

func (SceneMessage) ID() uint16 { return SceneID }

func (m SceneMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(SceneID)
	w.WriteString(m.SceneName)
	w.WriteUint8(uint8(m.Operation))
	w.WriteBool(m.CustomHandling)
}

// ReadSceneMessage decodes a scene message body.
func ReadSceneMessage(r *wire.Reader) (SceneMessage, error) {
	var m SceneMessage
	var err error
	if m.SceneName, err = r.ReadString(); err != nil {
		return SceneMessage{}, err
	}
	op, err := r.ReadUint8()
	if err != nil {
		return SceneMessage{}, err
	}
	if op > uint8(SceneOperationUnloadAdditive) {
		op = uint8(SceneOperationNormal)
	}
	m.Operation = SceneOperation(op)
	if m.CustomHandling, err = r.ReadBool(); err != nil {
		return SceneMessage{}, err
	}
	return m, nil
}

// CommandMessage invokes a client-to-server remote call on a replicated
// object. The payload length on the wire is biased by +1 so zero always
// means absent.
type CommandMessage struct {
	NetID          uint32
	ComponentIndex uint8
	FunctionHash   uint16
	Payload        []byte
}

func (CommandMessage) ID() uint16 { return CommandID }

func (m CommandMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(CommandID)
	w.WriteUint32(m.NetID)
	w.WriteUint8(m.ComponentIndex)
	w.WriteUint16(m.FunctionHash)
	w.WriteUint32(uint32(len(m.Payload)) + 1)
	w.WriteRaw(m.Payload)
}

// ReadCommandMessage decodes a command body.
func ReadCommandMessage(r *wire.Reader) (CommandMessage, error) {
	var m CommandMessage
	var err error
	if m.NetID, err = r.ReadUint32(); err != nil {
		return CommandMessage{}, err
	}
	if m.ComponentIndex, err = r.ReadUint8(); err != nil {
		return CommandMessage{}, err
	}
	if m.FunctionHash, err = r.ReadUint16(); err != nil {
		return CommandMessage{}, err
	}
	if m.Payload, err = readBiasedPayload(r); err != nil {
		return CommandMessage{}, err
	}
	return m, nil
}

// RpcMessage invokes a server-to-client remote call on a replicated
// object; same layout as CommandMessage.
type RpcMessage struct {
	NetID          uint32
	ComponentIndex uint8
	FunctionHash   uint16
	Payload        []byte
}

func (RpcMessage) ID() uint16 { return RpcID }

func (m RpcMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(RpcID)
	w.WriteUint32(m.NetID)
	w.WriteUint8(m.ComponentIndex)
	w.WriteUint16(m.FunctionHash)
	w.WriteUint32(uint32(len(m.Payload)) + 1)
	w.WriteRaw(m.Payload)
}

// ReadRpcMessage decodes an rpc body.
func ReadRpcMessage(r *wire.Reader) (RpcMessage, error) {
	c, err := ReadCommandMessage(r)
	if err != nil {
		return RpcMessage{}, err
	}
	return RpcMessage(c), nil
}

// SpawnMessage creates a replicated object on the client, carrying its
// full initial component state as the payload.
type SpawnMessage struct {
	NetID         uint32
	IsLocalPlayer bool
	IsOwner       bool
	SceneID       uint64
	AssetID       uint32
	Position      geom.Vector3
	Rotation      geom.Quaternion
	Scale         geom.Vector3
	Payload       []byte
}

func (SpawnMessage) ID() uint16 { return SpawnID }

func (m SpawnMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(SpawnID)
	w.WriteUint32(m.NetID)
	w.WriteBool(m.IsLocalPlayer)
	w.WriteBool(m.IsOwner)
	w.WriteUint64(m.SceneID)
	w.WriteUint32(m.AssetID)
	w.WriteVector3(m.Position)
	w.WriteQuaternion(m.Rotation)
	w.WriteVector3(m.Scale)
	w.WriteUint32(uint32(len(m.Payload)) + 1)
	w.WriteRaw(m.Payload)
}

// ReadSpawnMessage decodes a spawn body.
func ReadSpawnMessage(r *wire.Reader) (SpawnMessage, error) {
	var m SpawnMessage
	var err error
	if m.NetID, err = r.ReadUint32(); err != nil {
		return SpawnMessage{}, err
	}
	if m.IsLocalPlayer, err = r.ReadBool(); err != nil {
		return SpawnMessage{}, err
	}
	if m.IsOwner, err = r.ReadBool(); err != nil {
		return SpawnMessage{}, err
	}
	if m.SceneID, err = r.ReadUint64(); err != nil {
		return SpawnMessage{}, err
	}
	if m.AssetID, err = r.ReadUint32(); err != nil {
		return SpawnMessage{}, err
	}
	if m.Position, err = r.ReadVector3(); err != nil {
		return SpawnMessage{}, err
	}
	if m.Rotation, err = r.ReadQuaternion(); err != nil {
		return SpawnMessage{}, err
	}
	if m.Scale, err = r.ReadVector3(); err != nil {
		return SpawnMessage{}, err
	}
	if m.Payload, err = readBiasedPayload(r); err != nil {
		return SpawnMessage{}, err
	}
	return m, nil
}

// ChangeOwnerMessage transfers or revokes ownership of a live object.
type ChangeOwnerMessage struct {
	NetID         uint32
	IsOwner       bool
	IsLocalPlayer bool
}

func (ChangeOwnerMessage) ID() uint16 { return ChangeOwnerID }

func (m ChangeOwnerMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ChangeOwnerID)
	w.WriteUint32(m.NetID)
	w.WriteBool(m.IsOwner)
	w.WriteBool(m.IsLocalPlayer)
}

// ReadChangeOwnerMessage decodes a change-owner body.
func ReadChangeOwnerMessage(r *wire.Reader) (ChangeOwnerMessage, error) {
	var m ChangeOwnerMessage
	var err error
	if m.NetID, err = r.ReadUint32(); err != nil {
		return ChangeOwnerMessage{}, err
	}
	if m.IsOwner, err = r.ReadBool(); err != nil {
		return ChangeOwnerMessage{}, err
	}
	if m.IsLocalPlayer, err = r.ReadBool(); err != nil {
		return ChangeOwnerMessage{}, err
	}
	return m, nil
}

// ObjectSpawnStartedMessage brackets the initial spawn burst.
type ObjectSpawnStartedMessage struct{}

func (ObjectSpawnStartedMessage) ID() uint16 { return ObjectSpawnStartedID }

func (ObjectSpawnStartedMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ObjectSpawnStartedID)
}

// ObjectSpawnFinishedMessage closes the initial spawn burst.
type ObjectSpawnFinishedMessage struct{}

func (ObjectSpawnFinishedMessage) ID() uint16 { return ObjectSpawnFinishedID }

func (ObjectSpawnFinishedMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ObjectSpawnFinishedID)
}

// ObjectDestroyMessage removes a replicated object.
type ObjectDestroyMessage struct {
	NetID uint32
}

func (ObjectDestroyMessage) ID() uint16 { return ObjectDestroyID }

func (m ObjectDestroyMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ObjectDestroyID)
	w.WriteUint32(m.NetID)
}

// ReadObjectDestroyMessage decodes a destroy body.
func ReadObjectDestroyMessage(r *wire.Reader) (ObjectDestroyMessage, error) {
	netID, err := r.ReadUint32()
	if err != nil {
		return ObjectDestroyMessage{}, err
	}
	return ObjectDestroyMessage{NetID: netID}, nil
}

// ObjectHideMessage hides an object without destroying it server-side.
type ObjectHideMessage struct {
	NetID uint32
}

func (ObjectHideMessage) ID() uint16 { return ObjectHideID }

func (m ObjectHideMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(ObjectHideID)
	w.WriteUint32(m.NetID)
}

// ReadObjectHideMessage decodes a hide body.
func ReadObjectHideMessage(r *wire.Reader) (ObjectHideMessage, error) {
	netID, err := r.ReadUint32()
	if err != nil {
		return ObjectHideMessage{}, err
	}
	return ObjectHideMessage{NetID: netID}, nil
}

// EntityStateMessage carries one object's dirty-bit serialization.
type EntityStateMessage struct {
	NetID   uint32
	Payload []byte
}

func (EntityStateMessage) ID() uint16 { return EntityStateID }

func (m EntityStateMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(EntityStateID)
	w.WriteUint32(m.NetID)
	w.WriteUint32(uint32(len(m.Payload)) + 1)
	w.WriteRaw(m.Payload)
}

// ReadEntityStateMessage decodes an entity-state body.
func ReadEntityStateMessage(r *wire.Reader) (EntityStateMessage, error) {
	var m EntityStateMessage
	var err error
	if m.NetID, err = r.ReadUint32(); err != nil {
		return EntityStateMessage{}, err
	}
	if m.Payload, err = readBiasedPayload(r); err != nil {
		return EntityStateMessage{}, err
	}
	return m, nil
}

// PingMessage drives the RTT and clock EMAs; sent on a fixed interval.
type PingMessage struct {
	LocalTime             float64
	PredictedTimeAdjusted float64
}

func (PingMessage) ID() uint16 { return PingID }

func (m PingMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(PingID)
	w.WriteFloat64(m.LocalTime)
	w.WriteFloat64(m.PredictedTimeAdjusted)
}

// ReadPingMessage decodes a ping body.
func ReadPingMessage(r *wire.Reader) (PingMessage, error) {
	var m PingMessage
	var err error
	if m.LocalTime, err = r.ReadFloat64(); err != nil {
		return PingMessage{}, err
	}
	if m.PredictedTimeAdjusted, err = r.ReadFloat64(); err != nil {
		return PingMessage{}, err
	}
	return m, nil
}

// PongMessage answers a ping, echoing the caller's clock.
type PongMessage struct {
	LocalTime                 float64
	PredictionErrorUnadjusted float64
	PredictionErrorAdjusted   float64
}

func (PongMessage) ID() uint16 { return PongID }

func (m PongMessage) Serialize(w *wire.Writer) {
	w.WriteUint16(PongID)
	w.WriteFloat64(m.LocalTime)
	w.WriteFloat64(m.PredictionErrorUnadjusted)
	w.WriteFloat64(m.PredictionErrorAdjusted)
}

// ReadPongMessage decodes a pong body.
func ReadPongMessage(r *wire.Reader) (PongMessage, error) {
	var m PongMessage
	var err error
	if m.LocalTime, err = r.ReadFloat64(); err != nil {
		return PongMessage{}, err
	}
	if m.PredictionErrorUnadjusted, err = r.ReadFloat64(); err != nil {
		return PongMessage{}, err
	}
	if m.PredictionErrorAdjusted, err = r.ReadFloat64(); err != nil {
		return PongMessage{}, err
	}
	return m, nil
}

// readBiasedPayload consumes a +1-biased u32 length then the bytes.
func readBiasedPayload(r *wire.Reader) ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	size := int(n - 1)
	if size == 0 {
		return nil, nil
	}
	p, err := r.ReadRaw(size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}
