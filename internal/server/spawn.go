package server

import (
	"encoding/binary"
	"fmt"
	"math"

	"syncwire/server/internal/conn"
	"syncwire/server/internal/geom"
	"syncwire/server/internal/proto"
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/shard"
	"syncwire/server/internal/telemetry"
	"syncwire/server/internal/transport"
	"syncwire/server/internal/wire"
)

// transformLike lets the spawn message carry a pose without the server
// knowing concrete component types.
type transformLike interface {
	Position() geom.Vector3
	Rotation() geom.Quaternion
	Scale() geom.Vector3
}

func frameTimestamp(raw []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(raw))
}

// Spawn registers identity, makes every ready connection an observer
// and sends the spawn message with the initial state payload. ownerConn
// zero spawns a server-owned object.
func (s *Server) Spawn(identity *replicate.Identity, ownerConn uint64) error {
	if identity.NetID == 0 {
		identity.NetID = s.allocator.Allocate()
	}
	identity.OwnerConnID = ownerConn
	s.identities.Store(identity.NetID, identity)
	s.metrics.Store(telemetry.MetricSpawnedObjects, uint64(s.identities.Len()))

	if ownerConn != 0 {
		if s.conns.TryWith(ownerConn, func(c *conn.Connection) {
			c.AddOwned(identity.NetID)
		}) != shard.Present {
			s.logger.Printf("server: spawn %d with unknown owner %d", identity.NetID, ownerConn)
		}
	}

	ownerW := wire.NewWriter()
	observerW := wire.NewWriter()
	identity.SerializeServer(true, ownerW, observerW)

	now := s.LocalTime()
	var sendErr error
	s.conns.Range(func(connID uint64, c *conn.Connection) bool {
		if !c.Ready {
			return true
		}
		identity.AddObserver(connID)
		c.AddObserving(identity.NetID)
		payload := observerW.Bytes()
		if connID == ownerConn {
			payload = ownerW.Bytes()
		}
		if err := c.SendMessage(transport.Reliable, spawnMessage(identity, connID == ownerConn, payload), now); err != nil {
			sendErr = fmt.Errorf("spawn %d to conn %d: %w", identity.NetID, connID, err)
		}
		return true
	})
	return sendErr
}

func spawnMessage(identity *replicate.Identity, isOwner bool, payload []byte) proto.SpawnMessage {
	msg := proto.SpawnMessage{
		NetID:         identity.NetID,
		IsLocalPlayer: isOwner,
		IsOwner:       isOwner,
		SceneID:       identity.SceneID,
		AssetID:       identity.AssetID,
		Rotation:      geom.QuaternionIdentity,
		Scale:         geom.Vector3{X: 1, Y: 1, Z: 1},
		Payload:       payload,
	}
	for _, comp := range identity.Components() {
		if t, ok := comp.(transformLike); ok {
			msg.Position = t.Position()
			msg.Rotation = t.Rotation()
			msg.Scale = t.Scale()
			break
		}
	}
	return msg
}

// spawnAllFor replays the world to a freshly ready connection inside a
// spawn-started/finished bracket.
func (s *Server) spawnAllFor(c *conn.Connection) error {
	now := s.LocalTime()
	if err := c.SendMessage(transport.Reliable, proto.ObjectSpawnStartedMessage{}, now); err != nil {
		return err
	}

	ownerW := wire.NewWriter()
	observerW := wire.NewWriter()
	for _, netID := range s.identities.Keys() {
		var identity *replicate.Identity
		if s.identities.With(netID, func(id *replicate.Identity) { identity = id }) != shard.Present {
			continue
		}
		identity.AddObserver(c.ID)
		c.AddObserving(netID)

		ownerW.Reset()
		observerW.Reset()
		identity.SerializeServer(true, ownerW, observerW)
		isOwner := identity.OwnerConnID == c.ID
		payload := observerW.Bytes()
		if isOwner {
			payload = ownerW.Bytes()
		}
		if err := c.SendMessage(transport.Reliable, spawnMessage(identity, isOwner, payload), now); err != nil {
			return err
		}
	}
	return c.SendMessage(transport.Reliable, proto.ObjectSpawnFinishedMessage{}, now)
}

// SendRpc broadcasts a client rpc for one component to every ready
// observer of netID.
func (s *Server) SendRpc(netID uint32, componentIndex uint8, functionHash uint16, payload []byte) error {
	var identity *replicate.Identity
	if s.identities.With(netID, func(id *replicate.Identity) { identity = id }) != shard.Present {
		return fmt.Errorf("%w: net id %d", ErrUnknownTarget, netID)
	}
	msg := proto.RpcMessage{
		NetID:          netID,
		ComponentIndex: componentIndex,
		FunctionHash:   functionHash,
		Payload:        payload,
	}
	now := s.LocalTime()
	var sendErr error
	for _, observer := range identity.Observers() {
		s.conns.With(observer, func(c *conn.Connection) {
			if !c.Ready {
				return
			}
			if err := c.SendMessage(transport.Reliable, msg, now); err != nil {
				sendErr = fmt.Errorf("rpc %d to conn %d: %w", functionHash, observer, err)
			}
		})
	}
	return sendErr
}

// Destroy removes an object and tells every observer.
func (s *Server) Destroy(netID uint32) {
	var identity *replicate.Identity
	if s.identities.TryWith(netID, func(id *replicate.Identity) { identity = id }) != shard.Present {
		return
	}
	s.identities.Delete(netID)
	s.metrics.Store(telemetry.MetricSpawnedObjects, uint64(s.identities.Len()))

	now := s.LocalTime()
	msg := proto.ObjectDestroyMessage{NetID: netID}
	for _, observer := range identity.Observers() {
		s.conns.TryWith(observer, func(c *conn.Connection) {
			c.RemoveObserving(netID)
			c.RemoveOwned(netID)
			if err := c.SendMessage(transport.Reliable, msg, now); err != nil {
				s.logger.Printf("server: destroy %d to conn %d: %v", netID, observer, err)
			}
		})
	}
	if identity.OwnerConnID != 0 {
		s.conns.TryWith(identity.OwnerConnID, func(c *conn.Connection) {
			c.RemoveOwned(netID)
		})
	}
}

// Hide keeps an object alive server-side but removes it from a single
// connection's view.
func (s *Server) Hide(netID uint32, connID uint64) {
	outcome := s.identities.TryWith(netID, func(id *replicate.Identity) {
		id.RemoveObserver(connID)
	})
	if outcome != shard.Present {
		return
	}
	now := s.LocalTime()
	s.conns.TryWith(connID, func(c *conn.Connection) {
		c.RemoveObserving(netID)
		if err := c.SendMessage(transport.Reliable, proto.ObjectHideMessage{NetID: netID}, now); err != nil {
			s.logger.Printf("server: hide %d to conn %d: %v", netID, connID, err)
		}
	})
}

// SetOwner transfers ownership of netID to newOwner (zero revokes).
func (s *Server) SetOwner(netID uint32, newOwner uint64) error {
	var identity *replicate.Identity
	if s.identities.TryWith(netID, func(id *replicate.Identity) { identity = id }) != shard.Present {
		return fmt.Errorf("%w: net id %d", ErrUnknownTarget, netID)
	}
	oldOwner := identity.OwnerConnID
	if oldOwner == newOwner {
		return nil
	}
	identity.OwnerConnID = newOwner

	now := s.LocalTime()
	if oldOwner != 0 {
		s.conns.TryWith(oldOwner, func(c *conn.Connection) {
			c.RemoveOwned(netID)
			msg := proto.ChangeOwnerMessage{NetID: netID, IsOwner: false}
			if err := c.SendMessage(transport.Reliable, msg, now); err != nil {
				s.logger.Printf("server: change owner %d to conn %d: %v", netID, oldOwner, err)
			}
		})
	}
	if newOwner != 0 {
		if s.conns.TryWith(newOwner, func(c *conn.Connection) {
			c.AddOwned(netID)
			msg := proto.ChangeOwnerMessage{NetID: netID, IsOwner: true, IsLocalPlayer: true}
			if err := c.SendMessage(transport.Reliable, msg, now); err != nil {
				s.logger.Printf("server: change owner %d to conn %d: %v", netID, newOwner, err)
			}
		}) != shard.Present {
			return fmt.Errorf("%w: new owner conn %d", ErrUnknownTarget, newOwner)
		}
	}
	return nil
}
