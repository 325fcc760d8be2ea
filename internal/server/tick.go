package server

import (
	"time"

	"syncwire/server/internal/conn"
	"syncwire/server/internal/proto"
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/telemetry"
	"syncwire/server/internal/transport"
	"syncwire/server/internal/wire"
)

// Tick runs one simulation step: early update pumps the transport
// intake, update advances game and interpolation state, late update
// broadcasts dirty state and flushes every connection's batches.
func (s *Server) Tick(delta float64) {
	started := time.Now()

	s.earlyUpdate()
	s.update(delta)
	s.lateUpdate()

	s.metrics.Observe(telemetry.MetricTickSeconds, time.Since(started).Seconds())
}

func (s *Server) earlyUpdate() {
	for {
		select {
		case ev := <-s.intake:
			switch ev.kind {
			case eventConnected:
				s.handleConnected(ev.connID, ev.addr)
			case eventData:
				s.handleFrame(ev.connID, ev.data)
			case eventDisconnected:
				s.handleDisconnected(ev.connID)
			case eventError:
				s.logger.Printf("server: transport error on conn %d: %v", ev.connID, ev.err)
			}
		default:
			return
		}
	}
}

func (s *Server) update(delta float64) {
	if s.OnUpdate != nil {
		s.OnUpdate(delta)
	}

	s.identities.Range(func(_ uint32, identity *replicate.Identity) bool {
		for _, comp := range identity.Components() {
			if st, ok := comp.(stepper); ok {
				st.Step(delta)
			}
		}
		return true
	})

	s.conns.Range(func(_ uint64, c *conn.Connection) bool {
		c.StepRemoteTime(delta)
		return true
	})
}

func (s *Server) lateUpdate() {
	now := s.LocalTime()

	if now-s.lastPingAt >= s.config.PingInterval {
		s.lastPingAt = now
		s.pingAll(now)
	}

	s.broadcast(now)
	s.flush()
}

// pingAll probes every connection; pongs feed the RTT estimate.
func (s *Server) pingAll(now float64) {
	ping := proto.PingMessage{LocalTime: now, PredictedTimeAdjusted: now}
	s.conns.Range(func(_ uint64, c *conn.Connection) bool {
		if err := c.SendMessage(transport.Unreliable, ping, now); err != nil {
			s.logger.Printf("server: ping conn %d: %v", c.ID, err)
		}
		return true
	})
}

// broadcast serializes every dirty identity once and fans the payloads
// out to the owner and observer streams. A time snapshot rides along so
// each client's interpolation clock sees the batch timestamp even on
// quiet ticks.
func (s *Server) broadcast(now float64) {
	ownerW := wire.NewWriter()
	observerW := wire.NewWriter()

	s.identities.Range(func(netID uint32, identity *replicate.Identity) bool {
		if !identity.IsDirty() {
			return true
		}
		ownerW.Reset()
		observerW.Reset()
		ownerOK, observerOK := identity.SerializeServer(false, ownerW, observerW)
		if !ownerOK && !observerOK {
			return true
		}

		var ownerMsg, observerMsg []byte
		if ownerOK {
			ownerMsg = proto.Pack(proto.EntityStateMessage{NetID: netID, Payload: ownerW.Bytes()})
		}
		if observerOK {
			observerMsg = proto.Pack(proto.EntityStateMessage{NetID: netID, Payload: observerW.Bytes()})
		}

		for _, observer := range identity.Observers() {
			isOwner := observer == identity.OwnerConnID
			msg := observerMsg
			if isOwner {
				msg = ownerMsg
			}
			if msg == nil {
				continue
			}
			s.conns.TryWith(observer, func(c *conn.Connection) {
				if !c.Ready {
					return
				}
				if err := c.Send(transport.Unreliable, msg, now); err != nil {
					s.logger.Printf("server: state %d to conn %d: %v", netID, observer, err)
				}
				s.metrics.Add(telemetry.MetricMessagesSent, 1)
			})
		}
		return true
	})

	timeSnapshot := proto.Pack(proto.TimeSnapshotMessage{})
	s.conns.Range(func(_ uint64, c *conn.Connection) bool {
		if !c.Ready {
			return true
		}
		if err := c.Send(transport.Unreliable, timeSnapshot, now); err != nil {
			s.logger.Printf("server: time snapshot to conn %d: %v", c.ID, err)
		}
		return true
	})
}

// flush seals every connection's batches and hands the frames to the
// transport.
func (s *Server) flush() {
	s.conns.Range(func(_ uint64, c *conn.Connection) bool {
		frames, bytes, err := c.Update(s.transport, s.frameScratch)
		if err != nil {
			s.logger.Printf("server: flush conn %d: %v", c.ID, err)
		}
		if frames > 0 {
			s.metrics.Add(telemetry.MetricBytesSent, uint64(bytes))
		}
		return true
	})
}
