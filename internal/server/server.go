// Package server drives the replication engine: it owns the tick loop,
// tracks connections and identities, dispatches inbound messages and
// broadcasts dirty state. Transport callbacks never touch world state
// directly; they enqueue events that the tick goroutine drains.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncwire/server/internal/conn"
	"syncwire/server/internal/interp"
	"syncwire/server/internal/proto"
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/rpc"
	"syncwire/server/internal/shard"
	"syncwire/server/internal/telemetry"
	"syncwire/server/internal/transport"
	"syncwire/server/internal/wire"
)

// Config tunes the engine.
type Config struct {
	// TickRate is simulation steps per second.
	TickRate int
	// PingInterval spaces the server's ping probes, in seconds.
	PingInterval float64
	// MaxPacketSize caps one transport frame.
	MaxPacketSize int
	// SendInterval is the broadcast spacing handed to interpolation
	// clocks, in seconds.
	SendInterval float64
	// Interpolation tunes remote timelines.
	Interpolation interp.Config
	// IntakeQueueSize bounds buffered transport events.
	IntakeQueueSize int
}

// DefaultConfig runs 30 ticks per second over an MTU-bounded pipe.
func DefaultConfig() Config {
	return Config{
		TickRate:        30,
		PingInterval:    2.0,
		MaxPacketSize:   1200,
		SendInterval:    1.0 / 30.0,
		Interpolation:   interp.DefaultConfig(),
		IntakeQueueSize: 4096,
	}
}

func (c Config) connConfig() conn.Config {
	return conn.Config{
		MaxPacketSize: c.MaxPacketSize,
		SendInterval:  c.SendInterval,
		Interpolation: c.Interpolation,
	}
}

// ErrUnknownTarget is returned when a command or state write names a
// net id the server does not track.
var ErrUnknownTarget = errors.New("server: unknown target object")

// ErrNotAuthorized is returned when a caller lacks authority over the
// object it addressed.
var ErrNotAuthorized = errors.New("server: caller lacks authority")

type eventKind int

const (
	eventConnected eventKind = iota
	eventData
	eventDisconnected
	eventError
)

type event struct {
	kind    eventKind
	connID  uint64
	addr    string
	channel transport.Channel
	data    []byte
	err     error
}

// PlayerFactory builds the player identity for a connection that sent
// AddPlayer. netID is already allocated.
type PlayerFactory func(connID uint64, netID uint32) (*replicate.Identity, error)

type messageHandler func(c *conn.Connection, frameTime float64, r *wire.Reader) error

// Server is the replication engine. All world mutation happens on the
// tick goroutine.
type Server struct {
	config    Config
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	transport transport.Transport
	registry  *rpc.Registry

	conns      *shard.Map[uint64, *conn.Connection]
	identities *shard.Map[uint32, *replicate.Identity]
	allocator  *replicate.IDAllocator

	intake   chan event
	handlers map[uint16]messageHandler

	playerFactory PlayerFactory
	// OnUpdate runs game code in the update phase of every tick.
	OnUpdate func(delta float64)

	start        time.Time
	lastPingAt   float64
	frameScratch *wire.Writer
}

// New wires a server over t. The registry must already hold every
// remote call the components expose.
func New(config Config, t transport.Transport, registry *rpc.Registry, logger telemetry.Logger, metrics telemetry.Metrics) *Server {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	if registry == nil {
		registry = rpc.NewRegistry()
	}
	s := &Server{
		config:       config,
		logger:       logger,
		metrics:      metrics,
		transport:    t,
		registry:     registry,
		conns:        shard.NewMap[uint64, *conn.Connection](),
		identities:   shard.NewMap[uint32, *replicate.Identity](),
		allocator:    replicate.NewIDAllocator(),
		intake:       make(chan event, config.IntakeQueueSize),
		start:        time.Now(),
		frameScratch: wire.NewWriter(),
	}
	s.handlers = map[uint16]messageHandler{
		proto.ReadyID:        s.handleReady,
		proto.NotReadyID:     s.handleNotReady,
		proto.AddPlayerID:    s.handleAddPlayer,
		proto.CommandID:      s.handleCommand,
		proto.EntityStateID:  s.handleEntityState,
		proto.PingID:         s.handlePing,
		proto.PongID:         s.handlePong,
		proto.TimeSnapshotID: s.handleTimeSnapshot,
	}
	return s
}

// SetPlayerFactory installs the AddPlayer hook. Call before Start.
func (s *Server) SetPlayerFactory(f PlayerFactory) {
	s.playerFactory = f
}

// Registry exposes the remote call registry for registration.
func (s *Server) Registry() *rpc.Registry {
	return s.registry
}

// LocalTime is seconds since the server started.
func (s *Server) LocalTime() float64 {
	return time.Since(s.start).Seconds()
}

// Start begins receiving transport events. The tick loop runs
// separately via Run or Tick.
func (s *Server) Start() error {
	return s.transport.Start(transport.Callbacks{
		OnConnected: func(connID uint64, addr string) {
			s.enqueue(event{kind: eventConnected, connID: connID, addr: addr})
		},
		OnData: func(connID uint64, channel transport.Channel, data []byte) {
			copied := make([]byte, len(data))
			copy(copied, data)
			s.enqueue(event{kind: eventData, connID: connID, channel: channel, data: copied})
		},
		OnError: func(connID uint64, err error) {
			s.enqueue(event{kind: eventError, connID: connID, err: err})
		},
		OnDisconnected: func(connID uint64) {
			s.enqueue(event{kind: eventDisconnected, connID: connID})
		},
	})
}

func (s *Server) enqueue(ev event) {
	select {
	case s.intake <- ev:
	default:
		// Dropping the event beats blocking a transport goroutine;
		// the client will be corrected by the next broadcast.
		s.logger.Printf("server: intake queue full, dropping event kind=%d conn=%d", ev.kind, ev.connID)
	}
}

// Run drives the tick loop until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.config.TickRate <= 0 {
		return fmt.Errorf("server: invalid tick rate %d", s.config.TickRate)
	}
	interval := time.Second / time.Duration(s.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.transport.Close()
			return ctx.Err()
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			s.Tick(delta)
		}
	}
}

// ConnectionCount returns the number of tracked connections.
func (s *Server) ConnectionCount() int {
	return s.conns.Len()
}

// IdentityCount returns the number of live replicated objects.
func (s *Server) IdentityCount() int {
	return s.identities.Len()
}

func (s *Server) handleConnected(connID uint64, addr string) {
	c := conn.New(connID, addr, s.config.connConfig())
	// No handshake beyond the flag: accepting the transport connection
	// authenticates it.
	c.Authenticated = true
	s.conns.Store(connID, c)
	s.metrics.Add(telemetry.MetricConnectionsAccepted, 1)
	s.logger.Printf("server: conn %d connected from %s", connID, addr)
}

func (s *Server) handleDisconnected(connID uint64) {
	var owned []uint32
	outcome := s.conns.TryWith(connID, func(c *conn.Connection) {
		owned = c.Owned()
	})
	if outcome != shard.Present {
		s.logger.Printf("server: disconnect for untracked conn %d (%s)", connID, outcome)
		return
	}

	for _, netID := range owned {
		s.Destroy(netID)
	}
	s.identities.Range(func(netID uint32, id *replicate.Identity) bool {
		id.RemoveObserver(connID)
		return true
	})
	s.conns.Delete(connID)
	s.metrics.Add(telemetry.MetricConnectionsClosed, 1)
	s.logger.Printf("server: conn %d disconnected", connID)
}

// handleFrame unpacks one batch frame and dispatches its messages. The
// frame timestamp is the sender's clock when the first message queued.
func (s *Server) handleFrame(connID uint64, data []byte) {
	s.metrics.Add(telemetry.MetricBytesReceived, uint64(len(data)))

	var c *conn.Connection
	if s.conns.TryWith(connID, func(tracked *conn.Connection) { c = tracked }) != shard.Present {
		s.logger.Printf("server: frame from untracked conn %d", connID)
		return
	}

	r := wire.NewReader(data)
	rawTime, err := r.ReadRaw(8)
	if err != nil {
		s.logger.Printf("server: conn %d sent short frame: %v", connID, err)
		return
	}
	frameTime := frameTimestamp(rawTime)
	c.OnTimeSnapshot(frameTime, s.LocalTime())

	for r.Remaining() > 0 {
		length, err := r.ReadVarUint()
		if err != nil {
			s.logger.Printf("server: conn %d frame truncated: %v", connID, err)
			return
		}
		body, err := r.ReadRaw(int(length))
		if err != nil {
			s.logger.Printf("server: conn %d message truncated: %v", connID, err)
			return
		}
		s.dispatch(c, frameTime, body)
	}
}

func (s *Server) dispatch(c *conn.Connection, frameTime float64, body []byte) {
	r := wire.NewReader(body)
	id, err := proto.UnpackID(r)
	if err != nil {
		s.logger.Printf("server: conn %d sent unframed bytes: %v", c.ID, err)
		return
	}
	handler, ok := s.handlers[id]
	if !ok {
		s.metrics.Add(telemetry.MetricUnknownMessages, 1)
		s.logger.Printf("server: conn %d sent unknown message id %d", c.ID, id)
		return
	}
	s.metrics.Add(telemetry.MetricMessagesReceived, 1)
	if err := handler(c, frameTime, r); err != nil {
		s.logger.Printf("server: conn %d message %d failed: %v", c.ID, id, err)
	}
}

func (s *Server) handleReady(c *conn.Connection, _ float64, _ *wire.Reader) error {
	if c.Ready {
		return nil
	}
	c.Ready = true
	return s.spawnAllFor(c)
}

func (s *Server) handleNotReady(c *conn.Connection, _ float64, _ *wire.Reader) error {
	c.Ready = false
	return nil
}

func (s *Server) handleAddPlayer(c *conn.Connection, _ float64, _ *wire.Reader) error {
	if s.playerFactory == nil {
		return fmt.Errorf("server: no player factory installed")
	}
	if !c.Ready {
		return fmt.Errorf("server: conn %d requested player before ready", c.ID)
	}
	netID := s.allocator.Allocate()
	identity, err := s.playerFactory(c.ID, netID)
	if err != nil {
		return fmt.Errorf("player factory: %w", err)
	}
	identity.NetID = netID
	return s.Spawn(identity, c.ID)
}

func (s *Server) handleCommand(c *conn.Connection, _ float64, r *wire.Reader) error {
	msg, err := proto.ReadCommandMessage(r)
	if err != nil {
		return err
	}
	if s.registry.RequiresAuthority(msg.FunctionHash) && !c.Owns(msg.NetID) {
		s.metrics.Add(telemetry.MetricRejectedCommands, 1)
		return fmt.Errorf("%w: conn %d on object %d", ErrNotAuthorized, c.ID, msg.NetID)
	}

	var target rpc.Target
	outcome := s.identities.TryWith(msg.NetID, func(id *replicate.Identity) {
		if comp := id.Component(msg.ComponentIndex); comp != nil {
			target = comp
		}
	})
	switch outcome {
	case shard.Absent:
		return fmt.Errorf("%w: net id %d", ErrUnknownTarget, msg.NetID)
	case shard.Locked:
		// Contended this tick; the client retries by resending.
		s.logger.Printf("server: object %d locked, command %d skipped", msg.NetID, msg.FunctionHash)
		return nil
	}
	if target == nil {
		return fmt.Errorf("%w: object %d has no component %d", ErrUnknownTarget, msg.NetID, msg.ComponentIndex)
	}
	return s.registry.Invoke(msg.FunctionHash, rpc.KindCommand, target, c.ID, wire.NewReader(msg.Payload))
}

func (s *Server) handleEntityState(c *conn.Connection, frameTime float64, r *wire.Reader) error {
	msg, err := proto.ReadEntityStateMessage(r)
	if err != nil {
		return err
	}
	if !c.Owns(msg.NetID) {
		return fmt.Errorf("%w: conn %d wrote state for object %d", ErrNotAuthorized, c.ID, msg.NetID)
	}

	var applyErr error
	outcome := s.identities.TryWith(msg.NetID, func(id *replicate.Identity) {
		applyErr = id.DeserializeServer(wire.NewReader(msg.Payload))
		if applyErr != nil {
			return
		}
		now := s.LocalTime()
		for _, comp := range id.Components() {
			if buffered, ok := comp.(snapshotBuffered); ok {
				buffered.BufferSnapshot(frameTime, now)
			}
		}
	})
	if outcome == shard.Absent {
		return fmt.Errorf("%w: net id %d", ErrUnknownTarget, msg.NetID)
	}
	if outcome == shard.Locked {
		s.logger.Printf("server: object %d locked, state write skipped", msg.NetID)
		return nil
	}
	return applyErr
}

func (s *Server) handlePing(c *conn.Connection, _ float64, r *wire.Reader) error {
	msg, err := proto.ReadPingMessage(r)
	if err != nil {
		return err
	}
	now := s.LocalTime()
	pong := proto.PongMessage{
		LocalTime:                 msg.LocalTime,
		PredictionErrorUnadjusted: now - msg.PredictedTimeAdjusted,
		PredictionErrorAdjusted:   now - msg.PredictedTimeAdjusted,
	}
	return c.SendMessage(transport.Unreliable, pong, now)
}

// handlePong closes the loop on the server's own ping probes.
func (s *Server) handlePong(c *conn.Connection, _ float64, r *wire.Reader) error {
	msg, err := proto.ReadPongMessage(r)
	if err != nil {
		return err
	}
	rtt := s.LocalTime() - msg.LocalTime
	c.UpdateRTT(rtt)
	s.metrics.Observe(telemetry.MetricRTTSeconds, rtt)
	return nil
}

func (s *Server) handleTimeSnapshot(c *conn.Connection, frameTime float64, _ *wire.Reader) error {
	// The batch timestamp already fed the remote timeline in
	// handleFrame; the message itself carries nothing.
	_ = frameTime
	return nil
}

// snapshotBuffered is implemented by components that stage
// client-authority state on an interpolation timeline.
type snapshotBuffered interface {
	BufferSnapshot(remoteTime, localTime float64)
}

// stepper is implemented by components that advance per tick.
type stepper interface {
	Step(delta float64)
}
