package conn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"syncwire/server/internal/batch"
	"syncwire/server/internal/proto"
	"syncwire/server/internal/transport"
	"syncwire/server/internal/wire"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPacketSize = 64
	return cfg
}

// unpackFrame splits a batch frame into its timestamp and messages.
func unpackFrame(t *testing.T, frame []byte) (float64, [][]byte) {
	t.Helper()
	if len(frame) < batch.TimestampSize {
		t.Fatalf("frame too short: %d bytes", len(frame))
	}
	timestamp := math.Float64frombits(binary.LittleEndian.Uint64(frame[:8]))
	r := wire.NewReader(frame[8:])
	var messages [][]byte
	for r.Remaining() > 0 {
		n, err := r.ReadVarUint()
		if err != nil {
			t.Fatalf("read message length: %v", err)
		}
		msg, err := r.ReadRaw(int(n))
		if err != nil {
			t.Fatalf("read message body: %v", err)
		}
		messages = append(messages, msg)
	}
	return timestamp, messages
}

func TestSendBatchesPerChannel(t *testing.T) {
	m := transport.NewMemory()
	m.Start(transport.Callbacks{})
	client := m.Connect()

	c := New(client.ID(), "memory:local", testConfig())
	if err := c.Send(transport.Reliable, []byte{1, 2}, 5.0); err != nil {
		t.Fatalf("send reliable: %v", err)
	}
	if err := c.Send(transport.Unreliable, []byte{3}, 5.0); err != nil {
		t.Fatalf("send unreliable: %v", err)
	}
	if !c.PendingBatches() {
		t.Fatal("expected pending batches")
	}

	frames, sentBytes, err := c.Update(m, wire.NewWriter())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if frames != 2 {
		t.Fatalf("expected 2 frames, got %d", frames)
	}
	if sentBytes == 0 {
		t.Fatal("expected nonzero bytes")
	}
	if c.PendingBatches() {
		t.Fatal("expected batches drained")
	}

	received := client.Received()
	if len(received) != 2 {
		t.Fatalf("expected 2 transport frames, got %d", len(received))
	}
	if received[0].Channel != transport.Reliable || received[1].Channel != transport.Unreliable {
		t.Fatalf("unexpected channel order: %v, %v", received[0].Channel, received[1].Channel)
	}

	ts, messages := unpackFrame(t, received[0].Data)
	if ts != 5.0 {
		t.Fatalf("expected timestamp 5.0, got %v", ts)
	}
	if len(messages) != 1 || !bytes.Equal(messages[0], []byte{1, 2}) {
		t.Fatalf("unexpected reliable messages: %v", messages)
	}
}

func TestSendRefusesOversizedMessage(t *testing.T) {
	cfg := testConfig()
	c := New(1, "", cfg)
	huge := make([]byte, cfg.MaxPacketSize)
	if err := c.Send(transport.Reliable, huge, 0); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if c.PendingBatches() {
		t.Fatal("refused message must not be queued")
	}
}

func TestSendBudgetKeepsFramesUnderPacketSize(t *testing.T) {
	cfg := testConfig()
	limit := cfg.MaxPacketSize - batch.TimestampSize - batch.MaxMessageOverhead(cfg.MaxPacketSize)

	c := New(1, "", cfg)
	over := make([]byte, limit+1)
	if err := c.Send(transport.Reliable, over, 0); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}

	m := transport.NewMemory()
	m.Start(transport.Callbacks{})
	client := m.Connect()
	c = New(client.ID(), "", cfg)
	full := make([]byte, limit)
	if err := c.Send(transport.Reliable, full, 0); err != nil {
		t.Fatalf("send at budget: %v", err)
	}
	if _, _, err := c.Update(m, wire.NewWriter()); err != nil {
		t.Fatalf("update: %v", err)
	}

	received := client.Received()
	if len(received) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(received))
	}
	if got := len(received[0].Data); got > cfg.MaxPacketSize {
		t.Fatalf("frame exceeds packet size: %d over %d", got, cfg.MaxPacketSize)
	}
}

func TestSendMessagePacksEnvelope(t *testing.T) {
	m := transport.NewMemory()
	m.Start(transport.Callbacks{})
	client := m.Connect()

	c := New(client.ID(), "", testConfig())
	if err := c.SendMessage(transport.Reliable, proto.ObjectDestroyMessage{NetID: 12}, 1.0); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if _, _, err := c.Update(m, wire.NewWriter()); err != nil {
		t.Fatalf("update: %v", err)
	}

	received := client.Received()
	if len(received) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(received))
	}
	_, messages := unpackFrame(t, received[0].Data)
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	r := wire.NewReader(messages[0])
	id, err := proto.UnpackID(r)
	if err != nil {
		t.Fatalf("unpack id: %v", err)
	}
	if id != proto.ObjectDestroyID {
		t.Fatalf("expected destroy id %d, got %d", proto.ObjectDestroyID, id)
	}
}

func TestUpdateSurfacesTransportErrors(t *testing.T) {
	m := transport.NewMemory()
	m.Start(transport.Callbacks{})

	c := New(99, "", testConfig()) // no such transport connection
	c.Send(transport.Reliable, []byte{1}, 0)
	if _, _, err := c.Update(m, wire.NewWriter()); !errors.Is(err, transport.ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
}

func TestRemoteTimelineTracksClientClock(t *testing.T) {
	cfg := testConfig()
	c := New(1, "", cfg)

	c.OnTimeSnapshot(10.0, 100.0)
	// First snapshot anchors the timeline bufferTime behind.
	want := 10.0 - c.BufferTime()
	if got := c.RemoteTimeline(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected timeline %v, got %v", want, got)
	}
	if c.RemoteTimescale() != 1 {
		t.Fatalf("expected timescale 1, got %v", c.RemoteTimescale())
	}

	before := c.RemoteTimeline()
	c.StepRemoteTime(cfg.SendInterval)
	if got := c.RemoteTimeline(); got <= before {
		t.Fatalf("expected timeline to advance, got %v after %v", got, before)
	}
}

func TestUpdateRTTSmooths(t *testing.T) {
	c := New(1, "", testConfig())
	c.UpdateRTT(0.100)
	if c.RTT != 0.100 {
		t.Fatalf("expected first sample stored, got %v", c.RTT)
	}
	c.UpdateRTT(0.200)
	if c.RTT <= 0.100 || c.RTT >= 0.200 {
		t.Fatalf("expected smoothed value between samples, got %v", c.RTT)
	}
	c.UpdateRTT(-1)
	if c.RTT >= 0.200 {
		t.Fatalf("negative sample must be ignored, got %v", c.RTT)
	}
}

func TestOwnedAndObservingSets(t *testing.T) {
	c := New(1, "", testConfig())
	c.AddOwned(5)
	c.AddObserving(5)
	c.AddObserving(6)
	if !c.Owns(5) || c.Owns(6) {
		t.Fatal("unexpected ownership")
	}
	if len(c.Observing()) != 2 {
		t.Fatalf("expected 2 observed, got %d", len(c.Observing()))
	}
	c.RemoveOwned(5)
	c.RemoveObserving(6)
	if c.Owns(5) || len(c.Observing()) != 1 {
		t.Fatal("removal did not apply")
	}
}

func TestResetDropsStateButKeepsID(t *testing.T) {
	c := New(7, "", testConfig())
	c.Ready = true
	c.AddOwned(1)
	c.Send(transport.Reliable, []byte{1}, 0)
	c.Reset()
	if c.ID != 7 {
		t.Fatalf("expected id kept, got %d", c.ID)
	}
	if c.Ready || c.Owns(1) || c.PendingBatches() {
		t.Fatal("expected state dropped")
	}
}
