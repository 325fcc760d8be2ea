package transport

import (
	"bytes"
	"testing"
)

func TestMemoryConnectFiresCallback(t *testing.T) {
	m := NewMemory()
	var gotID uint64
	m.Start(Callbacks{
		OnConnected: func(id uint64, addr string) { gotID = id },
	})
	conn := m.Connect()
	if gotID != conn.ID() {
		t.Fatalf("expected OnConnected with id %d, got %d", conn.ID(), gotID)
	}
}

func TestMemoryClientToServerData(t *testing.T) {
	m := NewMemory()
	var gotChannel Channel
	var gotData []byte
	m.Start(Callbacks{
		OnData: func(id uint64, channel Channel, data []byte) {
			gotChannel = channel
			gotData = data
		},
	})
	conn := m.Connect()
	conn.Send(Unreliable, []byte{1, 2, 3})
	if gotChannel != Unreliable {
		t.Fatalf("expected unreliable channel, got %v", gotChannel)
	}
	if !bytes.Equal(gotData, []byte{1, 2, 3}) {
		t.Fatalf("expected data 010203, got %x", gotData)
	}
}

func TestMemoryServerToClientData(t *testing.T) {
	m := NewMemory()
	m.Start(Callbacks{})
	conn := m.Connect()

	if err := m.Send(conn.ID(), Reliable, []byte{9}); err != nil {
		t.Fatalf("send: %v", err)
	}
	frames := conn.Received()
	if len(frames) != 1 || frames[0].Channel != Reliable || !bytes.Equal(frames[0].Data, []byte{9}) {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	if len(conn.Received()) != 0 {
		t.Fatal("expected Received to drain")
	}
}

func TestMemorySendToUnknownConnection(t *testing.T) {
	m := NewMemory()
	m.Start(Callbacks{})
	if err := m.Send(42, Reliable, nil); err != ErrUnknownConnection {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
}

func TestMemoryDisconnectFiresOnce(t *testing.T) {
	m := NewMemory()
	disconnects := 0
	m.Start(Callbacks{
		OnDisconnected: func(id uint64) { disconnects++ },
	})
	conn := m.Connect()
	conn.Close()
	if err := m.Disconnect(conn.ID()); err != ErrUnknownConnection {
		t.Fatalf("expected ErrUnknownConnection on second disconnect, got %v", err)
	}
	if disconnects != 1 {
		t.Fatalf("expected 1 disconnect, got %d", disconnects)
	}

	// Frames after disconnect are dropped silently.
	conn.Send(Reliable, []byte{1})
}

func TestMemoryCloseDisconnectsEveryone(t *testing.T) {
	m := NewMemory()
	var ids []uint64
	m.Start(Callbacks{
		OnDisconnected: func(id uint64) { ids = append(ids, id) },
	})
	m.Connect()
	m.Connect()
	m.Close()
	if len(ids) != 2 {
		t.Fatalf("expected 2 disconnects, got %d", len(ids))
	}
}
