package ws

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"syncwire/server/internal/transport"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestRoundTripThroughWebsocket(t *testing.T) {
	tr := New(Config{}, nil)

	connected := make(chan uint64, 1)
	type inbound struct {
		channel transport.Channel
		data    []byte
	}
	received := make(chan inbound, 1)
	tr.Start(transport.Callbacks{
		OnConnected: func(id uint64, addr string) { connected <- id },
		OnData: func(id uint64, channel transport.Channel, data []byte) {
			copied := make([]byte, len(data))
			copy(copied, data)
			received <- inbound{channel, copied}
		},
	})

	server := httptest.NewServer(tr.Handler())
	defer server.Close()
	defer tr.Close()

	client := dial(t, server)
	defer client.Close()

	var connID uint64
	select {
	case connID = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnConnected")
	}

	// Client frame: channel prefix + payload.
	if err := client.WriteMessage(websocket.BinaryMessage, []byte{byte(transport.Unreliable), 1, 2, 3}); err != nil {
		t.Fatalf("client write: %v", err)
	}
	select {
	case got := <-received:
		if got.channel != transport.Unreliable || !bytes.Equal(got.data, []byte{1, 2, 3}) {
			t.Fatalf("unexpected inbound frame: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}

	// Server frame back to the client.
	if err := tr.Send(connID, transport.Reliable, []byte{9, 8}); err != nil {
		t.Fatalf("server send: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, frame, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("expected binary message, got %d", kind)
	}
	if !bytes.Equal(frame, []byte{byte(transport.Reliable), 9, 8}) {
		t.Fatalf("unexpected outbound frame: %x", frame)
	}
}

func TestDisconnectFiresCallback(t *testing.T) {
	tr := New(Config{}, nil)

	connected := make(chan uint64, 1)
	disconnected := make(chan uint64, 1)
	tr.Start(transport.Callbacks{
		OnConnected:    func(id uint64, addr string) { connected <- id },
		OnDisconnected: func(id uint64) { disconnected <- id },
	})

	server := httptest.NewServer(tr.Handler())
	defer server.Close()
	defer tr.Close()

	client := dial(t, server)
	var connID uint64
	select {
	case connID = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnConnected")
	}

	client.Close()
	select {
	case id := <-disconnected:
		if id != connID {
			t.Fatalf("expected disconnect for %d, got %d", connID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnDisconnected")
	}

	if err := tr.Send(connID, transport.Reliable, []byte{1}); err != transport.ErrUnknownConnection {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
}

func TestUnknownChannelPrefixIsIgnored(t *testing.T) {
	tr := New(Config{}, nil)

	received := make(chan struct{}, 1)
	connected := make(chan struct{}, 1)
	tr.Start(transport.Callbacks{
		OnConnected: func(uint64, string) { connected <- struct{}{} },
		OnData: func(uint64, transport.Channel, []byte) {
			received <- struct{}{}
		},
	})

	server := httptest.NewServer(tr.Handler())
	defer server.Close()
	defer tr.Close()

	client := dial(t, server)
	defer client.Close()
	<-connected

	if err := client.WriteMessage(websocket.BinaryMessage, []byte{200, 1}); err != nil {
		t.Fatalf("client write: %v", err)
	}
	select {
	case <-received:
		t.Fatal("expected frame with unknown channel to be dropped")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHandlerRefusesBeforeStart(t *testing.T) {
	tr := New(Config{}, nil)
	server := httptest.NewServer(tr.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("expected dial to fail before Start")
	}
}
