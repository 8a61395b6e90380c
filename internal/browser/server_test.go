package browser

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

func startTestServer(t *testing.T) (*Server, *bus.Hub) {
	t.Helper()

	hub := bus.NewHub(logging.Default())
	t.Cleanup(hub.Close)

	srv := NewServer("127.0.0.1:0", hub, logging.Default())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return srv, hub
}

// dialBrowser connects an independent WebSocket client implementation
// to the bridge and waits until the server has registered it.
func dialBrowser(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	before := srv.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/", nil)
	if err != nil {
		t.Fatalf("dialing bridge: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return srv.ClientCount() > before })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func readText(t *testing.T, conn *websocket.Conn) *wire.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", kind)
	}
	msg, err := wire.Parse(string(data))
	if err != nil {
		t.Fatalf("parsing frame %q: %v", data, err)
	}
	return msg
}

func TestHandshake_MissingKeyAbortsWithoutUpgrade(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	request := "GET / HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Upgrade: websocket\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	// No 101 response; the server just drops the connection.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 256)
	if n, err := conn.Read(buf); err == nil {
		t.Fatalf("got %q, want closed connection", buf[:n])
	}

	if srv.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", srv.ClientCount())
	}
}

func TestInterop_PingPong(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialBrowser(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"PING"}`)); err != nil {
		t.Fatalf("sending ping: %v", err)
	}

	msg := readText(t, conn)
	if msg.GetString("action") != "PONG" {
		t.Fatalf("response = %s, want PONG", msg)
	}
	if msg.GetInt("timestamp") == 0 {
		t.Error("PONG missing timestamp")
	}
}

func TestInterop_BroadcastReachesAllClients(t *testing.T) {
	srv, hub := startTestServer(t)

	a := dialBrowser(t, srv)
	b := dialBrowser(t, srv)

	hub.Publish(bus.Envelope{
		Action:    bus.ActionDeviceChanged,
		DeviceID:  "light-001",
		Device:    wire.Raw(`{"id":"light-001","status":true}`),
		ChangedBy: "admin",
	})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readText(t, conn)
		if msg.GetString("action") != "DEVICE_CHANGED" {
			t.Fatalf("push = %s", msg)
		}
		if msg.GetString("deviceId") != "light-001" || msg.GetString("changedBy") != "admin" {
			t.Errorf("envelope = %s", msg)
		}
	}
}

func TestCloseFrame_UnregistersClient(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialBrowser(t, srv)

	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline); err != nil {
		t.Fatalf("sending close: %v", err)
	}

	waitFor(t, func() bool { return srv.ClientCount() == 0 })
}

func TestDeadClient_DoesNotStopDelivery(t *testing.T) {
	srv, hub := startTestServer(t)

	dead := dialBrowser(t, srv)
	live := dialBrowser(t, srv)

	// Kill one socket underneath the bridge without a close frame.
	dead.UnderlyingConn().Close()

	// Keep publishing until the failed write evicts the dead client.
	waitFor(t, func() bool {
		hub.Publish(bus.Envelope{
			Action:   bus.ActionDeviceChanged,
			DeviceID: "light-002",
		})
		time.Sleep(20 * time.Millisecond)
		return srv.ClientCount() == 1
	})

	// The surviving client received every broadcast in order.
	msg := readText(t, live)
	if msg.GetString("deviceId") != "light-002" {
		t.Fatalf("push = %s", msg)
	}
}

func TestUnknownAction_Ignored(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialBrowser(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"NOPE"}`)); err != nil {
		t.Fatalf("sending: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("sending: %v", err)
	}

	// The connection survives; a PING still answers.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"PING"}`)); err != nil {
		t.Fatalf("sending ping: %v", err)
	}
	if got := readText(t, conn).GetString("action"); got != "PONG" {
		t.Fatalf("follow-up = %s, want PONG", got)
	}
}
