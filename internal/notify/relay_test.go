package notify

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

func startTestRelay(t *testing.T) (*Relay, *bus.Hub) {
	t.Helper()

	hub := bus.NewHub(logging.Default())
	t.Cleanup(hub.Close)

	relay := NewRelay("127.0.0.1:0", hub, logging.Default())
	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("starting relay: %v", err)
	}
	t.Cleanup(func() { relay.Close() })

	return relay, hub
}

type testPeer struct {
	t    *testing.T
	conn *net.UDPConn
}

func dialPeer(t *testing.T, addr string) *testPeer {
	t.Helper()

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		t.Fatalf("resolving %s: %v", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })

	return &testPeer{t: t, conn: conn}
}

func (p *testPeer) send(text string) {
	p.t.Helper()
	if _, err := p.conn.Write([]byte(text)); err != nil {
		p.t.Fatalf("sending datagram: %v", err)
	}
}

func (p *testPeer) read() *wire.Message {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	buf := make([]byte, 64*1024)
	n, err := p.conn.Read(buf)
	if err != nil {
		p.t.Fatalf("reading datagram: %v", err)
	}
	msg, err := wire.Parse(string(buf[:n]))
	if err != nil {
		p.t.Fatalf("parsing datagram %q: %v", buf[:n], err)
	}
	return msg
}

func TestRegisterUnregister(t *testing.T) {
	relay, _ := startTestRelay(t)
	peer := dialPeer(t, relay.Addr())

	peer.send(`{"action":"REGISTER"}`)
	msg := peer.read()
	if msg.GetString("status") != "OK" || msg.GetString("action") != "REGISTERED" {
		t.Fatalf("response = %s", msg)
	}
	if relay.ObserverCount() != 1 {
		t.Errorf("ObserverCount() = %d, want 1", relay.ObserverCount())
	}

	peer.send(`{"action":"UNREGISTER"}`)
	msg = peer.read()
	if msg.GetString("action") != "UNREGISTERED" {
		t.Fatalf("response = %s", msg)
	}
	if relay.ObserverCount() != 0 {
		t.Errorf("ObserverCount() = %d, want 0", relay.ObserverCount())
	}
}

func TestPing(t *testing.T) {
	relay, _ := startTestRelay(t)
	peer := dialPeer(t, relay.Addr())

	peer.send(`{"action":"PING"}`)
	msg := peer.read()
	if msg.GetString("action") != "PONG" {
		t.Fatalf("response = %s", msg)
	}
	if msg.GetInt("timestamp") == 0 {
		t.Error("PONG missing timestamp")
	}
}

func TestListClients(t *testing.T) {
	relay, _ := startTestRelay(t)

	a := dialPeer(t, relay.Addr())
	b := dialPeer(t, relay.Addr())

	a.send(`{"action":"REGISTER"}`)
	a.read()
	b.send(`{"action":"REGISTER"}`)
	b.read()

	a.send(`{"action":"LIST_CLIENTS"}`)
	msg := a.read()
	if msg.GetString("action") != "CLIENT_LIST" {
		t.Fatalf("response = %s", msg)
	}
	if msg.GetInt("count") != 2 {
		t.Errorf("count = %d, want 2", msg.GetInt("count"))
	}

	clients := string(msg.GetRaw("clients"))
	if !strings.Contains(clients, a.conn.LocalAddr().String()) {
		t.Errorf("clients %s missing %s", clients, a.conn.LocalAddr())
	}
	if !strings.Contains(clients, b.conn.LocalAddr().String()) {
		t.Errorf("clients %s missing %s", clients, b.conn.LocalAddr())
	}
}

func TestBroadcast_ReachesAllObservers(t *testing.T) {
	relay, hub := startTestRelay(t)

	a := dialPeer(t, relay.Addr())
	b := dialPeer(t, relay.Addr())
	for _, p := range []*testPeer{a, b} {
		p.send(`{"action":"REGISTER"}`)
		p.read()
	}

	hub.Publish(bus.Envelope{
		Action:    bus.ActionDeviceChanged,
		DeviceID:  "light-001",
		Device:    wire.Raw(`{"id":"light-001","status":true}`),
		ChangedBy: "admin",
	})

	for _, p := range []*testPeer{a, b} {
		msg := p.read()
		if msg.GetString("action") != "DEVICE_CHANGED" {
			t.Fatalf("push = %s", msg)
		}
		if msg.GetString("deviceId") != "light-001" || msg.GetString("changedBy") != "admin" {
			t.Errorf("envelope = %s", msg)
		}
	}

	// Observers are never evicted by delivery.
	if relay.ObserverCount() != 2 {
		t.Errorf("ObserverCount() = %d after broadcast, want 2", relay.ObserverCount())
	}
}

func TestBroadcast_OrderPreserved(t *testing.T) {
	relay, hub := startTestRelay(t)

	peer := dialPeer(t, relay.Addr())
	peer.send(`{"action":"REGISTER"}`)
	peer.read()

	for i := 0; i < 3; i++ {
		hub.Publish(bus.Envelope{
			Action:   bus.ActionDeviceChanged,
			DeviceID: []string{"dev-0", "dev-1", "dev-2"}[i],
		})
	}

	for i := 0; i < 3; i++ {
		msg := peer.read()
		want := []string{"dev-0", "dev-1", "dev-2"}[i]
		if got := msg.GetString("deviceId"); got != want {
			t.Fatalf("push %d = %s, want %s", i, got, want)
		}
	}
}

func TestMalformedAndUnknown(t *testing.T) {
	relay, _ := startTestRelay(t)
	peer := dialPeer(t, relay.Addr())

	peer.send(`{"action":`)
	msg := peer.read()
	if msg.GetString("status") != "ERROR" {
		t.Errorf("malformed = %s, want ERROR", msg)
	}

	peer.send(`{"action":"NOPE"}`)
	msg = peer.read()
	if msg.GetString("status") != "ERROR" {
		t.Errorf("unknown action = %s, want ERROR", msg)
	}

	// The relay is still serving.
	peer.send(`{"action":"PING"}`)
	if got := peer.read().GetString("action"); got != "PONG" {
		t.Errorf("follow-up = %s, want PONG", got)
	}
}
