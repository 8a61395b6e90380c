package notify

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

// Response action tags.
const (
	actionRegistered   = "REGISTERED"
	actionUnregistered = "UNREGISTERED"
	actionPong         = "PONG"
	actionClientList   = "CLIENT_LIST"
)

// maxDatagram bounds an inbound request packet. Requests are tiny;
// outbound envelopes are not read back through this buffer.
const maxDatagram = 2048

// Relay is the UDP notification fanout. One receive loop serves
// registration requests; one delivery loop pushes bus envelopes to
// every registered observer.
type Relay struct {
	addr   string
	hub    *bus.Hub
	logger *logging.Logger

	conn *net.UDPConn
	sub  *bus.Subscription

	mu        sync.Mutex
	observers map[string]*net.UDPAddr

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewRelay creates a notification relay. Start must be called before it
// serves requests.
func NewRelay(addr string, hub *bus.Hub, logger *logging.Logger) *Relay {
	return &Relay{
		addr:      addr,
		hub:       hub,
		logger:    logger.With("component", "notify"),
		observers: make(map[string]*net.UDPAddr),
	}
}

// Start binds the UDP socket and launches the receive and delivery
// loops. Cancelling ctx closes the relay.
func (r *Relay) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return fmt.Errorf("notify resolve %s: %w", r.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("notify listen on %s: %w", r.addr, err)
	}
	r.conn = conn
	r.sub = r.hub.Subscribe("notify", bus.DefaultBuffer)

	r.logger.Info("notification relay listening", "addr", conn.LocalAddr().String())

	r.wg.Add(2)
	go r.receiveLoop()
	go r.deliverLoop()

	go func() {
		<-ctx.Done()
		r.Close()
	}()

	return nil
}

// Addr returns the bound socket address. Valid after Start.
func (r *Relay) Addr() string {
	return r.conn.LocalAddr().String()
}

// Close shuts the relay down. Safe to call more than once.
func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.conn.Close()
	r.hub.Unsubscribe(r.sub)
	r.wg.Wait()

	r.logger.Info("notification relay stopped")
	return nil
}

// ObserverCount returns the number of registered observers.
func (r *Relay) ObserverCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// receiveLoop serves one request datagram at a time.
func (r *Relay) receiveLoop() {
	defer r.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, peer, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if r.closed.Load() {
				return
			}
			r.logger.Warn("udp receive failed", "error", err)
			continue
		}

		r.handle(string(buf[:n]), peer)
	}
}

// handle dispatches a single request. Observers are keyed ip:port, the
// same string the peer would see in CLIENT_LIST.
func (r *Relay) handle(text string, peer *net.UDPAddr) {
	msg, err := wire.Parse(text)
	if err != nil {
		r.sendTo(peer, wire.ErrorMessage("malformed payload"))
		return
	}

	action := strings.ToUpper(msg.GetString(wire.FieldAction))
	if action == "" {
		r.sendTo(peer, wire.ErrorMessage("missing 'action' field"))
		return
	}

	key := peer.String()

	switch action {
	case "REGISTER":
		r.mu.Lock()
		r.observers[key] = peer
		total := len(r.observers)
		r.mu.Unlock()

		r.logger.Info("observer registered", "addr", key, "total", total)
		r.sendTo(peer, wire.OK(actionRegistered).
			Set("message", "registered for notifications"))

	case "UNREGISTER":
		r.mu.Lock()
		delete(r.observers, key)
		r.mu.Unlock()

		r.logger.Info("observer unregistered", "addr", key)
		r.sendTo(peer, wire.OK(actionUnregistered).
			Set("message", "unregistered from notifications"))

	case "PING":
		r.sendTo(peer, wire.OK(actionPong).
			Set("timestamp", time.Now().UnixMilli()))

	case "LIST_CLIENTS":
		r.mu.Lock()
		keys := make([]string, 0, len(r.observers))
		for k := range r.observers {
			keys = append(keys, k)
		}
		r.mu.Unlock()
		sort.Strings(keys)

		r.sendTo(peer, wire.OK(actionClientList).
			Set("count", int64(len(keys))).
			Set("clients", clientsBlob(keys)))

	default:
		r.sendTo(peer, wire.ErrorMessage("unknown action: "+action))
	}
}

// deliverLoop pushes every bus envelope to every observer. A failed
// send is logged and skipped; the observer stays registered and the
// remaining observers still receive the datagram.
func (r *Relay) deliverLoop() {
	defer r.wg.Done()

	for env := range r.sub.C() {
		data := []byte(env.Message().String())

		r.mu.Lock()
		targets := make([]*net.UDPAddr, 0, len(r.observers))
		for _, addr := range r.observers {
			targets = append(targets, addr)
		}
		r.mu.Unlock()

		for _, addr := range targets {
			if _, err := r.conn.WriteToUDP(data, addr); err != nil {
				r.logger.Warn("push failed",
					"addr", addr.String(),
					"device_id", env.DeviceID,
					"error", err,
				)
			}
		}
	}
}

func (r *Relay) sendTo(peer *net.UDPAddr, msg *wire.Message) {
	if _, err := r.conn.WriteToUDP([]byte(msg.String()), peer); err != nil {
		r.logger.Warn("udp send failed", "addr", peer.String(), "error", err)
	}
}

// clientsBlob renders observer keys as a JSON string array fragment.
func clientsBlob(keys []string) wire.Raw {
	var b strings.Builder
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(wire.Quote(k))
	}
	b.WriteByte(']')
	return wire.Raw(b.String())
}
