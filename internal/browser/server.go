package browser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

// Server is the WebSocket bridge. One accept loop upgrades browser
// connections; one delivery loop re-encodes bus envelopes as text
// frames for every connected client.
type Server struct {
	addr   string
	hub    *bus.Hub
	logger *logging.Logger

	ln  net.Listener
	sub *bus.Subscription

	mu      sync.Mutex
	clients map[*client]struct{}

	wg     sync.WaitGroup
	closed atomic.Bool
}

// client is one upgraded browser connection. writeMu serializes frames
// from the delivery loop and PONG replies.
type client struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (c *client) send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeTextFrame(c.conn, payload)
}

// NewServer creates a browser bridge. Start must be called before it
// accepts connections.
func NewServer(addr string, hub *bus.Hub, logger *logging.Logger) *Server {
	return &Server{
		addr:    addr,
		hub:     hub,
		logger:  logger.With("component", "browser"),
		clients: make(map[*client]struct{}),
	}
}

// Start binds the listener and launches the accept and delivery loops.
// Cancelling ctx closes the server.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("browser listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.sub = s.hub.Subscribe("browser", bus.DefaultBuffer)

	s.logger.Info("websocket bridge listening", "addr", ln.Addr().String())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.deliverLoop()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close shuts the bridge down. Safe to call more than once.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.ln.Close()
	s.hub.Unsubscribe(s.sub)

	s.mu.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("websocket bridge stopped")
	return nil
}

// ClientCount returns the number of upgraded connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		go s.handleConn(conn)
	}
}

// handleConn runs the upgrade handshake and then the per-client frame
// loop. A request without a WebSocket key is dropped without upgrading.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	if err := handshake(r, conn); err != nil {
		if !errors.Is(err, ErrNoWebSocketKey) {
			s.logger.Warn("handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
		return
	}

	c := &client{conn: conn}
	s.addClient(c)
	defer s.removeClient(c)

	s.logger.Info("browser connected", "remote", conn.RemoteAddr().String())
	defer s.logger.Info("browser disconnected", "remote", conn.RemoteAddr().String())

	for {
		f, err := readFrame(r)
		if err != nil {
			return
		}

		switch f.opcode {
		case opcodeClose:
			return
		case opcodeText:
			s.handleText(c, f.payload)
		}
	}
}

// handleText serves application-level requests. Only PING is
// understood; everything else is ignored so a chatty dashboard cannot
// kill its own connection.
func (s *Server) handleText(c *client, payload []byte) {
	msg, err := wire.Parse(string(payload))
	if err != nil {
		return
	}

	if strings.ToUpper(msg.GetString(wire.FieldAction)) != "PING" {
		return
	}

	pong := wire.NewMessage().
		Set(wire.FieldAction, "PONG").
		Set("timestamp", time.Now().UnixMilli())
	if err := c.send([]byte(pong.String())); err != nil {
		s.logger.Warn("pong failed", "remote", c.conn.RemoteAddr().String(), "error", err)
	}
}

// deliverLoop fans every bus envelope out as one text frame per client.
// A failed write closes and unregisters only that client.
func (s *Server) deliverLoop() {
	defer s.wg.Done()

	for env := range s.sub.C() {
		data := []byte(env.Message().String())

		s.mu.Lock()
		targets := make([]*client, 0, len(s.clients))
		for c := range s.clients {
			targets = append(targets, c)
		}
		s.mu.Unlock()

		for _, c := range targets {
			if err := c.send(data); err != nil {
				s.logger.Warn("push failed",
					"remote", c.conn.RemoteAddr().String(),
					"device_id", env.DeviceID,
					"error", err,
				)
				c.conn.Close()
				s.removeClient(c)
			}
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}
