package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumina-home/lumina-core/internal/auth"
	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/device"
	"github.com/lumina-home/lumina-core/internal/house"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
)

// Options configures a control server.
type Options struct {
	Addr        string
	MaxSessions int
	JWTSecret   string
	TokenTTL    time.Duration

	Users   auth.UserRepository
	Houses  house.Repository
	Devices *device.Registry
	Hub     *bus.Hub
	Logger  *logging.Logger
}

// Server accepts control connections and runs one session per client.
type Server struct {
	opts   Options
	logger *logging.Logger

	ln   net.Listener
	sem  chan struct{}
	sub  *bus.Subscription
	seq  atomic.Int64
	ctx  context.Context

	mu       sync.Mutex
	sessions map[*session]struct{}

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewServer creates a control server. Start must be called before it
// accepts connections.
func NewServer(opts Options) *Server {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10
	}
	return &Server{
		opts:     opts,
		logger:   opts.Logger.With("component", "control"),
		sem:      make(chan struct{}, opts.MaxSessions),
		sessions: make(map[*session]struct{}),
	}
}

// Start binds the listener and launches the accept and delivery loops.
// It returns once the server is listening; cancelling ctx closes it.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("control listen on %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.ctx = ctx
	s.sub = s.opts.Hub.Subscribe("control", bus.DefaultBuffer)

	s.logger.Info("control server listening",
		"addr", ln.Addr().String(),
		"max_sessions", s.opts.MaxSessions,
	)

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

// Close stops the listener, disconnects every session, and waits for
// the workers to drain. Safe to call more than once.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.ln.Close()
	s.opts.Hub.Unsubscribe(s.sub)

	s.mu.Lock()
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("control server stopped")
	return nil
}

// acceptLoop hands each accepted connection to a pooled worker. The
// semaphore bounds concurrent sessions; excess connections wait here
// for a free slot rather than being refused.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		sess := newSession(s, conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			select {
			case s.sem <- struct{}{}:
			case <-s.ctx.Done():
				conn.Close()
				return
			}
			defer func() { <-s.sem }()

			sess.run()
		}()
	}
}

// deliverLoop fans bus envelopes out to every authenticated session
// except the one that produced the event. A write failure closes only
// the failing session.
func (s *Server) deliverLoop() {
	defer s.wg.Done()

	for env := range s.sub.C() {
		line := env.Message().String()

		s.mu.Lock()
		targets := make([]*session, 0, len(s.sessions))
		for sess := range s.sessions {
			if sess.id != env.Origin && sess.loggedIn() {
				targets = append(targets, sess)
			}
		}
		s.mu.Unlock()

		for _, sess := range targets {
			if err := sess.sendLine(line); err != nil {
				s.logger.Debug("broadcast write failed, closing session",
					"session_id", sess.id,
					"error", err,
				)
				sess.conn.Close()
			}
		}
	}
}

func (s *Server) addSession(sess *session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}
