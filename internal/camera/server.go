package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumina-home/lumina-core/internal/infrastructure/config"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum wait for the HTTP server to
// drain once every stream has been released.
const gracefulShutdownTimeout = 10 * time.Second

// Pipeline runs the camera ingestion sockets and the HTTP distribution
// server as one unit.
type Pipeline struct {
	cfg    config.CameraConfig
	logger *logging.Logger

	store   *FrameStore
	viewers *Viewers

	httpServer *http.Server
	httpLn     net.Listener
	udpConn    *net.UDPConn
	tcpLn      net.Listener

	feedMu sync.Mutex
	feeds  map[net.Conn]struct{}

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a camera pipeline. Start must be called before frames
// are accepted.
func New(cfg config.CameraConfig, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		logger:  logger.With("component", "camera"),
		store:   NewFrameStore(),
		viewers: NewViewers(),
		feeds:   make(map[net.Conn]struct{}),
	}
}

// Start binds the ingestion sockets and the HTTP listener. Cancelling
// ctx closes the pipeline.
func (p *Pipeline) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.UDPPort))
	if err != nil {
		return fmt.Errorf("camera udp resolve: %w", err)
	}
	p.udpConn, err = net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("camera udp listen: %w", err)
	}

	p.tcpLn, err = net.Listen("tcp", fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.TCPPort))
	if err != nil {
		p.udpConn.Close()
		return fmt.Errorf("camera tcp listen: %w", err)
	}

	p.httpLn, err = net.Listen("tcp", fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.HTTPPort))
	if err != nil {
		p.udpConn.Close()
		p.tcpLn.Close()
		return fmt.Errorf("camera http listen: %w", err)
	}

	// WriteTimeout stays zero: MJPEG responses are held open for the
	// lifetime of the viewer connection.
	p.httpServer = &http.Server{
		Handler:           p.buildRouter(),
		ReadTimeout:       time.Duration(p.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(p.cfg.Timeouts.Read) * time.Second,
		IdleTimeout:       time.Duration(p.cfg.Timeouts.Idle) * time.Second,
	}

	p.logger.Info("camera pipeline listening",
		"http", p.httpLn.Addr().String(),
		"udp", p.udpConn.LocalAddr().String(),
		"tcp", p.tcpLn.Addr().String(),
	)

	p.wg.Add(2)
	go p.udpLoop()
	go p.tcpLoop()

	go func() {
		if err := p.httpServer.Serve(p.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("camera http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		p.Close()
	}()

	return nil
}

// HTTPAddr returns the bound HTTP address. Valid after Start.
func (p *Pipeline) HTTPAddr() string { return p.httpLn.Addr().String() }

// UDPAddr returns the bound UDP ingestion address. Valid after Start.
func (p *Pipeline) UDPAddr() string { return p.udpConn.LocalAddr().String() }

// TCPAddr returns the bound TCP ingestion address. Valid after Start.
func (p *Pipeline) TCPAddr() string { return p.tcpLn.Addr().String() }

// ViewerCount returns the number of open streams for a camera.
func (p *Pipeline) ViewerCount(id string) int { return p.viewers.Count(id) }

// Close shuts the pipeline down. Streams are released first so the
// HTTP server can drain. Safe to call more than once.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.udpConn.Close()
	p.tcpLn.Close()

	p.feedMu.Lock()
	for conn := range p.feeds {
		conn.Close()
	}
	p.feedMu.Unlock()

	p.viewers.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := p.httpServer.Shutdown(ctx); err != nil {
		p.logger.Warn("camera http shutdown", "error", err)
	}

	p.wg.Wait()

	p.logger.Info("camera pipeline stopped")
	return nil
}

func (p *Pipeline) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/camera/stream", p.handleStream)
	r.Get("/camera/frame", p.handleFrame)
	r.Get("/camera/list", p.handleList)
	r.Get("/camera/status", p.handleStatus)

	return r
}

// handleStream holds a multipart/x-mixed-replace response open and
// feeds it every frame the camera produces. The connection is the
// subscription: closing it is the only way to unsubscribe.
func (p *Pipeline) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing camera id parameter")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=boundary")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := newSink(w, flusher)
	p.viewers.add(id, s)
	defer p.viewers.remove(id, s)

	p.logger.Info("viewer connected", "camera_id", id)
	defer p.logger.Info("viewer disconnected", "camera_id", id)

	select {
	case <-r.Context().Done():
	case <-s.done:
	}
}

func (p *Pipeline) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing camera id parameter")
		return
	}

	frame, ok := p.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no frame available for camera: "+id)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

func (p *Pipeline) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cameras": p.store.IDs()})
}

func (p *Pipeline) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "OK",
		"cameras": p.store.Count(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
