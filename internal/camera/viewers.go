package camera

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// sink is one open MJPEG stream. Frames are written as multipart parts
// under writeMu; done closes once the sink has failed or the pipeline
// is shutting down.
type sink struct {
	w       io.Writer
	flusher http.Flusher

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newSink(w io.Writer, flusher http.Flusher) *sink {
	return &sink{w: w, flusher: flusher, done: make(chan struct{})}
}

// push writes one multipart part: boundary, part headers, JPEG bytes,
// trailing CRLF, then a flush so the part leaves the server buffer.
func (s *sink) push(jpeg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	header := fmt.Sprintf("--boundary\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg))
	if _, err := s.w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := s.w.Write(jpeg); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\r\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sink) close() {
	s.once.Do(func() { close(s.done) })
}

// Viewers tracks the open streams per camera id.
type Viewers struct {
	mu    sync.Mutex
	sinks map[string]map[*sink]struct{}
}

// NewViewers creates an empty viewer registry.
func NewViewers() *Viewers {
	return &Viewers{sinks: make(map[string]map[*sink]struct{})}
}

func (v *Viewers) add(id string, s *sink) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sinks[id] == nil {
		v.sinks[id] = make(map[*sink]struct{})
	}
	v.sinks[id][s] = struct{}{}
}

func (v *Viewers) remove(id string, s *sink) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sinks[id], s)
	if len(v.sinks[id]) == 0 {
		delete(v.sinks, id)
	}
}

// Count returns the number of open streams for id.
func (v *Viewers) Count(id string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sinks[id])
}

// Push delivers jpeg to every stream for id. A sink whose write fails
// is closed and dropped; the rest still receive the frame.
func (v *Viewers) Push(id string, jpeg []byte) {
	v.mu.Lock()
	targets := make([]*sink, 0, len(v.sinks[id]))
	for s := range v.sinks[id] {
		targets = append(targets, s)
	}
	v.mu.Unlock()

	for _, s := range targets {
		if err := s.push(jpeg); err != nil {
			s.close()
			v.remove(id, s)
		}
	}
}

// closeAll releases every stream so their handlers can return.
func (v *Viewers) closeAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, set := range v.sinks {
		for s := range set {
			s.close()
		}
	}
	v.sinks = make(map[string]map[*sink]struct{})
}
