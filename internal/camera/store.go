package camera

import (
	"sort"
	"sync"
)

// FrameStore holds the latest JPEG frame per camera. One slot per
// camera id; every arrival overwrites the previous frame.
type FrameStore struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

// NewFrameStore creates an empty frame store.
func NewFrameStore() *FrameStore {
	return &FrameStore{frames: make(map[string][]byte)}
}

// Put stores jpeg as the current frame for id. The bytes are copied;
// callers may reuse their receive buffer.
func (s *FrameStore) Put(id string, jpeg []byte) {
	frame := make([]byte, len(jpeg))
	copy(frame, jpeg)

	s.mu.Lock()
	s.frames[id] = frame
	s.mu.Unlock()
}

// Get returns the current frame for id, or false when the camera has
// never delivered one.
func (s *FrameStore) Get(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frame, ok := s.frames[id]
	return frame, ok
}

// IDs returns the known camera ids, sorted.
func (s *FrameStore) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.frames))
	for id := range s.frames {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Count returns the number of cameras with at least one frame.
func (s *FrameStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}
