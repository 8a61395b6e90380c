package bus

import (
	"sync"

	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

// ActionDeviceChanged is the action tag carried by broadcast envelopes.
const ActionDeviceChanged = "DEVICE_CHANGED"

// DefaultBuffer is the subscription channel depth used by transports.
const DefaultBuffer = 256

// Envelope is an immutable device-change event. It is built exactly once
// per mutation; the Device blob is pre-serialized so every transport
// sends identical bytes.
type Envelope struct {
	Action    string
	DeviceID  string
	Device    wire.Raw
	ChangedBy string

	// Origin identifies the control session that produced the event, so
	// the control delivery loop can skip the issuer. Not serialized.
	Origin string
}

// Message renders the envelope in wire form.
func (e Envelope) Message() *wire.Message {
	return wire.OK(e.Action).
		Set("deviceId", e.DeviceID).
		Set("changedBy", e.ChangedBy).
		Set("device", e.Device)
}

// Subscription is one subscriber's buffered event feed.
type Subscription struct {
	name string
	ch   chan Envelope
}

// C returns the receive channel. It is closed by Unsubscribe and by
// Hub.Close.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Name returns the subscriber name given to Subscribe.
func (s *Subscription) Name() string {
	return s.name
}

// Hub fans envelopes out to subscribers. One hub per process,
// constructed in main and passed to each transport.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *logging.Logger
}

// NewHub creates an event hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger.With("component", "bus"),
	}
}

// Subscribe registers a named subscriber with the given channel depth.
// A buffer of 0 or less falls back to DefaultBuffer.
func (h *Hub) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	sub := &Subscription{
		name: name,
		ch:   make(chan Envelope, buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}

	h.logger.Debug("subscriber registered", "name", name, "buffer", buffer)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)

	h.logger.Debug("subscriber removed", "name", sub.name)
}

// Publish delivers an envelope to every live subscription without
// blocking. A full subscriber drops the event; the drop is logged and
// every other subscriber still receives it.
func (h *Hub) Publish(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- env:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				"name", sub.name,
				"device_id", env.DeviceID,
			)
		}
	}
}

// Close shuts down the hub, closing every subscription channel. Further
// Publish calls are no-ops; further Subscribe calls return an already-
// closed subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
