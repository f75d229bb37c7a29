package eventbus

import (
	"sync"

	"go.uber.org/fx"
)

// Topic names carried by the hub.
type Topic string

const (
	TopicNewJob             Topic = "new_job"
	TopicJobTaken           Topic = "job_taken"
	TopicJobUpdate          Topic = "job_update"
	TopicNotification       Topic = "notification"
	TopicTechnicianLocation Topic = "technician_location_update"
)

// Event is a single fan-out message.
type Event struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload"`
}

// NotificationEvent is the payload on the notification topic.
type NotificationEvent struct {
	RecipientEmail string `json:"recipientEmail"`
	Message        string `json:"message"`
}

// LocationSample is relayed verbatim on the technician location topic.
// The hub does not validate, throttle, or persist samples.
type LocationSample struct {
	JobID     int64   `json:"jobId"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

const DefaultSubscriberBuffer = 16

// Hub is the process-wide publish/subscribe fan-out point. Delivery is
// at-most-once and best-effort: a subscriber with a full buffer misses
// the event and is expected to re-fetch state when it falls behind.
type Hub struct {
	mu               sync.RWMutex
	subs             map[uint64]chan Event
	nextID           uint64
	started          bool
	closed           bool
	subscriberBuffer int
}

// Subscription is a live attachment to the hub.
type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:             make(map[uint64]chan Event),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Start marks the hub ready. Publish or Subscribe before Start is a
// programming error and panics rather than dropping events silently.
func (h *Hub) Start() {
	h.mu.Lock()
	h.started = true
	h.closed = false
	h.mu.Unlock()
}

// Close detaches every subscriber. Publishes after Close are dropped.
// Subscriber channels are left open; consumers exit on their own context.
func (h *Hub) Close() {
	h.mu.Lock()
	h.subs = make(map[uint64]chan Event)
	h.closed = true
	h.mu.Unlock()
}

// Publish fans the event out to every current subscriber without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	if !h.started {
		h.mu.RUnlock()
		panic("eventbus: publish before hub start")
	}
	subs := make([]chan Event, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe attaches a new subscriber. Events published before the
// subscription are not replayed.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	if !h.started || h.closed {
		h.mu.Unlock()
		panic("eventbus: subscribe on inactive hub")
	}
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	return &Subscription{hub: h, id: id, ch: ch}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// SubscriberCount reports how many subscribers are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}

var Module = fx.Module("eventbus",
	fx.Provide(NewHub),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, hub *Hub) {
	lc.Append(fx.StartStopHook(hub.Start, hub.Close))
}
