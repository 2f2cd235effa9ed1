package room

import (
	"sync/atomic"

	"go.uber.org/zap"

	"classroom-auction/domain"
	"classroom-auction/metrics"
	"classroom-auction/visibility"
)

// Envelope is one outbound realtime message.
type Envelope struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data any    `json:"data"`
}

// Subscription is a live feed of one room for one observer. The channel is
// closed when the subscription ends, whether by Unsubscribe, by falling too
// far behind, or by the room stopping.
type Subscription struct {
	id       uint64
	Identity string
	Audience domain.Audience

	ch     chan Envelope
	closed bool
}

func (s *Subscription) ID() uint64                  { return s.id }
func (s *Subscription) Updates() <-chan Envelope    { return s.ch }
func (s *Subscription) Host() bool                  { return s.Audience == domain.AudienceAuctioneer }
func (s *Subscription) wants(identity string) bool  { return s.Identity == identity }
func (s *Subscription) sees(a domain.Audience) bool { return s.Audience == a }

// Hub fans room events out to subscribers. Only the owning actor touches the
// subscriber map; the counters are read from other goroutines.
type Hub struct {
	room   string
	buffer int
	subs   map[uint64]*Subscription
	nextID uint64

	count   atomic.Int64
	dropped atomic.Uint64

	log     *zap.Logger
	metrics *metrics.Metrics
}

func newHub(room string, buffer int, log *zap.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		room:    room,
		buffer:  buffer,
		subs:    make(map[uint64]*Subscription),
		log:     log,
		metrics: m,
	}
}

// Len returns the live subscriber count.
func (h *Hub) Len() int { return int(h.count.Load()) }

// Dropped returns how many subscribers were cut off for being slow.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) add(identity string, audience domain.Audience) *Subscription {
	h.nextID++
	s := &Subscription{
		id:       h.nextID,
		Identity: identity,
		Audience: audience,
		ch:       make(chan Envelope, h.buffer),
	}
	h.subs[s.id] = s
	h.count.Add(1)
	h.metrics.Subscribers.Add(1)
	return s
}

func (h *Hub) remove(id uint64) {
	s, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	h.count.Add(-1)
	h.metrics.Subscribers.Add(-1)
}

// send never blocks the actor; a full buffer disconnects the subscriber.
func (h *Hub) send(s *Subscription, env Envelope) {
	select {
	case s.ch <- env:
	default:
		h.dropped.Add(1)
		h.metrics.DroppedSubscribers.Add(1)
		h.log.Warn("subscriber too slow, dropping",
			zap.Uint64("subscriber", s.id),
			zap.String("identity", s.Identity),
			zap.String("type", env.Type))
		h.remove(s.id)
	}
}

// broadcast renders ev once per audience and delivers it to every
// subscriber allowed to see it.
func (h *Hub) broadcast(ev domain.Event, status domain.Status, policy visibility.Policy) {
	if len(h.subs) == 0 {
		return
	}
	wire := visibility.WireType(ev.Kind())
	for _, audience := range []domain.Audience{domain.AudienceParticipant, domain.AudienceAuctioneer} {
		view, ok := policy.Render(ev, status, audience)
		if !ok {
			continue
		}
		env := Envelope{Type: wire, Room: h.room, Data: view}
		for _, s := range h.subs {
			if s.sees(audience) {
				h.send(s, env)
			}
		}
	}
}

// private delivers ev unfiltered to every connection of one identity.
func (h *Hub) private(identity string, ev domain.Event, policy visibility.Policy) {
	env := Envelope{Type: visibility.WireType(ev.Kind()), Room: h.room, Data: policy.RenderPrivate(ev)}
	for _, s := range h.subs {
		if s.wants(identity) {
			h.send(s, env)
		}
	}
}

func (h *Hub) closeAll() {
	for id := range h.subs {
		h.remove(id)
	}
}
