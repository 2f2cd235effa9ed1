package room

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"classroom-auction/auction"
	"classroom-auction/domain"
	"classroom-auction/metrics"
	"classroom-auction/orderbook"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRegistryClosed = errors.New("registry closed")
)

// Config holds the engine defaults applied to every room the registry
// creates. Per-room options win when set.
type Config struct {
	InboxSize        int
	SubscriberBuffer int
	ActivityLimit    int
	PriceTree        orderbook.TreeType
	Strict           bool
	DefaultCountdown time.Duration
	MinTickInterval  time.Duration
}

// Registry maps room ids to their actors.
// Reads load an immutable map; writes copy it under mu.
type Registry struct {
	rooms  atomic.Value // map[string]*Actor
	mu     sync.Mutex
	closed bool

	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewRegistry(cfg Config, log *zap.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NopMetrics()
	}
	r := &Registry{cfg: cfg, log: log, metrics: m}
	r.rooms.Store(make(map[string]*Actor))
	return r
}

func (r *Registry) load() map[string]*Actor {
	return r.rooms.Load().(map[string]*Actor)
}

func (r *Registry) withDefaults(opts auction.Options) auction.Options {
	if opts.ActivityLimit == 0 {
		opts.ActivityLimit = r.cfg.ActivityLimit
	}
	if opts.PriceTree == orderbook.ShardedType {
		opts.PriceTree = r.cfg.PriceTree
	}
	if opts.Countdown == 0 && opts.Mechanism == domain.MechanismEnglish {
		opts.Countdown = r.cfg.DefaultCountdown
	}
	if opts.MinTickInterval == 0 {
		opts.MinTickInterval = r.cfg.MinTickInterval
	}
	opts.Strict = opts.Strict || r.cfg.Strict
	if opts.Logger == nil {
		opts.Logger = r.log
	}
	return opts
}

// Create builds a room, starts its actor and registers it.
func (r *Registry) Create(opts auction.Options) (*Actor, error) {
	room, err := auction.NewRoom(r.withDefaults(opts))
	if err != nil {
		return nil, errors.Wrap(err, "create room")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	rooms := r.load()
	if _, ok := rooms[room.ID()]; ok {
		return nil, errors.Errorf("room %s already exists", room.ID())
	}

	a := NewActor(room, r.cfg.InboxSize, r.cfg.SubscriberBuffer, r.metrics)
	a.Start()

	next := make(map[string]*Actor, len(rooms)+1)
	for k, v := range rooms {
		next[k] = v
	}
	next[room.ID()] = a
	r.rooms.Store(next)
	r.metrics.Rooms.Set(float64(len(next)))
	return a, nil
}

// Get looks a room up without locking.
func (r *Registry) Get(id string) (*Actor, error) {
	if a, ok := r.load()[id]; ok {
		return a, nil
	}
	return nil, errors.Wrap(ErrRoomNotFound, id)
}

// List returns room descriptors, oldest first.
func (r *Registry) List() []auction.Descriptor {
	rooms := r.load()
	actors := make([]*Actor, 0, len(rooms))
	for _, a := range rooms {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, j int) bool {
		if actors[i].CreatedAt().Equal(actors[j].CreatedAt()) {
			return actors[i].ID() < actors[j].ID()
		}
		return actors[i].CreatedAt().Before(actors[j].CreatedAt())
	})
	out := make([]auction.Descriptor, len(actors))
	for i, a := range actors {
		out[i] = a.Descriptor()
	}
	return out
}

// Remove stops a room and forgets it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	rooms := r.load()
	a, ok := rooms[id]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrRoomNotFound, id)
	}
	next := make(map[string]*Actor, len(rooms))
	for k, v := range rooms {
		if k != id {
			next[k] = v
		}
	}
	r.rooms.Store(next)
	r.metrics.Rooms.Set(float64(len(next)))
	r.mu.Unlock()

	a.Stop()
	return nil
}

// Stats summarises the registry.
type Stats struct {
	Rooms       int                          `json:"rooms"`
	Subscribers int                          `json:"subscribers"`
	Dropped     uint64                       `json:"dropped_subscribers"`
	ByMechanism map[domain.MechanismType]int `json:"by_mechanism"`
	ByStatus    map[domain.Status]int        `json:"by_status"`
}

func (r *Registry) Stats() Stats {
	rooms := r.load()
	s := Stats{
		Rooms:       len(rooms),
		ByMechanism: make(map[domain.MechanismType]int),
		ByStatus:    make(map[domain.Status]int),
	}
	for _, a := range rooms {
		d := a.Descriptor()
		s.ByMechanism[d.Type]++
		s.ByStatus[d.Status]++
		s.Subscribers += a.Subscribers()
		s.Dropped += a.Dropped()
	}
	return s
}

// Close stops every room. Create fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	rooms := r.load()
	r.rooms.Store(make(map[string]*Actor))
	r.metrics.Rooms.Set(0)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, a := range rooms {
		wg.Add(1)
		go func(a *Actor) {
			defer wg.Done()
			a.Stop()
		}(a)
	}
	wg.Wait()
	r.log.Info("registry closed", zap.Int("rooms", len(rooms)))
}
