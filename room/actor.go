package room

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"classroom-auction/auction"
	"classroom-auction/domain"
	"classroom-auction/metrics"
	"classroom-auction/visibility"
)

// ErrRoomClosed is returned for anything sent to a stopped room.
var ErrRoomClosed = domain.Reject(domain.ReasonRoomClosed)

const (
	DefaultInboxSize        = 256
	DefaultSubscriberBuffer = 64
)

type message interface{}

type actionMsg struct {
	action domain.Action
	reply  chan actionReply
}

type actionReply struct {
	result domain.Result
	err    error
}

// tickMsg is a timer expiry. gen identifies the arming it belongs to.
type tickMsg struct {
	kind auction.TimerKind
	gen  uint64
}

type subscribeMsg struct {
	identity string
	audience domain.Audience
	reply    chan *Subscription
}

type unsubscribeMsg struct {
	id uint64
}

type queryMsg struct {
	fn   func(*auction.Room)
	done chan struct{}
}

type pendingTimer struct {
	gen   uint64
	timer *time.Timer
}

// Actor owns one room. All state changes happen on its goroutine, in the
// order messages arrive on the inbox.
type Actor struct {
	id        string
	mechanism domain.MechanismType
	createdAt time.Time

	room  *auction.Room
	hub   *Hub
	inbox chan message

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	timers map[auction.TimerKind]*pendingTimer
	gen    uint64

	desc atomic.Pointer[auction.Descriptor]

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewActor wraps room. The loop starts with Start.
func NewActor(room *auction.Room, inboxSize, subscriberBuffer int, m *metrics.Metrics) *Actor {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	if m == nil {
		m = metrics.NopMetrics()
	}
	a := &Actor{
		id:        room.ID(),
		mechanism: room.Type(),
		createdAt: room.CreatedAt(),
		room:      room,
		hub:       newHub(room.ID(), subscriberBuffer, room.Logger(), m),
		inbox:     make(chan message, inboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		timers:    make(map[auction.TimerKind]*pendingTimer),
		log:       room.Logger(),
		metrics:   m,
	}
	d := room.Descriptor()
	a.desc.Store(&d)
	return a
}

func (a *Actor) ID() string                      { return a.id }
func (a *Actor) Mechanism() domain.MechanismType { return a.mechanism }
func (a *Actor) CreatedAt() time.Time            { return a.createdAt }

// Descriptor returns the summary published after the last processed message.
func (a *Actor) Descriptor() auction.Descriptor { return *a.desc.Load() }

// Subscribers returns the live subscriber count.
func (a *Actor) Subscribers() int { return a.hub.Len() }

// Dropped returns how many subscribers were cut off for being slow.
func (a *Actor) Dropped() uint64 { return a.hub.Dropped() }

// Start runs the loop in its own goroutine.
func (a *Actor) Start() {
	go a.run()
	a.log.Info("room started", zap.String("owner", a.Descriptor().Owner))
}

// Stop terminates the loop, cancels pending timers and closes every
// subscription. It waits for the loop to exit and is safe to call twice.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.quit) })
	<-a.done
}

// Done is closed once the loop has exited.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) run() {
	defer close(a.done)
	defer a.shutdown()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("room actor panic", zap.Any("panic", r), zap.Any("room", a.Descriptor()))
			panic(fmt.Sprintf("room %s halted: %v", a.id, r))
		}
	}()

	for {
		select {
		case <-a.quit:
			return
		case msg := <-a.inbox:
			a.dispatch(msg)
		}
	}
}

func (a *Actor) dispatch(msg message) {
	switch m := msg.(type) {
	case actionMsg:
		start := time.Now()
		res, err := a.room.Apply(m.action)
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeRejected
			a.log.Debug("action rejected",
				zap.String("identity", m.action.Actor),
				zap.String("action", string(m.action.Kind)),
				zap.Error(err))
		}
		a.metrics.ObserveAction(string(a.mechanism), string(m.action.Kind), outcome, time.Since(start))
		a.flush()
		m.reply <- actionReply{result: res, err: err}

	case tickMsg:
		p, ok := a.timers[m.kind]
		if !ok || p.gen != m.gen {
			a.metrics.StaleTicks.Add(1)
			return
		}
		delete(a.timers, m.kind)
		a.room.Fire(m.kind)
		a.flush()

	case subscribeMsg:
		s := a.hub.add(m.identity, m.audience)
		// 新订阅者先拿到当前快照
		a.hub.send(s, Envelope{
			Type: visibility.WireSnapshot,
			Room: a.id,
			Data: a.room.Snapshot(m.audience, m.identity),
		})
		m.reply <- s

	case unsubscribeMsg:
		a.hub.remove(m.id)

	case queryMsg:
		m.fn(a.room)
		close(m.done)

	default:
		a.log.Warn("unknown message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// flush carries out the effects queued by the last action or tick.
func (a *Actor) flush() {
	policy := a.room.Policy()
	status := a.room.Status()
	for _, e := range a.room.Drain() {
		switch e := e.(type) {
		case auction.Publish:
			if e.To != "" {
				a.hub.private(e.To, e.Event, policy)
				continue
			}
			if e.Event.Kind() == domain.KindTrade {
				a.metrics.Trades.With("mode", a.doubleMode()).Add(1)
			}
			a.hub.broadcast(e.Event, status, policy)
		case auction.Timer:
			if e.Cancel {
				a.cancel(e.Kind)
			} else {
				a.schedule(e.Kind, e.After)
			}
		}
	}
	d := a.room.Descriptor()
	a.desc.Store(&d)
}

func (a *Actor) doubleMode() string {
	mode, _ := a.Descriptor().Config["double_mode"].(domain.DoubleMode)
	return string(mode)
}

func (a *Actor) schedule(kind auction.TimerKind, after time.Duration) {
	a.cancel(kind)
	a.gen++
	gen := a.gen
	a.timers[kind] = &pendingTimer{
		gen:   gen,
		timer: time.AfterFunc(after, func() { a.tick(kind, gen) }),
	}
}

// cancel drops the pending timer of kind. A callback already in flight
// still enqueues its tick, which is then discarded as stale.
func (a *Actor) cancel(kind auction.TimerKind) {
	if p, ok := a.timers[kind]; ok {
		p.timer.Stop()
		delete(a.timers, kind)
	}
}

// tick runs on the timer goroutine and only hands the expiry to the loop.
func (a *Actor) tick(kind auction.TimerKind, gen uint64) {
	select {
	case a.inbox <- tickMsg{kind: kind, gen: gen}:
	case <-a.quit:
	}
}

func (a *Actor) shutdown() {
	for kind := range a.timers {
		a.cancel(kind)
	}
	a.hub.closeAll()
	a.log.Info("room stopped", zap.Uint64("dropped_subscribers", a.hub.Dropped()))
}

func (a *Actor) enqueue(ctx context.Context, msg message) error {
	select {
	case <-a.quit:
		return ErrRoomClosed
	default:
	}
	select {
	case a.inbox <- msg:
		return nil
	case <-a.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit hands an action to the room and waits for its result. Rejections
// come back as *domain.Rejection errors.
func (a *Actor) Submit(ctx context.Context, action domain.Action) (domain.Result, error) {
	reply := make(chan actionReply, 1)
	if err := a.enqueue(ctx, actionMsg{action: action, reply: reply}); err != nil {
		return domain.Result{}, err
	}
	select {
	case r := <-reply:
		return r.result, r.err
	case <-a.done:
		return domain.Result{}, ErrRoomClosed
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	}
}

// Subscribe registers an observer. The first envelope on the subscription is
// a snapshot of the room as that observer may see it.
func (a *Actor) Subscribe(ctx context.Context, identity string, audience domain.Audience) (*Subscription, error) {
	reply := make(chan *Subscription, 1)
	if err := a.enqueue(ctx, subscribeMsg{identity: identity, audience: audience, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-a.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe ends s. It is a no-op once the room has stopped.
func (a *Actor) Unsubscribe(s *Subscription) {
	_ = a.enqueue(context.Background(), unsubscribeMsg{id: s.id})
}

func (a *Actor) query(ctx context.Context, fn func(*auction.Room)) error {
	done := make(chan struct{})
	if err := a.enqueue(ctx, queryMsg{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-a.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Activity returns the retained activity log rendered for audience.
func (a *Actor) Activity(ctx context.Context, audience domain.Audience) ([]visibility.View, error) {
	var out []visibility.View
	err := a.query(ctx, func(r *auction.Room) { out = r.Activity(audience) })
	return out, err
}

// Snapshot returns the room as one observer may see it.
func (a *Actor) Snapshot(ctx context.Context, audience domain.Audience, identity string) (auction.Snapshot, error) {
	var out auction.Snapshot
	err := a.query(ctx, func(r *auction.Room) { out = r.Snapshot(audience, identity) })
	return out, err
}

// Inspect runs fn on the actor goroutine. fn must not retain r.
func (a *Actor) Inspect(ctx context.Context, fn func(r *auction.Room)) error {
	return a.query(ctx, fn)
}
