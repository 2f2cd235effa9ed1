package auction

import (
	"math/rand/v2"
	"time"

	"github.com/emirpasic/gods/v2/queues/circularbuffer"
	"github.com/emirpasic/gods/v2/sets/linkedhashset"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"classroom-auction/budget"
	"classroom-auction/domain"
	"classroom-auction/orderbook"
	"classroom-auction/visibility"
)

const (
	DefaultActivityLimit   = 5000
	DefaultMinTickInterval = 200 * time.Millisecond
	DefaultTickInterval    = time.Second
)

// Options configures a room at creation. Zero values select the defaults.
type Options struct {
	ID        string
	Name      string
	Owner     string
	Mechanism domain.MechanismType
	Budget    budget.Config

	// english
	Countdown time.Duration

	// dutch
	MinTickInterval time.Duration

	// sealed
	Pricing  domain.PricingRule
	Resubmit domain.ResubmitPolicy
	TieBreak domain.TieBreak

	// double
	DoubleMode      domain.DoubleMode
	ShowOrders      bool
	ManualSides     bool // participants must set-side before trading
	UncappedSellers bool // only buy orders are checked against caps
	RoundDuration   time.Duration
	PriceTree       orderbook.TreeType

	ActivityLimit int
	Strict        bool // invariant violations panic instead of being logged
	Rand          rand.Source
	Now           func() time.Time
	Logger        *zap.Logger
}

func (o Options) normalize() Options {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.ActivityLimit <= 0 {
		o.ActivityLimit = DefaultActivityLimit
	}
	if o.MinTickInterval <= 0 {
		o.MinTickInterval = DefaultMinTickInterval
	}
	if o.Pricing == "" {
		o.Pricing = domain.FirstPrice
	}
	if o.Resubmit == "" {
		o.Resubmit = domain.ResubmitOverwrite
	}
	if o.TieBreak == "" {
		o.TieBreak = domain.TieBreakEarliest
	}
	if o.DoubleMode == "" {
		o.DoubleMode = domain.ModeCall
	}
	if o.Rand == nil {
		o.Rand = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Budget = o.Budget.Normalize()
	return o
}

func (o Options) validate() error {
	if o.Owner == "" {
		return errors.New("room owner is required")
	}
	if o.Countdown < 0 || o.RoundDuration < 0 {
		return errors.New("durations must not be negative")
	}
	return errors.Wrap(o.Budget.Validate(), "budget")
}

// Room is the per-room aggregate. Every method must be called from the
// room's single owning goroutine.
type Room struct {
	opts      Options
	createdAt time.Time
	mech      Mechanism

	roster   *linkedhashset.Set[string]
	ledger   *budget.Ledger
	activity *circularbuffer.Queue[domain.Event]
	history  []domain.Bid
	policy   visibility.Policy
	hostSeen bool

	seq     uint64
	effects []Effect
	rng     *rand.Rand
	log     *zap.Logger
}

// NewRoom validates opts and builds the room with its mechanism engine.
func NewRoom(opts Options) (*Room, error) {
	opts = opts.normalize()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r := &Room{
		opts:      opts,
		createdAt: opts.Now(),
		roster:    linkedhashset.New[string](),
		ledger:    budget.NewLedger(opts.Budget, budget.NewAllocator(opts.Rand)),
		activity:  circularbuffer.New[domain.Event](opts.ActivityLimit),
		rng:       rand.New(opts.Rand),
		log:       opts.Logger.With(zap.String("room", opts.ID), zap.String("mechanism", string(opts.Mechanism))),
		policy: visibility.Policy{
			Mechanism:  opts.Mechanism,
			ShowOrders: opts.ShowOrders,
			Pseudonyms: visibility.NewPseudonymizer(),
		},
	}
	switch opts.Mechanism {
	case domain.MechanismEnglish:
		r.mech = NewEnglish(opts.Countdown)
	case domain.MechanismDutch:
		r.mech = NewDutch(opts.MinTickInterval)
	case domain.MechanismSealed:
		r.mech = NewSealed(opts.Pricing, opts.Resubmit, opts.TieBreak)
	case domain.MechanismDouble:
		r.mech = NewDouble(opts.ID, DoubleConfig{
			Mode:          opts.DoubleMode,
			AutoAssign:    !opts.ManualSides,
			CapSellers:    !opts.UncappedSellers,
			RoundDuration: opts.RoundDuration,
			PriceTree:     opts.PriceTree,
		})
	default:
		return nil, errors.Errorf("unknown mechanism %q", opts.Mechanism)
	}
	return r, nil
}

func (r *Room) ID() string                  { return r.opts.ID }
func (r *Room) Name() string                { return r.opts.Name }
func (r *Room) Owner() string               { return r.opts.Owner }
func (r *Room) Type() domain.MechanismType  { return r.opts.Mechanism }
func (r *Room) Status() domain.Status       { return r.mech.Status() }
func (r *Room) CreatedAt() time.Time        { return r.createdAt }
func (r *Room) Policy() visibility.Policy   { return r.policy }
func (r *Room) Mechanism() Mechanism        { return r.mech }
func (r *Room) Logger() *zap.Logger         { return r.log }
func (r *Room) Rand() *rand.Rand            { return r.rng }
func (r *Room) Now() time.Time              { return r.opts.Now() }
func (r *Room) IsHost(identity string) bool { return identity == r.opts.Owner }

func (r *Room) Cap(identity string) (int64, bool) { return r.ledger.Cap(identity) }

// Allows reports whether amount fits under identity's cap.
func (r *Room) Allows(identity string, amount int64) bool {
	return r.ledger.Allows(identity, amount)
}

// SetShowOrders toggles whether double auction participants see the book.
func (r *Room) SetShowOrders(show bool) { r.policy.ShowOrders = show }

// Participants returns the roster in join order.
func (r *Room) Participants() []string { return r.roster.Values() }

// History returns a copy of the bid/order history.
func (r *Room) History() []domain.Bid {
	return append([]domain.Bid(nil), r.history...)
}

// RecordBid appends an accepted bid or order to the history.
func (r *Room) RecordBid(identity string, amount int64, side domain.Side, action domain.ActionKind) {
	r.history = append(r.history, domain.Bid{
		Identity: identity,
		Amount:   amount,
		Side:     side.String(),
		Action:   string(action),
		Time:     r.Now(),
	})
}

// Observe registers a participant the first time it is seen, assigning its
// budget exactly once. It reports whether this was the first observation.
func (r *Room) Observe(identity string) bool {
	if r.IsHost(identity) {
		if r.hostSeen {
			return false
		}
		r.hostSeen = true
		r.mech.OnJoin(r, identity, true)
		return true
	}
	if r.roster.Contains(identity) {
		return false
	}
	r.roster.Add(identity)
	amount, _ := r.ledger.Assign(identity)
	r.Reply(identity, &domain.RoomEvent{Type: domain.KindBudget, Actor: identity, Amount: amount})
	r.log.Debug("budget assigned", zap.String("identity", identity), zap.Int64("cap", amount))
	r.mech.OnJoin(r, identity, false)
	return true
}

var hostOnly = map[domain.ActionKind]bool{
	domain.ActionStart:     true,
	domain.ActionStop:      true,
	domain.ActionEnd:       true,
	domain.ActionConfigure: true,
	domain.ActionSetPrice:  true,
	domain.ActionReveal:    true,
	domain.ActionClear:     true,
}

var participantOnly = map[domain.ActionKind]bool{
	domain.ActionPlaceBid:    true,
	domain.ActionAcceptPrice: true,
	domain.ActionSubmitBid:   true,
	domain.ActionSetSide:     true,
}

var mechanismActions = map[domain.ActionKind]bool{
	domain.ActionSubmitBuy:  true,
	domain.ActionSubmitSell: true,
}

// Apply validates and executes one action. Rejections leave the room
// unchanged apart from first-observation budget assignment.
func (r *Room) Apply(a domain.Action) (domain.Result, error) {
	if a.Actor == "" {
		return domain.Result{}, domain.Reject(domain.ReasonUnknownAction, "reason", "missing identity")
	}
	host := r.IsHost(a.Actor)

	switch a.Kind {
	case domain.ActionJoin:
		if fresh := r.Observe(a.Actor); !fresh && !host {
			amount, _ := r.ledger.Cap(a.Actor)
			// reconnects get their stored cap again, never a new one
			r.Reply(a.Actor, &domain.RoomEvent{Type: domain.KindBudget, Actor: a.Actor, Amount: amount})
		}
		r.Emit(&domain.RoomEvent{Type: domain.KindJoin, Actor: a.Actor})
		return r.result(), nil

	case domain.ActionLeave:
		r.Emit(&domain.RoomEvent{Type: domain.KindLeave, Actor: a.Actor})
		return r.result(), nil
	}

	if !hostOnly[a.Kind] && !participantOnly[a.Kind] && !mechanismActions[a.Kind] {
		return domain.Result{}, domain.Reject(domain.ReasonUnknownAction, "action", string(a.Kind))
	}
	if hostOnly[a.Kind] && !host {
		return domain.Result{}, domain.Reject(domain.ReasonHostOnly, "action", string(a.Kind))
	}
	if participantOnly[a.Kind] && host {
		return domain.Result{}, domain.Reject(domain.ReasonParticipantOnly, "action", string(a.Kind))
	}
	r.Observe(a.Actor)

	if err := r.mech.Handle(r, a); err != nil {
		return domain.Result{}, err
	}
	return r.result(), nil
}

// Fire delivers a timer expiry to the mechanism.
func (r *Room) Fire(kind TimerKind) {
	r.mech.OnTimer(r, kind)
}

func (r *Room) result() domain.Result {
	return domain.Result{Status: r.mech.Status(), Seq: r.seq}
}

func (r *Room) stamp(ev domain.Event) {
	r.seq++
	m := ev.Meta()
	m.Seq = r.seq
	m.At = r.Now()
}

// Emit stamps ev, appends it to the activity log and queues it for fan-out.
func (r *Room) Emit(ev domain.Event) {
	r.stamp(ev)
	r.activity.Enqueue(ev)
	r.effects = append(r.effects, Publish{Event: ev})
}

// Reply queues a private event for one identity. Private events are not part
// of the shared activity log.
func (r *Room) Reply(identity string, ev domain.Event) {
	r.stamp(ev)
	r.effects = append(r.effects, Publish{Event: ev, To: identity})
}

// RoundState emits the current status with the time left on the round.
func (r *Room) RoundState(remaining time.Duration) {
	r.Emit(&domain.RoomEvent{
		Type:        domain.KindRoundState,
		Status:      r.mech.Status(),
		RemainingMs: remaining.Milliseconds(),
	})
}

// Schedule asks the owner to deliver kind after d, replacing any pending
// timer of the same kind.
func (r *Room) Schedule(kind TimerKind, d time.Duration) {
	r.effects = append(r.effects, Timer{Kind: kind, After: d})
}

// Cancel asks the owner to drop the pending timer of kind.
func (r *Room) Cancel(kind TimerKind) {
	r.effects = append(r.effects, Timer{Kind: kind, Cancel: true})
}

// Drain returns and clears the effects queued since the last call.
func (r *Room) Drain() []Effect {
	out := r.effects
	r.effects = nil
	return out
}

// Assert reports a broken internal invariant: panic in strict mode, error
// log otherwise.
func (r *Room) Assert(err error) {
	if err == nil {
		return
	}
	if r.opts.Strict {
		panic(errors.Wrap(err, "room "+r.opts.ID))
	}
	r.log.Error("invariant violated", zap.Error(err))
}

// Activity renders the retained activity log for audience.
func (r *Room) Activity(audience domain.Audience) []visibility.View {
	status := r.mech.Status()
	events := r.activity.Values()
	out := make([]visibility.View, 0, len(events))
	for _, ev := range events {
		if v, ok := r.policy.Render(ev, status, audience); ok {
			out = append(out, v)
		}
	}
	return out
}

// Descriptor is the public summary of a room.
type Descriptor struct {
	ID           string               `json:"id"`
	Type         domain.MechanismType `json:"type"`
	Name         string               `json:"name"`
	Status       domain.Status        `json:"status"`
	Owner        string               `json:"owner"`
	CreatedAt    time.Time            `json:"created_at"`
	Participants int                  `json:"participants"`
	Budget       budget.Summary       `json:"budget"`
	Config       map[string]any       `json:"config,omitempty"`
}

func (r *Room) Descriptor() Descriptor {
	return Descriptor{
		ID:           r.opts.ID,
		Type:         r.opts.Mechanism,
		Name:         r.opts.Name,
		Status:       r.mech.Status(),
		Owner:        r.opts.Owner,
		CreatedAt:    r.createdAt,
		Participants: r.roster.Size(),
		Budget:       r.ledger.Summary(),
		Config:       r.config(),
	}
}

func (r *Room) config() map[string]any {
	switch r.opts.Mechanism {
	case domain.MechanismEnglish:
		return map[string]any{"countdown_sec": r.opts.Countdown.Seconds()}
	case domain.MechanismSealed:
		return map[string]any{
			"sealed_pricing":   r.opts.Pricing,
			"sealed_resubmit":  r.opts.Resubmit,
			"sealed_tie_break": r.opts.TieBreak,
		}
	case domain.MechanismDouble:
		return map[string]any{
			"double_mode": r.opts.DoubleMode,
			"show_orders": r.policy.ShowOrders,
			"cap_sellers": !r.opts.UncappedSellers,
			"round_sec":   r.opts.RoundDuration.Seconds(),
		}
	}
	return nil
}

// Snapshot is the state a freshly connected observer needs.
type Snapshot struct {
	Room      Descriptor `json:"room"`
	Mechanism any        `json:"mechanism"`
	Cap       int64      `json:"cap,omitempty"`
	Balances  any        `json:"balances,omitempty"`
}

// Snapshot renders the room for one observer.
func (r *Room) Snapshot(audience domain.Audience, identity string) Snapshot {
	s := Snapshot{Room: r.Descriptor(), Mechanism: r.mech.Snapshot(r, audience)}
	if audience == domain.AudienceAuctioneer {
		s.Balances = r.ledger.Snapshot()
	} else if c, ok := r.ledger.Cap(identity); ok {
		s.Cap = c
	}
	return s
}

// alias renders identity for audience.
func (r *Room) alias(identity string, audience domain.Audience) string {
	if audience == domain.AudienceAuctioneer {
		return identity
	}
	return r.policy.Pseudonyms.Alias(identity)
}
