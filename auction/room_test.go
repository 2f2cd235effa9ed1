package auction

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-auction/budget"
	"classroom-auction/domain"
)

const host = "host"

func newRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	opts.Owner = host
	if opts.Budget.Base == 0 && opts.Budget.Strategy == "" {
		opts.Budget = budget.Config{Strategy: budget.StrategyEqual, Base: 100}
	}
	if opts.Rand == nil {
		opts.Rand = rand.NewPCG(1, 1)
	}
	opts.Strict = true
	r, err := NewRoom(opts)
	require.NoError(t, err)
	return r
}

func act(r *Room, kind domain.ActionKind, actor string, amount int64) error {
	_, err := r.Apply(domain.Action{Kind: kind, Actor: actor, Amount: amount})
	return err
}

func must(t *testing.T, r *Room, kind domain.ActionKind, actor string, amount int64) {
	t.Helper()
	require.NoError(t, act(r, kind, actor, amount))
}

func rejected(t *testing.T, err error, code domain.Reason) {
	t.Helper()
	require.Error(t, err)
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, code, rej.Code)
}

// published returns the events queued for fan-out, private ones included.
func published(r *Room) []Publish {
	var out []Publish
	for _, e := range r.Drain() {
		if p, ok := e.(Publish); ok {
			out = append(out, p)
		}
	}
	return out
}

func timers(effects []Effect) []Timer {
	var out []Timer
	for _, e := range effects {
		if tm, ok := e.(Timer); ok {
			out = append(out, tm)
		}
	}
	return out
}

func TestNewRoomValidation(t *testing.T) {
	_, err := NewRoom(Options{Mechanism: domain.MechanismEnglish, Budget: budget.Config{Base: 10}})
	assert.Error(t, err, "owner required")

	_, err = NewRoom(Options{Owner: host, Mechanism: "vickrey", Budget: budget.Config{Base: 10}})
	assert.Error(t, err)

	_, err = NewRoom(Options{Owner: host, Mechanism: domain.MechanismEnglish, Budget: budget.Config{Strategy: budget.StrategyRandom, Min: 10, Max: 1}})
	assert.Error(t, err)
}

func TestBudgetAssignedOnFirstObservationOnly(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismEnglish, Budget: budget.Config{Strategy: budget.StrategyAscending, Base: 100, Step: 10}})

	must(t, r, domain.ActionJoin, "alice", 0)
	pubs := published(r)
	var private []Publish
	for _, p := range pubs {
		if p.To != "" {
			private = append(private, p)
		}
	}
	require.Len(t, private, 1)
	assert.Equal(t, "alice", private[0].To)
	assert.Equal(t, int64(100), private[0].Event.(*domain.RoomEvent).Amount)

	// reconnect: same cap re-sent, nothing re-allocated
	must(t, r, domain.ActionJoin, "alice", 0)
	must(t, r, domain.ActionJoin, "bob", 0)
	c, _ := r.Cap("alice")
	assert.Equal(t, int64(100), c)
	c, _ = r.Cap("bob")
	assert.Equal(t, int64(110), c)
	assert.Equal(t, []string{"alice", "bob"}, r.Participants())

	// a first action without a join also observes the identity
	rejected(t, act(r, domain.ActionPlaceBid, "carol", 5), domain.ReasonNotRunning)
	c, ok := r.Cap("carol")
	require.True(t, ok)
	assert.Equal(t, int64(120), c)

	_, ok = r.Cap(host)
	assert.False(t, ok, "the auctioneer has no cap")
}

func TestRoleChecks(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismEnglish})
	rejected(t, act(r, domain.ActionStart, "alice", 0), domain.ReasonHostOnly)
	rejected(t, act(r, domain.ActionPlaceBid, host, 10), domain.ReasonParticipantOnly)
	rejected(t, act(r, "dance", "alice", 0), domain.ReasonUnknownAction)
	rejected(t, act(r, domain.ActionSubmitBuy, "alice", 10), domain.ReasonWrongMechanism)
	rejected(t, act(r, domain.ActionReveal, host, 0), domain.ReasonWrongMechanism)
}

func TestActivityRingAndRendering(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismEnglish, ActivityLimit: 3})
	must(t, r, domain.ActionStart, host, 0)
	for i, who := range []string{"a", "b", "a", "b"} {
		must(t, r, domain.ActionPlaceBid, who, int64(10*(i+1)))
	}
	hostView := r.Activity(domain.AudienceAuctioneer)
	require.Len(t, hostView, 3)
	last := hostView[len(hostView)-1]
	assert.Equal(t, domain.KindBid, last.Type)
	assert.Equal(t, "b", last.Actor)
	assert.Equal(t, int64(40), last.Amount)

	partView := r.Activity(domain.AudienceParticipant)
	require.Len(t, partView, 3)
	assert.Equal(t, r.Policy().Pseudonyms.Alias("b"), partView[2].Actor)

	for i := 1; i < len(hostView); i++ {
		assert.Greater(t, hostView[i].Seq, hostView[i-1].Seq)
	}
	assert.Len(t, r.History(), 4)
}

func TestDescriptorAndSnapshot(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := newRoom(t, Options{Name: "Lab 1", Mechanism: domain.MechanismDouble, ShowOrders: true, Now: func() time.Time { return clock }})
	must(t, r, domain.ActionJoin, "alice", 0)
	must(t, r, domain.ActionJoin, "bob", 0)

	d := r.Descriptor()
	assert.Equal(t, "Lab 1", d.Name)
	assert.Equal(t, domain.StatusWaiting, d.Status)
	assert.Equal(t, host, d.Owner)
	assert.Equal(t, 2, d.Participants)
	assert.Equal(t, int64(200), d.Budget.Total)
	assert.Equal(t, clock, d.CreatedAt)
	assert.Equal(t, domain.ModeCall, d.Config["double_mode"])

	s := r.Snapshot(domain.AudienceParticipant, "alice")
	assert.Equal(t, int64(100), s.Cap)
	assert.Nil(t, s.Balances)
	s = r.Snapshot(domain.AudienceAuctioneer, host)
	assert.Equal(t, map[string]int64{"alice": 100, "bob": 100}, s.Balances)
}

func TestAssertPanicsInStrictMode(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismEnglish})
	assert.NotPanics(t, func() { r.Assert(nil) })
	assert.Panics(t, func() { r.Assert(assert.AnError) })

	r.opts.Strict = false
	assert.NotPanics(t, func() { r.Assert(assert.AnError) })
}
