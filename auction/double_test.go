package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"classroom-auction/budget"
	"classroom-auction/domain"
	"classroom-auction/orderbook"
)

func doubleRoom(t *testing.T, mode domain.DoubleMode, joiners ...string) *Room {
	t.Helper()
	r := newRoom(t, Options{Mechanism: domain.MechanismDouble, DoubleMode: mode, ShowOrders: true})
	for _, who := range joiners {
		must(t, r, domain.ActionJoin, who, 0)
	}
	return r
}

func trades(pubs []Publish) []*domain.DoubleEvent {
	var out []*domain.DoubleEvent
	for _, p := range pubs {
		if e, ok := p.Event.(*domain.DoubleEvent); ok && e.Type == domain.KindTrade {
			out = append(out, e)
		}
	}
	return out
}

func TestDoubleAutoAssignBalancesSides(t *testing.T) {
	r := doubleRoom(t, domain.ModeCall, "b1", "s1", "b2", "s2", "b3")
	d := r.Mechanism().(*Double)
	assert.Equal(t, domain.SideBuy, d.Side("b1"))
	assert.Equal(t, domain.SideSell, d.Side("s1"))
	assert.Equal(t, domain.SideBuy, d.Side("b2"))
	assert.Equal(t, domain.SideSell, d.Side("s2"))
	assert.Equal(t, domain.SideBuy, d.Side("b3"))
	assert.Equal(t, domain.SideNone, d.Side(host))
}

// buys 90,80; sells 70,85 -> k=1 at 70
func TestDoubleCallScenario(t *testing.T) {
	r := doubleRoom(t, domain.ModeCall, "b1", "s1", "b2", "s2")
	must(t, r, domain.ActionStart, host, 0)
	must(t, r, domain.ActionSubmitBuy, "b1", 90)
	must(t, r, domain.ActionSubmitBuy, "b2", 80)
	must(t, r, domain.ActionSubmitSell, "s1", 70)
	must(t, r, domain.ActionSubmitSell, "s2", 85)
	assert.Empty(t, trades(published(r)), "call mode accumulates")

	rejected(t, act(r, domain.ActionClear, "b1", 0), domain.ReasonHostOnly)
	must(t, r, domain.ActionClear, host, 0)
	pubs := published(r)
	got := trades(pubs)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].Actor)
	assert.Equal(t, "s1", got[0].Counterparty)
	assert.Equal(t, int64(70), got[0].Price)

	var clear *domain.DoubleEvent
	for _, p := range pubs {
		if e, ok := p.Event.(*domain.DoubleEvent); ok && e.Type == domain.KindClear {
			clear = e
		}
	}
	require.NotNil(t, clear)
	assert.Equal(t, 1, clear.Trades)
	assert.Equal(t, int64(70), clear.Price)

	d := r.Mechanism().(*Double)
	assert.Equal(t, 1, d.Book().Len(domain.SideBuy))
	assert.Len(t, d.Trades(), 1)
}

func TestDoubleContinuousMatchesAtRestingPrice(t *testing.T) {
	r := doubleRoom(t, domain.ModeContinuous, "b1", "s1")
	must(t, r, domain.ActionStart, host, 0)
	must(t, r, domain.ActionSubmitSell, "s1", 60)
	published(r)
	must(t, r, domain.ActionSubmitBuy, "b1", 75)
	got := trades(published(r))
	require.Len(t, got, 1)
	assert.Equal(t, int64(60), got[0].Price)
}

func TestDoubleRoleAndStatusRejections(t *testing.T) {
	r := doubleRoom(t, domain.ModeContinuous, "b1", "s1")
	rejected(t, act(r, domain.ActionSubmitBuy, "b1", 50), domain.ReasonNotRunning)
	must(t, r, domain.ActionStart, host, 0)

	rejected(t, act(r, domain.ActionSubmitSell, "b1", 50), domain.ReasonSideMismatch)
	rejected(t, act(r, domain.ActionSubmitBuy, "b1", 0), domain.ReasonInvalidAmount)
	rejected(t, act(r, domain.ActionSubmitBuy, "b1", 101), domain.ReasonOverBudget)
	rejected(t, act(r, domain.ActionSubmitSell, "s1", 101), domain.ReasonOverBudget)

	// the auctioneer trades either side without a cap
	must(t, r, domain.ActionSubmitSell, host, 500)
	must(t, r, domain.ActionSubmitBuy, host, 1)

	must(t, r, domain.ActionStop, host, 0)
	rejected(t, act(r, domain.ActionSubmitBuy, "b1", 50), domain.ReasonNotRunning)
	must(t, r, domain.ActionEnd, host, 0)
	rejected(t, act(r, domain.ActionStart, host, 0), domain.ReasonNotRunning)
	rejected(t, act(r, domain.ActionClear, host, 0), domain.ReasonNotRunning)
}

func TestDoubleUncappedSellers(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismDouble, UncappedSellers: true})
	must(t, r, domain.ActionJoin, "b1", 0)
	must(t, r, domain.ActionJoin, "s1", 0)
	must(t, r, domain.ActionStart, host, 0)
	must(t, r, domain.ActionSubmitSell, "s1", 500)
	rejected(t, act(r, domain.ActionSubmitBuy, "b1", 500), domain.ReasonOverBudget)
}

func TestDoubleManualSides(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismDouble, ManualSides: true, DoubleMode: domain.ModeCall})
	must(t, r, domain.ActionJoin, "x", 0)
	must(t, r, domain.ActionStart, host, 0)
	rejected(t, act(r, domain.ActionSubmitBuy, "x", 10), domain.ReasonNoSide)

	_, err := r.Apply(domain.Action{Kind: domain.ActionSetSide, Actor: "x", Side: domain.SideBuy})
	require.NoError(t, err)
	must(t, r, domain.ActionSubmitBuy, "x", 10)

	// resting orders pin the side
	_, err = r.Apply(domain.Action{Kind: domain.ActionSetSide, Actor: "x", Side: domain.SideSell})
	rejected(t, err, domain.ReasonSideMismatch)
	_, err = r.Apply(domain.Action{Kind: domain.ActionSetSide, Actor: "x"})
	rejected(t, err, domain.ReasonNoSide)
}

func TestDoubleRoundTimeoutClearsThenPauses(t *testing.T) {
	r := newRoom(t, Options{Mechanism: domain.MechanismDouble, DoubleMode: domain.ModeCall, RoundDuration: time.Minute})
	must(t, r, domain.ActionJoin, "b", 0)
	must(t, r, domain.ActionJoin, "s", 0)
	must(t, r, domain.ActionStart, host, 0)
	tm := timers(r.Drain())
	require.Len(t, tm, 1)
	assert.Equal(t, Timer{Kind: TimerRound, After: time.Minute}, tm[0])

	must(t, r, domain.ActionSubmitBuy, "b", 50)
	must(t, r, domain.ActionSubmitSell, "s", 40)
	r.Drain()

	r.Fire(TimerRound)
	assert.Equal(t, domain.StatusPaused, r.Status())
	got := trades(published(r))
	require.Len(t, got, 1)
	assert.Equal(t, int64(40), got[0].Price)

	// a second expiry after the pause is stale
	r.Fire(TimerRound)
	assert.Empty(t, r.Drain())
}

func TestDoubleConfigureShowOrders(t *testing.T) {
	r := doubleRoom(t, domain.ModeCall, "b")
	show := false
	_, err := r.Apply(domain.Action{Kind: domain.ActionConfigure, Actor: host, Params: domain.Params{ShowOrders: &show}})
	require.NoError(t, err)
	assert.False(t, r.Policy().ShowOrders)

	snap := r.Snapshot(domain.AudienceParticipant, "b").Mechanism.(map[string]any)
	_, hasBook := snap["buys"]
	assert.False(t, hasBook)
	snap = r.Snapshot(domain.AudienceAuctioneer, host).Mechanism.(map[string]any)
	_, hasBook = snap["buys"]
	assert.True(t, hasBook)
}

func TestDoubleContinuousNeverLeavesCrossedBook(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r, err := NewRoom(Options{
			Owner:      host,
			Mechanism:  domain.MechanismDouble,
			DoubleMode: domain.ModeContinuous,
			PriceTree:  rapid.SampledFrom([]orderbook.TreeType{orderbook.ShardedType, orderbook.HashMapListType}).Draw(rt, "tree"),
			Budget:     budget.Config{Strategy: budget.StrategyRandom, Min: 10, Max: 300},
			Strict:     true,
		})
		if err != nil {
			rt.Fatal(err)
		}
		r.Apply(domain.Action{Kind: domain.ActionStart, Actor: host})
		traders := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
		for _, who := range traders {
			r.Apply(domain.Action{Kind: domain.ActionJoin, Actor: who})
		}
		d := r.Mechanism().(*Double)
		n := rapid.IntRange(1, 80).Draw(rt, "orders")
		for i := 0; i < n; i++ {
			who := rapid.SampledFrom(traders).Draw(rt, "who")
			kind := domain.ActionSubmitBuy
			if d.Side(who) == domain.SideSell {
				kind = domain.ActionSubmitSell
			}
			r.Apply(domain.Action{Kind: kind, Actor: who, Amount: rapid.Int64Range(1, 320).Draw(rt, "price")})

			bid, okBid := d.Book().BestBid()
			ask, okAsk := d.Book().BestAsk()
			if okBid && okAsk && bid >= ask {
				rt.Fatalf("crossed book after order %d: bid %d ask %d", i, bid, ask)
			}
		}
		for _, b := range r.History() {
			if c, _ := r.Cap(b.Identity); b.Amount > c {
				rt.Fatalf("%s order %d above cap %d", b.Identity, b.Amount, c)
			}
		}
	})
}
