package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-auction/auction"
	"classroom-auction/budget"
	"classroom-auction/domain"
	"classroom-auction/visibility"
)

const host = "teacher"

// waitForCondition 等待条件满足或超时
func waitForCondition(condition func() bool, timeout time.Duration, checkInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(checkInterval)
	}
	return false
}

func startActor(t *testing.T, opts auction.Options, buffer int) *Actor {
	t.Helper()
	opts.Owner = host
	if opts.Budget.Base == 0 {
		opts.Budget = budget.Config{Strategy: budget.StrategyEqual, Base: 100}
	}
	opts.Strict = true
	r, err := auction.NewRoom(opts)
	require.NoError(t, err)
	a := NewActor(r, 16, buffer, nil)
	a.Start()
	t.Cleanup(a.Stop)
	return a
}

func submit(t *testing.T, a *Actor, kind domain.ActionKind, actor string, amount int64) error {
	t.Helper()
	_, err := a.Submit(context.Background(), domain.Action{Kind: kind, Actor: actor, Amount: amount})
	return err
}

// next waits for the next envelope on s.
func next(t *testing.T, s *Subscription) Envelope {
	t.Helper()
	select {
	case env, ok := <-s.Updates():
		require.True(t, ok, "subscription closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope")
	}
	return Envelope{}
}

// until reads envelopes until one of type typ arrives.
func until(t *testing.T, s *Subscription, typ string) Envelope {
	t.Helper()
	for {
		if env := next(t, s); env.Type == typ {
			return env
		}
	}
}

func TestSubmitReturnsRejectionsSynchronously(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish}, 8)

	err := submit(t, a, domain.ActionPlaceBid, "alice", 10)
	require.Error(t, err)
	assert.True(t, domain.IsReason(err, domain.ReasonNotRunning))

	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))
	require.NoError(t, submit(t, a, domain.ActionPlaceBid, "alice", 10))
	assert.True(t, domain.IsReason(submit(t, a, domain.ActionPlaceBid, "bob", 10), domain.ReasonInvalidAmount))
	assert.Equal(t, domain.StatusRunning, a.Descriptor().Status)
}

func TestSubscribeStartsWithSnapshotAndRendersPerAudience(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish}, 32)
	ctx := context.Background()

	hostSub, err := a.Subscribe(ctx, host, domain.AudienceAuctioneer)
	require.NoError(t, err)
	aliceSub, err := a.Subscribe(ctx, "alice", domain.AudienceParticipant)
	require.NoError(t, err)
	assert.Equal(t, visibility.WireSnapshot, next(t, hostSub).Type)
	assert.Equal(t, visibility.WireSnapshot, next(t, aliceSub).Type)
	assert.Equal(t, 2, a.Subscribers())

	require.NoError(t, submit(t, a, domain.ActionJoin, "alice", 0))
	budgetEnv := until(t, aliceSub, visibility.WireBudget)
	assert.Equal(t, int64(100), budgetEnv.Data.(visibility.View).Amount)

	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))
	require.NoError(t, submit(t, a, domain.ActionPlaceBid, "alice", 15))

	hv := until(t, hostSub, visibility.WirePriceUpdate).Data.(visibility.View)
	for hv.Actor == "" { // the opening price update has no bidder
		hv = until(t, hostSub, visibility.WirePriceUpdate).Data.(visibility.View)
	}
	assert.Equal(t, "alice", hv.Actor)

	pv := until(t, aliceSub, visibility.WirePriceUpdate).Data.(visibility.View)
	for pv.Actor == "" {
		pv = until(t, aliceSub, visibility.WirePriceUpdate).Data.(visibility.View)
	}
	assert.NotEqual(t, "alice", pv.Actor)
	assert.Contains(t, pv.Actor, "Bidder-")
}

func TestPrivateEventsReachOnlyTheirIdentity(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismDouble}, 32)
	ctx := context.Background()
	bob, err := a.Subscribe(ctx, "bob", domain.AudienceParticipant)
	require.NoError(t, err)
	next(t, bob)

	require.NoError(t, submit(t, a, domain.ActionJoin, "alice", 0))
	require.NoError(t, submit(t, a, domain.ActionJoin, "bob", 0))

	var types []string
	require.True(t, waitForCondition(func() bool {
		select {
		case env := <-bob.Updates():
			types = append(types, env.Type)
			if v, ok := env.Data.(visibility.View); ok && (env.Type == visibility.WireBudget || env.Type == visibility.WireSide) {
				assert.Equal(t, "bob", v.Actor)
			}
		default:
		}
		return len(types) >= 4
	}, 2*time.Second, time.Millisecond))
	assert.Contains(t, types, visibility.WireBudget)
	assert.Contains(t, types, visibility.WireSide)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish}, 2)
	s, err := a.Subscribe(context.Background(), "lurker", domain.AudienceParticipant)
	require.NoError(t, err)

	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))
	for i := int64(1); i <= 10; i++ {
		require.NoError(t, submit(t, a, domain.ActionPlaceBid, "alice", i))
	}
	assert.Equal(t, 0, a.Subscribers())
	assert.Equal(t, uint64(1), a.Dropped())

	n := 0
	for range s.Updates() {
		n++
	}
	assert.Equal(t, 2, n, "buffered envelopes stay readable after the drop")
}

func TestUnsubscribeClosesFeed(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismSealed}, 4)
	s, err := a.Subscribe(context.Background(), "alice", domain.AudienceParticipant)
	require.NoError(t, err)
	a.Unsubscribe(s)
	require.True(t, waitForCondition(func() bool { return a.Subscribers() == 0 }, time.Second, time.Millisecond))
	next(t, s) // snapshot
	_, ok := <-s.Updates()
	assert.False(t, ok)
}

func TestEnglishCountdownEndsRoom(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish, Countdown: 40 * time.Millisecond}, 8)
	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))
	require.NoError(t, submit(t, a, domain.ActionPlaceBid, "alice", 30))

	ended := waitForCondition(func() bool {
		return a.Descriptor().Status == domain.StatusEnded
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, ended)

	var leader string
	require.NoError(t, a.Inspect(context.Background(), func(r *auction.Room) {
		leader, _ = r.Mechanism().(*auction.English).Winner()
	}))
	assert.Equal(t, "alice", leader)
}

func TestDutchClockTicksUntilFloor(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismDutch, MinTickInterval: 5 * time.Millisecond}, 64)
	_, err := a.Submit(context.Background(), domain.Action{Kind: domain.ActionConfigure, Actor: host, Params: domain.Params{
		StartPrice: 50, Step: 10, Floor: 20, HasFloor: true, Interval: 5 * time.Millisecond,
	}})
	require.NoError(t, err)
	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))

	paused := waitForCondition(func() bool {
		return a.Descriptor().Status == domain.StatusPaused
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, paused)

	var price int64
	require.NoError(t, a.Inspect(context.Background(), func(r *auction.Room) {
		price = r.Mechanism().(*auction.Dutch).Price()
	}))
	assert.Equal(t, int64(20), price)
}

func TestStaleTickIsIgnored(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish, Countdown: time.Hour}, 8)
	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))

	// an expiry from an earlier arming must not end the round
	a.tick(auction.TimerCountdown, 0)
	require.NoError(t, submit(t, a, domain.ActionPlaceBid, "alice", 5))
	assert.Equal(t, domain.StatusRunning, a.Descriptor().Status)

	require.NoError(t, submit(t, a, domain.ActionStop, host, 0))
	assert.Equal(t, domain.StatusEnded, a.Descriptor().Status)
}

func TestConcurrentSubmitsAreSerialised(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismEnglish, Budget: budget.Config{Base: 10_000}}, 8)
	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			who := string(rune('a' + g))
			for i := int64(1); i <= 200; i++ {
				_, _ = a.Submit(context.Background(), domain.Action{Kind: domain.ActionPlaceBid, Actor: who, Amount: i})
			}
		}(g)
	}
	wg.Wait()

	var history []domain.Bid
	require.NoError(t, a.Inspect(context.Background(), func(r *auction.Room) { history = r.History() }))
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Amount, history[i-1].Amount)
	}
	assert.Equal(t, int64(200), history[len(history)-1].Amount)
}

func TestConcurrentDutchAcceptsHaveOneWinner(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismDutch}, 64)
	_, err := a.Submit(context.Background(), domain.Action{Kind: domain.ActionConfigure, Actor: host, Params: domain.Params{
		StartPrice: 80, Step: 10, Floor: 20, HasFloor: true, Interval: time.Hour,
	}})
	require.NoError(t, err)
	require.NoError(t, submit(t, a, domain.ActionStart, host, 0))

	const bidders = 16
	var (
		wg   sync.WaitGroup
		gate = make(chan struct{})
		errs = make([]error, bidders)
	)
	for g := 0; g < bidders; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-gate
			_, errs[g] = a.Submit(context.Background(), domain.Action{Kind: domain.ActionAcceptPrice, Actor: fmt.Sprintf("student-%d", g)})
		}(g)
	}
	close(gate)
	wg.Wait()

	winner := ""
	for g, err := range errs {
		if err == nil {
			require.Empty(t, winner, "only one accept may win")
			winner = fmt.Sprintf("student-%d", g)
			continue
		}
		assert.True(t, domain.IsReason(err, domain.ReasonNotRunning), "got %v", err)
	}
	require.NotEmpty(t, winner)

	readWinner := func() (string, int64) {
		var (
			who   string
			price int64
		)
		require.NoError(t, a.Inspect(context.Background(), func(r *auction.Room) {
			d := r.Mechanism().(*auction.Dutch)
			who, price = d.Winner(), d.Price()
		}))
		return who, price
	}
	who, price := readWinner()
	assert.Equal(t, winner, who)
	assert.Equal(t, int64(80), price)
	assert.Equal(t, domain.StatusEnded, a.Descriptor().Status)

	// 结束后的接受不会改变成交者
	err = submit(t, a, domain.ActionAcceptPrice, "late", 0)
	assert.True(t, domain.IsReason(err, domain.ReasonNotRunning))
	who, _ = readWinner()
	assert.Equal(t, winner, who)
}

func TestStoppedActorRejectsWithRoomClosed(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismSealed}, 4)
	s, err := a.Subscribe(context.Background(), "alice", domain.AudienceParticipant)
	require.NoError(t, err)
	a.Stop()
	a.Stop()

	err = submit(t, a, domain.ActionSubmitBid, "alice", 5)
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.True(t, domain.IsReason(err, domain.ReasonRoomClosed))

	_, err = a.Activity(context.Background(), domain.AudienceParticipant)
	assert.ErrorIs(t, err, ErrRoomClosed)

	next(t, s)
	_, ok := <-s.Updates()
	assert.False(t, ok, "stop closes subscriptions")
}

func TestActivityAndSnapshotQueries(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismSealed}, 4)
	require.NoError(t, submit(t, a, domain.ActionSubmitBid, "alice", 40))

	ctx := context.Background()
	views, err := a.Activity(ctx, domain.AudienceParticipant)
	require.NoError(t, err)
	for _, v := range views {
		assert.Empty(t, v.Actor)
	}
	views, err = a.Activity(ctx, domain.AudienceAuctioneer)
	require.NoError(t, err)
	require.NotEmpty(t, views)
	assert.Equal(t, "alice", views[len(views)-1].Actor)

	snap, err := a.Snapshot(ctx, domain.AudienceParticipant, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.Cap)
	assert.Equal(t, domain.StatusCollecting, snap.Room.Status)
}

func TestSubmitHonoursContext(t *testing.T) {
	a := startActor(t, auction.Options{Mechanism: domain.MechanismSealed}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Submit(ctx, domain.Action{Kind: domain.ActionSubmitBid, Actor: "alice", Amount: 5})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
