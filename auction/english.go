package auction

import (
	"time"

	"go.uber.org/zap"

	"classroom-auction/domain"
)

// English is the ascending open-outcry auction: waiting -> running -> ended.
type English struct {
	status    domain.Status
	price     int64
	leader    string
	countdown time.Duration // 0 disables the no-bid auto end
	deadline  time.Time
	bids      int
}

var _ Mechanism = (*English)(nil)

func NewEnglish(countdown time.Duration) *English {
	return &English{status: domain.StatusWaiting, countdown: countdown}
}

func (e *English) Type() domain.MechanismType { return domain.MechanismEnglish }
func (e *English) Status() domain.Status      { return e.status }

func (e *English) OnJoin(*Room, string, bool) {}

func (e *English) Handle(r *Room, a domain.Action) error {
	switch a.Kind {
	case domain.ActionStart:
		return e.start(r, a.Params)
	case domain.ActionPlaceBid:
		return e.bid(r, a.Actor, a.Amount)
	case domain.ActionStop:
		if e.status != domain.StatusRunning {
			return notRunning(e.status)
		}
		e.finish(r)
		return nil
	case domain.ActionEnd:
		if e.status == domain.StatusEnded {
			return notRunning(e.status)
		}
		e.finish(r)
		return nil
	}
	return wrongMechanism(e, a)
}

func (e *English) start(r *Room, p domain.Params) error {
	switch e.status {
	case domain.StatusRunning:
		return nil
	case domain.StatusEnded:
		return notRunning(e.status)
	}
	if p.StartPrice < 0 {
		return domain.Reject(domain.ReasonInvalidAmount, "start_price", p.StartPrice)
	}
	if p.Duration > 0 {
		e.countdown = p.Duration
	}
	e.price = p.StartPrice
	e.status = domain.StatusRunning
	e.armCountdown(r)
	r.Emit(&domain.AscendingEvent{Type: domain.KindBid, Amount: e.price})
	r.RoundState(remaining(r, e.deadline))
	r.Logger().Info("english round started", zap.Int64("start_price", e.price), zap.Duration("countdown", e.countdown))
	return nil
}

func (e *English) bid(r *Room, identity string, amount int64) error {
	if e.status != domain.StatusRunning {
		return notRunning(e.status)
	}
	if amount <= e.price {
		return domain.Reject(domain.ReasonInvalidAmount, "current", e.price, "amount", amount)
	}
	if !r.Allows(identity, amount) {
		return overBudget(r, identity, amount)
	}

	e.price = amount
	e.leader = identity
	e.bids++
	r.RecordBid(identity, amount, domain.SideNone, domain.ActionPlaceBid)
	e.armCountdown(r)
	r.Emit(&domain.AscendingEvent{Type: domain.KindBid, Actor: identity, Amount: amount})
	if e.countdown > 0 {
		r.RoundState(e.countdown)
	}
	return nil
}

func (e *English) armCountdown(r *Room) {
	if e.countdown <= 0 {
		return
	}
	e.deadline = r.Now().Add(e.countdown)
	r.Schedule(TimerCountdown, e.countdown)
}

func (e *English) OnTimer(r *Room, kind TimerKind) {
	if kind != TimerCountdown || e.status != domain.StatusRunning {
		return
	}
	e.finish(r)
}

// finish cancels the countdown before the transition so a late expiry can
// never reopen the round.
func (e *English) finish(r *Room) {
	r.Cancel(TimerCountdown)
	e.deadline = time.Time{}
	e.status = domain.StatusEnded
	r.Emit(&domain.AscendingEvent{Type: domain.KindWin, Actor: e.leader, Amount: e.price})
	r.RoundState(0)
	r.Logger().Info("english round ended", zap.String("winner", e.leader), zap.Int64("price", e.price), zap.Int("bids", e.bids))
}

// Winner returns the leading bidder and price; leader is empty when nobody bid.
func (e *English) Winner() (string, int64) { return e.leader, e.price }

func (e *English) Snapshot(r *Room, audience domain.Audience) any {
	return map[string]any{
		"status":       e.status,
		"price":        e.price,
		"leader":       r.alias(e.leader, audience),
		"bids":         e.bids,
		"remaining_ms": remaining(r, e.deadline).Milliseconds(),
	}
}
