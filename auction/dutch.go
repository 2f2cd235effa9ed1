package auction

import (
	"time"

	"go.uber.org/zap"

	"classroom-auction/domain"
)

// Dutch is the descending clock auction: waiting -> paused <-> running -> ended.
type Dutch struct {
	status      domain.Status
	price       int64
	step        int64
	floor       int64
	interval    time.Duration
	minInterval time.Duration
	configured  bool
	started     bool // the clock has run at least once
	winner      string
	ticks       int
}

var _ Mechanism = (*Dutch)(nil)

func NewDutch(minInterval time.Duration) *Dutch {
	if minInterval <= 0 {
		minInterval = DefaultMinTickInterval
	}
	return &Dutch{
		status:      domain.StatusWaiting,
		interval:    DefaultTickInterval,
		minInterval: minInterval,
	}
}

func (d *Dutch) Type() domain.MechanismType { return domain.MechanismDutch }
func (d *Dutch) Status() domain.Status      { return d.status }

func (d *Dutch) OnJoin(*Room, string, bool) {}

func (d *Dutch) Handle(r *Room, a domain.Action) error {
	switch a.Kind {
	case domain.ActionConfigure:
		return d.configure(r, a.Params)
	case domain.ActionSetPrice:
		if !d.configured {
			return domain.Reject(domain.ReasonNotStarted, "reason", "clock not configured")
		}
		return d.configure(r, domain.Params{
			StartPrice: a.Amount,
			Step:       d.step,
			Floor:      d.floor,
			HasFloor:   true,
			Interval:   d.interval,
		})
	case domain.ActionStart:
		return d.start(r)
	case domain.ActionStop:
		if d.status != domain.StatusRunning {
			return notRunning(d.status)
		}
		d.pause(r)
		return nil
	case domain.ActionEnd:
		if d.status == domain.StatusEnded {
			return notRunning(d.status)
		}
		d.end(r, "")
		return nil
	case domain.ActionAcceptPrice:
		return d.accept(r, a.Actor)
	}
	return wrongMechanism(d, a)
}

func (d *Dutch) configure(r *Room, p domain.Params) error {
	if d.status != domain.StatusWaiting && d.status != domain.StatusPaused {
		return notRunning(d.status)
	}
	step, floor, interval := d.step, d.floor, d.interval
	if p.Step != 0 {
		step = p.Step
	}
	if p.HasFloor {
		floor = p.Floor
	}
	if p.Interval != 0 {
		interval = p.Interval
	}
	if interval < d.minInterval {
		interval = d.minInterval
	}
	switch {
	case p.StartPrice <= 0:
		return domain.Reject(domain.ReasonInvalidAmount, "start_price", p.StartPrice)
	case step <= 0:
		return domain.Reject(domain.ReasonInvalidAmount, "step", step)
	case floor < 0 || floor >= p.StartPrice:
		return domain.Reject(domain.ReasonInvalidAmount, "floor", floor, "start_price", p.StartPrice)
	}

	d.price, d.step, d.floor, d.interval = p.StartPrice, step, floor, interval
	d.configured = true
	d.status = domain.StatusPaused
	r.Emit(&domain.RoomEvent{Type: domain.KindConfig, Config: map[string]any{
		"start_price": d.price,
		"step":        d.step,
		"floor":       d.floor,
		"interval_ms": d.interval.Milliseconds(),
	}})
	r.Emit(d.tick())
	r.RoundState(0)
	return nil
}

func (d *Dutch) start(r *Room) error {
	switch {
	case d.status == domain.StatusEnded:
		return notRunning(d.status)
	case !d.configured:
		return domain.Reject(domain.ReasonNotStarted, "reason", "clock not configured")
	case d.status == domain.StatusRunning:
		return nil
	case d.price <= d.floor:
		return domain.Reject(domain.ReasonInvalidAmount, "price", d.price, "floor", d.floor)
	}
	d.status = domain.StatusRunning
	d.started = true
	r.Schedule(TimerClock, d.interval)
	r.RoundState(d.interval)
	r.Logger().Info("dutch clock started", zap.Int64("price", d.price), zap.Int64("step", d.step), zap.Int64("floor", d.floor))
	return nil
}

func (d *Dutch) OnTimer(r *Room, kind TimerKind) {
	if kind != TimerClock || d.status != domain.StatusRunning {
		return
	}
	d.price -= d.step
	if d.price < d.floor {
		d.price = d.floor
	}
	d.ticks++
	if d.price == d.floor {
		// the floor stops the clock but leaves the auction open
		d.status = domain.StatusPaused
		r.Emit(d.tick())
		r.RoundState(0)
		return
	}
	r.Emit(d.tick())
	r.Schedule(TimerClock, d.interval)
}

func (d *Dutch) pause(r *Room) {
	r.Cancel(TimerClock)
	d.status = domain.StatusPaused
	r.RoundState(0)
}

func (d *Dutch) accept(r *Room, identity string) error {
	switch {
	case d.status == domain.StatusEnded:
		return notRunning(d.status)
	case !d.started:
		return domain.Reject(domain.ReasonNotStarted, "status", string(d.status))
	case !r.Allows(identity, d.price):
		return overBudget(r, identity, d.price)
	}
	r.RecordBid(identity, d.price, domain.SideNone, domain.ActionAcceptPrice)
	r.Emit(&domain.DescendingEvent{Type: domain.KindAccept, Actor: identity, Price: d.price, Floor: d.floor, Status: d.status})
	d.end(r, identity)
	return nil
}

// end is terminal; the winner is set at most once because every later accept
// sees StatusEnded.
func (d *Dutch) end(r *Room, winner string) {
	r.Cancel(TimerClock)
	d.status = domain.StatusEnded
	d.winner = winner
	r.Emit(&domain.DescendingEvent{Type: domain.KindWin, Actor: winner, Price: d.price, Floor: d.floor, Status: d.status})
	r.RoundState(0)
	r.Logger().Info("dutch auction ended", zap.String("winner", winner), zap.Int64("price", d.price), zap.Int("ticks", d.ticks))
}

func (d *Dutch) tick() *domain.DescendingEvent {
	return &domain.DescendingEvent{Type: domain.KindTick, Price: d.price, Floor: d.floor, Status: d.status}
}

// Price returns the current clock price.
func (d *Dutch) Price() int64 { return d.price }

// Winner returns the accepting identity, empty until someone accepts.
func (d *Dutch) Winner() string { return d.winner }

func (d *Dutch) Snapshot(r *Room, audience domain.Audience) any {
	return map[string]any{
		"status":      d.status,
		"price":       d.price,
		"step":        d.step,
		"floor":       d.floor,
		"interval_ms": d.interval.Milliseconds(),
		"winner":      r.alias(d.winner, audience),
	}
}
