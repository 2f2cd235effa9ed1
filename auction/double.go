package auction

import (
	"time"

	"go.uber.org/zap"

	"classroom-auction/domain"
	"classroom-auction/matching"
	"classroom-auction/orderbook"
)

// DoubleConfig fixes a double auction's behaviour at creation.
type DoubleConfig struct {
	Mode          domain.DoubleMode
	AutoAssign    bool // balance buyers and sellers on first observation
	CapSellers    bool // check sell prices against caps as well as buys
	RoundDuration time.Duration
	PriceTree     orderbook.TreeType
}

// Double is the two-sided auction in continuous or call mode:
// waiting -> running <-> paused -> ended.
type Double struct {
	cfg      DoubleConfig
	status   domain.Status
	engine   *matching.MatchingEngine
	sides    map[string]domain.Side
	buyers   int
	sellers  int
	orderSeq uint64
	trades   []*domain.Trade
	last     int64
	deadline time.Time
}

var _ Mechanism = (*Double)(nil)

func NewDouble(roomID string, cfg DoubleConfig) *Double {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeCall
	}
	return &Double{
		cfg:    cfg,
		status: domain.StatusWaiting,
		engine: matching.NewMatchingEngine(roomID, cfg.PriceTree),
		sides:  make(map[string]domain.Side),
	}
}

func (d *Double) Type() domain.MechanismType { return domain.MechanismDouble }
func (d *Double) Status() domain.Status      { return d.status }

// OnJoin auto-assigns the side with fewer members; ties go to buy.
func (d *Double) OnJoin(r *Room, identity string, host bool) {
	if host || !d.cfg.AutoAssign {
		return
	}
	side := domain.SideBuy
	if d.buyers > d.sellers {
		side = domain.SideSell
	}
	d.assign(r, identity, side)
}

func (d *Double) assign(r *Room, identity string, side domain.Side) {
	switch d.sides[identity] {
	case domain.SideBuy:
		d.buyers--
	case domain.SideSell:
		d.sellers--
	}
	d.sides[identity] = side
	if side == domain.SideBuy {
		d.buyers++
	} else {
		d.sellers++
	}
	r.Reply(identity, &domain.RoomEvent{Type: domain.KindSide, Actor: identity, Side: side})
}

func (d *Double) Handle(r *Room, a domain.Action) error {
	switch a.Kind {
	case domain.ActionStart:
		return d.start(r, a.Params)
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
		r.Cancel(TimerRound)
		d.deadline = time.Time{}
		d.status = domain.StatusEnded
		r.RoundState(0)
		r.Logger().Info("double auction ended", zap.Int("trades", len(d.trades)))
		return nil
	case domain.ActionConfigure:
		if a.Params.ShowOrders != nil {
			r.SetShowOrders(*a.Params.ShowOrders)
		}
		r.Emit(&domain.RoomEvent{Type: domain.KindConfig, Config: map[string]any{
			"show_orders": r.Policy().ShowOrders,
		}})
		d.publishBook(r)
		return nil
	case domain.ActionSetSide:
		return d.setSide(r, a.Actor, a.Side)
	case domain.ActionSubmitBuy:
		return d.submit(r, a.Actor, domain.SideBuy, a.Amount)
	case domain.ActionSubmitSell:
		return d.submit(r, a.Actor, domain.SideSell, a.Amount)
	case domain.ActionClear:
		if d.status == domain.StatusEnded {
			return notRunning(d.status)
		}
		d.clear(r)
		return nil
	}
	return wrongMechanism(d, a)
}

func (d *Double) start(r *Room, p domain.Params) error {
	switch d.status {
	case domain.StatusRunning:
		return nil
	case domain.StatusEnded:
		return notRunning(d.status)
	}
	round := d.cfg.RoundDuration
	if p.Duration > 0 {
		round = p.Duration
	}
	d.status = domain.StatusRunning
	d.deadline = time.Time{}
	if round > 0 {
		d.deadline = r.Now().Add(round)
		r.Schedule(TimerRound, round)
	}
	r.RoundState(round)
	r.Logger().Info("double round started", zap.String("mode", string(d.cfg.Mode)), zap.Duration("round", round))
	return nil
}

func (d *Double) pause(r *Room) {
	r.Cancel(TimerRound)
	d.deadline = time.Time{}
	d.status = domain.StatusPaused
	r.RoundState(0)
}

func (d *Double) OnTimer(r *Room, kind TimerKind) {
	if kind != TimerRound || d.status != domain.StatusRunning {
		return
	}
	if d.cfg.Mode == domain.ModeCall {
		d.clear(r)
	}
	d.pause(r)
}

func (d *Double) setSide(r *Room, identity string, side domain.Side) error {
	if side == domain.SideNone {
		return domain.Reject(domain.ReasonNoSide)
	}
	current := d.sides[identity]
	if current == side {
		return nil
	}
	if current != domain.SideNone && d.engine.Book().CountBy(identity, current) > 0 {
		return domain.Reject(domain.ReasonSideMismatch, "side", current.String(), "reason", "resting orders")
	}
	d.assign(r, identity, side)
	return nil
}

func (d *Double) submit(r *Room, identity string, side domain.Side, price int64) error {
	if d.status != domain.StatusRunning {
		return notRunning(d.status)
	}
	if !r.IsHost(identity) {
		assigned := d.sides[identity]
		switch {
		case assigned == domain.SideNone:
			return domain.Reject(domain.ReasonNoSide)
		case assigned != side:
			return domain.Reject(domain.ReasonSideMismatch, "side", assigned.String())
		}
	}
	if price <= 0 {
		return domain.Reject(domain.ReasonInvalidAmount, "price", price)
	}
	if (side == domain.SideBuy || d.cfg.CapSellers) && !r.Allows(identity, price) {
		return overBudget(r, identity, price)
	}

	d.orderSeq++
	order := d.engine.NewOrder(identity, side, price, d.orderSeq)
	r.RecordBid(identity, price, side, submitAction(side))
	r.Emit(&domain.DoubleEvent{Type: domain.KindOrder, Actor: identity, Side: side, Price: price})

	if d.cfg.Mode == domain.ModeContinuous {
		trades, err := d.engine.Continuous(order)
		r.Assert(err)
		d.publishTrades(r, trades)
	} else {
		r.Assert(d.engine.Rest(order))
	}
	d.publishBook(r)
	return nil
}

func submitAction(side domain.Side) domain.ActionKind {
	if side == domain.SideBuy {
		return domain.ActionSubmitBuy
	}
	return domain.ActionSubmitSell
}

// clear runs a uniform-price call in call mode and one sweep in continuous
// mode. A clear event is emitted even when nothing trades.
func (d *Double) clear(r *Room) {
	var (
		trades []*domain.Trade
		price  int64
	)
	if d.cfg.Mode == domain.ModeCall {
		clearing, err := d.engine.Call()
		r.Assert(err)
		trades, price = clearing.Trades, clearing.Price
	} else {
		var err error
		trades, err = d.engine.Sweep()
		r.Assert(err)
	}
	d.publishTrades(r, trades)
	r.Emit(&domain.DoubleEvent{Type: domain.KindClear, Price: price, Trades: len(trades)})
	d.publishBook(r)
	r.Logger().Info("double book cleared", zap.String("mode", string(d.cfg.Mode)), zap.Int("trades", len(trades)), zap.Int64("price", price))
}

func (d *Double) publishTrades(r *Room, trades []*domain.Trade) {
	for _, t := range trades {
		d.trades = append(d.trades, t)
		d.last = t.Price
		r.Emit(&domain.DoubleEvent{
			Type:         domain.KindTrade,
			Actor:        t.Buyer,
			Counterparty: t.Seller,
			Price:        t.Price,
		})
	}
}

func (d *Double) publishBook(r *Room) {
	book := d.engine.Book()
	r.Emit(&domain.DoubleEvent{
		Type:  domain.KindBook,
		Buys:  book.Entries(domain.SideBuy),
		Sells: book.Entries(domain.SideSell),
	})
}

// Side returns the side assigned to identity.
func (d *Double) Side(identity string) domain.Side { return d.sides[identity] }

// Trades returns the trade log.
func (d *Double) Trades() []*domain.Trade { return append([]*domain.Trade(nil), d.trades...) }

// Book exposes the order book to the owning goroutine.
func (d *Double) Book() *orderbook.Book { return d.engine.Book() }

func (d *Double) Snapshot(r *Room, audience domain.Audience) any {
	snap := map[string]any{
		"status":       d.status,
		"mode":         d.cfg.Mode,
		"buyers":       d.buyers,
		"sellers":      d.sellers,
		"trades":       len(d.trades),
		"last_price":   d.last,
		"remaining_ms": remaining(r, d.deadline).Milliseconds(),
	}
	if audience == domain.AudienceAuctioneer || r.Policy().ShowOrders {
		book := d.engine.Book()
		snap["buys"] = d.bookView(r, book.Entries(domain.SideBuy), audience)
		snap["sells"] = d.bookView(r, book.Entries(domain.SideSell), audience)
	}
	return snap
}

func (d *Double) bookView(r *Room, entries []domain.BookEntry, audience domain.Audience) []map[string]any {
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{"actor": r.alias(e.Identity, audience), "price": e.Price}
	}
	return out
}
