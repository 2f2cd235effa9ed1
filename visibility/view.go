package visibility

import (
	"time"

	"classroom-auction/domain"
)

// View is an event as one audience is allowed to see it. It is the data
// payload of outbound envelopes and of activity responses.
type View struct {
	Type         domain.EventKind `json:"type"`
	Seq          uint64           `json:"seq"`
	TS           time.Time        `json:"ts"`
	Actor        string           `json:"actor,omitempty"`
	Counterparty string           `json:"counterparty,omitempty"`
	Amount       int64            `json:"amount,omitempty"`
	Price        int64            `json:"price,omitempty"`
	Floor        int64            `json:"floor,omitempty"`
	Side         string           `json:"side,omitempty"`
	Status       domain.Status    `json:"status,omitempty"`
	Note         string           `json:"note,omitempty"`
	Rank         int              `json:"rank,omitempty"`
	RemainingMs  int64            `json:"remaining_ms,omitempty"`
	Trades       int              `json:"trades,omitempty"`
	Buys         []BookLevel      `json:"buys,omitempty"`
	Sells        []BookLevel      `json:"sells,omitempty"`
	Config       map[string]any   `json:"config,omitempty"`
}

// BookLevel is one resting order in a book view.
type BookLevel struct {
	Actor string `json:"actor,omitempty"`
	Price int64  `json:"price"`
}

// Outbound envelope types.
const (
	WirePriceUpdate = "price-update"
	WireAuctionEnd  = "auction-ended"
	WireTrade       = "trade"
	WireBook        = "book"
	WireRoundState  = "round-state"
	WireAudit       = "audit"
	WireBudget      = "budget-assigned"
	WireSide        = "side-assigned"
	WireConfig      = "config"
	WireRejection   = "rejection"
	WireSnapshot    = "snapshot"
)

// WireType maps an event kind onto the envelope type it is published under.
func WireType(kind domain.EventKind) string {
	switch kind {
	case domain.KindBid, domain.KindTick:
		return WirePriceUpdate
	case domain.KindWin:
		return WireAuctionEnd
	case domain.KindTrade:
		return WireTrade
	case domain.KindBook:
		return WireBook
	case domain.KindRoundState:
		return WireRoundState
	case domain.KindBudget:
		return WireBudget
	case domain.KindSide:
		return WireSide
	case domain.KindConfig:
		return WireConfig
	default:
		return WireAudit
	}
}

func base(ev domain.Event) View {
	m := ev.Meta()
	return View{Type: ev.Kind(), Seq: m.Seq, TS: m.At}
}

// full renders an event with real identities and every field.
func full(ev domain.Event) View {
	v := base(ev)
	switch e := ev.(type) {
	case *domain.RoomEvent:
		v.Actor = e.Actor
		v.Status = e.Status
		v.RemainingMs = e.RemainingMs
		v.Amount = e.Amount
		v.Side = e.Side.String()
		v.Config = e.Config
	case *domain.AscendingEvent:
		v.Actor = e.Actor
		v.Amount = e.Amount
	case *domain.DescendingEvent:
		v.Actor = e.Actor
		v.Price = e.Price
		v.Floor = e.Floor
		v.Status = e.Status
	case *domain.SealedEvent:
		v.Actor = e.Actor
		v.Amount = e.Amount
		v.Price = e.Price
		v.Rank = e.Rank
	case *domain.DoubleEvent:
		v.Actor = e.Actor
		v.Counterparty = e.Counterparty
		v.Side = e.Side.String()
		v.Price = e.Price
		v.Trades = e.Trades
		v.Buys = levels(e.Buys, nil)
		v.Sells = levels(e.Sells, nil)
	}
	return v
}

func levels(entries []domain.BookEntry, alias func(string) string) []BookLevel {
	if len(entries) == 0 {
		return nil
	}
	out := make([]BookLevel, len(entries))
	for i, e := range entries {
		out[i] = BookLevel{Actor: e.Identity, Price: e.Price}
		if alias != nil {
			out[i].Actor = alias(e.Identity)
		}
	}
	return out
}
