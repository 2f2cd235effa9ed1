package visibility

import (
	"classroom-auction/domain"
)

// NoteBidReceived replaces the amount of a sealed bid while bids are hidden.
const NoteBidReceived = "bid received"

// Policy decides what each audience may see of a room's events.
type Policy struct {
	Mechanism  domain.MechanismType
	ShowOrders bool // double: participants see orders and the book
	Pseudonyms *Pseudonymizer
}

// Render produces the view of ev for audience given the mechanism's current
// status. ok is false when the audience must not receive the event at all.
func (p Policy) Render(ev domain.Event, status domain.Status, audience domain.Audience) (View, bool) {
	if !p.owns(ev) {
		return View{}, false
	}
	if audience == domain.AudienceAuctioneer {
		return full(ev), true
	}

	v := full(ev)
	switch e := ev.(type) {
	case *domain.RoomEvent:
		switch e.Type {
		case domain.KindBudget, domain.KindSide:
			// private to the identity, never broadcast
			return View{}, false
		case domain.KindJoin, domain.KindLeave:
			v.Actor = ""
		}

	case *domain.AscendingEvent:
		v.Actor = p.alias(e.Actor)

	case *domain.DescendingEvent:
		if e.Type == domain.KindTick {
			v.Actor = ""
		} else {
			v.Actor = p.alias(e.Actor)
		}

	case *domain.SealedEvent:
		switch {
		case e.Type == domain.KindSealedBid:
			v.Actor = ""
			if status == domain.StatusCollecting {
				v.Amount = 0
				v.Note = NoteBidReceived
			}
		case e.Type == domain.KindReveal && e.Rank != 1:
			// 落选者只公开金额和名次
			v.Actor = ""
		default:
			v.Actor = p.alias(e.Actor)
		}

	case *domain.DoubleEvent:
		switch e.Type {
		case domain.KindOrder, domain.KindBook:
			if !p.ShowOrders {
				return View{}, false
			}
		}
		v.Actor = p.alias(e.Actor)
		v.Counterparty = p.alias(e.Counterparty)
		v.Buys = levels(e.Buys, p.alias)
		v.Sells = levels(e.Sells, p.alias)
	}
	return v, true
}

// RenderPrivate is the view sent to the one identity an event concerns.
func (p Policy) RenderPrivate(ev domain.Event) View {
	return full(ev)
}

// owns reports whether ev belongs to the room's mechanism; room events
// belong to every mechanism.
func (p Policy) owns(ev domain.Event) bool {
	switch ev.(type) {
	case *domain.RoomEvent:
		return true
	case *domain.AscendingEvent:
		return p.Mechanism == domain.MechanismEnglish
	case *domain.DescendingEvent:
		return p.Mechanism == domain.MechanismDutch
	case *domain.SealedEvent:
		return p.Mechanism == domain.MechanismSealed
	case *domain.DoubleEvent:
		return p.Mechanism == domain.MechanismDouble
	}
	return false
}

func (p Policy) alias(identity string) string {
	if p.Pseudonyms == nil || identity == "" {
		return ""
	}
	return p.Pseudonyms.Alias(identity)
}
