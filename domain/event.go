package domain

import "time"

// EventKind names what happened. Visibility rules key on (event type, kind).
type EventKind string

const (
	// room-level
	KindJoin       EventKind = "join"
	KindLeave      EventKind = "leave"
	KindBudget     EventKind = "budget-assigned"
	KindSide       EventKind = "side-assigned"
	KindRoundState EventKind = "round-state"
	KindConfig     EventKind = "config"

	// ascending
	KindBid EventKind = "bid"

	// descending
	KindTick   EventKind = "tick"
	KindAccept EventKind = "accept"

	// sealed
	KindSealedBid EventKind = "sealed-bid"
	KindReveal    EventKind = "reveal"

	// double
	KindOrder EventKind = "order"
	KindTrade EventKind = "trade"
	KindClear EventKind = "clear"
	KindBook  EventKind = "book"

	// shared
	KindWin EventKind = "win"
)

// EventMeta is stamped by the room when the event is emitted.
type EventMeta struct {
	Seq uint64
	At  time.Time
}

func (m *EventMeta) Meta() *EventMeta { return m }

// Event is a closed union: RoomEvent, AscendingEvent, DescendingEvent,
// SealedEvent and DoubleEvent are its only members.
type Event interface {
	Meta() *EventMeta
	Kind() EventKind
	isEvent()
}

// RoomEvent is mechanism-independent: roster changes, private budget and
// side assignment, round state and configuration broadcasts.
type RoomEvent struct {
	EventMeta
	Type        EventKind
	Actor       string
	Status      Status
	RemainingMs int64
	Amount      int64
	Side        Side
	Config      map[string]any
}

func (e *RoomEvent) Kind() EventKind { return e.Type }
func (*RoomEvent) isEvent()          {}

// AscendingEvent covers English bids and the final hammer.
type AscendingEvent struct {
	EventMeta
	Type   EventKind
	Actor  string
	Amount int64
}

func (e *AscendingEvent) Kind() EventKind { return e.Type }
func (*AscendingEvent) isEvent()          {}

// DescendingEvent covers Dutch clock ticks (ownerless) and the winning accept.
type DescendingEvent struct {
	EventMeta
	Type   EventKind
	Actor  string
	Price  int64
	Floor  int64
	Status Status
}

func (e *DescendingEvent) Kind() EventKind { return e.Type }
func (*DescendingEvent) isEvent()          {}

// SealedEvent covers submissions, the ranked reveal and the win.
// Price is the payable price on the win event.
type SealedEvent struct {
	EventMeta
	Type   EventKind
	Actor  string
	Amount int64
	Price  int64
	Rank   int
}

func (e *SealedEvent) Kind() EventKind { return e.Type }
func (*SealedEvent) isEvent()          {}

// BookEntry is one resting unit order in a book view.
type BookEntry struct {
	Identity string
	Price    int64
	Seq      uint64
}

// DoubleEvent covers orders, trades, call clearings and book snapshots.
// For trades Actor is the buyer and Counterparty the seller.
type DoubleEvent struct {
	EventMeta
	Type         EventKind
	Actor        string
	Counterparty string
	Side         Side
	Price        int64
	Trades       int
	Buys         []BookEntry
	Sells        []BookEntry
}

func (e *DoubleEvent) Kind() EventKind { return e.Type }
func (*DoubleEvent) isEvent()          {}
