package domain

import "time"

// ActionKind names an inbound action. The values double as wire names.
type ActionKind string

const (
	ActionJoin        ActionKind = "join"
	ActionLeave       ActionKind = "leave"
	ActionStart       ActionKind = "start"
	ActionStop        ActionKind = "stop"
	ActionEnd         ActionKind = "end"
	ActionConfigure   ActionKind = "configure"
	ActionPlaceBid    ActionKind = "place-bid"
	ActionSetPrice    ActionKind = "set-price"
	ActionAcceptPrice ActionKind = "accept-price"
	ActionSubmitBid   ActionKind = "submit-bid"
	ActionReveal      ActionKind = "reveal"
	ActionSubmitBuy   ActionKind = "submit-buy"
	ActionSubmitSell  ActionKind = "submit-sell"
	ActionSetSide     ActionKind = "set-side"
	ActionClear       ActionKind = "clear"
)

// Params carries mechanism configuration sent with start/configure actions.
// Zero values mean "keep the current setting".
type Params struct {
	StartPrice int64
	Step       int64
	Floor      int64
	HasFloor   bool
	Interval   time.Duration
	Duration   time.Duration
	ShowOrders *bool
}

// Action is one inbound request against a room, tagged with the actor.
type Action struct {
	Kind   ActionKind
	Actor  string
	Amount int64
	Side   Side
	Params Params
}

// Result is what the room actor returns to the caller of a successful action.
type Result struct {
	Status Status `json:"status"`
	Seq    uint64 `json:"seq"`
}
