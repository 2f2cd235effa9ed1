package domain

import (
	"strings"
	"time"
)

// Side represents the order side (Buy or Sell)
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return ""
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

// ParseSide accepts "buy"/"buyer" and "sell"/"seller".
func ParseSide(v string) Side {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy", "buyer", "bid":
		return SideBuy
	case "sell", "seller", "ask":
		return SideSell
	default:
		return SideNone
	}
}

// Order is one unit order resting in (or arriving at) a double auction book.
// Seq is assigned by the room and strictly increases, so it is the time
// priority key; SubmittedAt is informational.
type Order struct {
	ID          string
	Price       int64
	Seq         uint64
	Side        Side
	ListElement interface{} // pointer to list.Element for O(1) deletion

	RoomID      string
	Identity    string
	SubmittedAt time.Time
}

// NewLimitOrder creates a new unit limit order.
func NewLimitOrder(id, roomID, identity string, side Side, price int64, seq uint64) *Order {
	return &Order{
		ID:          id,
		RoomID:      roomID,
		Identity:    identity,
		Side:        side,
		Price:       price,
		Seq:         seq,
		SubmittedAt: time.Now(),
	}
}

// Before reports whether o has time priority over other.
func (o *Order) Before(other *Order) bool {
	return o.Seq < other.Seq
}

// Crosses reports whether a buy at bid and a sell at ask can trade.
func Crosses(bid, ask int64) bool {
	return bid >= ask
}

// Bid is one entry of a room's append-only bid/order history.
type Bid struct {
	Identity string    `json:"identity"`
	Amount   int64     `json:"amount"`
	Side     string    `json:"side,omitempty"`
	Action   string    `json:"action"`
	Time     time.Time `json:"time"`
}
