package orderbook

import (
	"github.com/pkg/errors"

	"classroom-auction/domain"
)

// DepthLevel is one aggregated price level of the book.
type DepthLevel struct {
	Price  int64 `json:"price"`
	Orders int   `json:"orders"` // number of unit orders at this level
}

// Book implements a price-time priority order book for one double auction room.
// Lock-free design: only accessed by the room's actor goroutine, no
// synchronization needed.
type Book struct {
	roomID string
	kind   TreeType
	bids   Tree // buy orders (descending price)
	asks   Tree // sell orders (ascending price)
	orders map[string]*domain.Order
}

// NewBook creates an empty book backed by the given tree type.
func NewBook(roomID string, kind TreeType) *Book {
	return &Book{
		roomID: roomID,
		kind:   kind,
		bids:   NewTree(kind, true),
		asks:   NewTree(kind, false),
		orders: make(map[string]*domain.Order),
	}
}

func (b *Book) RoomID() string     { return b.roomID }
func (b *Book) TreeType() TreeType { return b.kind }

func (b *Book) side(s domain.Side) Tree {
	if s == domain.SideBuy {
		return b.bids
	}
	return b.asks
}

// Add rests an order in the book.
func (b *Book) Add(order *domain.Order) error {
	if order.Side != domain.SideBuy && order.Side != domain.SideSell {
		return errors.Errorf("order %s has no side", order.ID)
	}
	if _, exists := b.orders[order.ID]; exists {
		return errors.Errorf("order %s already in book", order.ID)
	}
	b.orders[order.ID] = order
	b.side(order.Side).Insert(order)
	return nil
}

// Cancel removes an order by id; unknown ids are ignored.
func (b *Book) Cancel(orderID string) *domain.Order {
	order, exists := b.orders[orderID]
	if !exists {
		return nil
	}
	b.Remove(order)
	return order
}

// Remove takes a resting order out of the book.
func (b *Book) Remove(order *domain.Order) {
	if _, exists := b.orders[order.ID]; !exists {
		return
	}
	b.side(order.Side).Remove(order)
	delete(b.orders, order.ID)
}

// BestBid returns the highest buy price.
func (b *Book) BestBid() (int64, bool) { return bestPrice(b.bids) }

// BestAsk returns the lowest sell price.
func (b *Book) BestAsk() (int64, bool) { return bestPrice(b.asks) }

func bestPrice(t Tree) (int64, bool) {
	level := t.BestLevel()
	if level == nil {
		return 0, false
	}
	return level.Price, true
}

// Best returns the order with priority on a side without removing it.
func (b *Book) Best(s domain.Side) *domain.Order {
	return b.side(s).BestLevel().Front()
}

// PopBest removes and returns the order with priority on a side.
func (b *Book) PopBest(s domain.Side) *domain.Order {
	order := b.Best(s)
	if order != nil {
		b.Remove(order)
	}
	return order
}

// Orders returns a side in full priority order: price first, then sequence.
func (b *Book) Orders(s domain.Side) []*domain.Order {
	tree := b.side(s)
	out := make([]*domain.Order, 0, tree.Len())
	tree.Each(func(o *domain.Order) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Entries renders a side for book events.
func (b *Book) Entries(s domain.Side) []domain.BookEntry {
	orders := b.Orders(s)
	out := make([]domain.BookEntry, len(orders))
	for i, o := range orders {
		out[i] = domain.BookEntry{Identity: o.Identity, Price: o.Price, Seq: o.Seq}
	}
	return out
}

// Depth returns up to levels aggregated levels per side.
func (b *Book) Depth(levels int) (bids, asks []DepthLevel) {
	return depth(b.bids, levels), depth(b.asks, levels)
}

func depth(t Tree, levels int) []DepthLevel {
	raw := t.Depth(levels)
	out := make([]DepthLevel, len(raw))
	for i, level := range raw {
		out[i] = DepthLevel{Price: level.Price, Orders: level.Orders.Len()}
	}
	return out
}

func (b *Book) Len(s domain.Side) int { return b.side(s).Len() }

// CountBy returns how many orders identity has resting on a side.
func (b *Book) CountBy(identity string, s domain.Side) int {
	n := 0
	for _, o := range b.orders {
		if o.Identity == identity && o.Side == s {
			n++
		}
	}
	return n
}

// CheckInvariant verifies both sides are sorted by price priority then
// sequence, and that the trees agree with the order index.
func (b *Book) CheckInvariant() error {
	if err := checkSide(b.bids, domain.SideBuy); err != nil {
		return err
	}
	if err := checkSide(b.asks, domain.SideSell); err != nil {
		return err
	}
	if n := b.bids.Len() + b.asks.Len(); n != len(b.orders) {
		return errors.Errorf("book %s: trees hold %d orders, index holds %d", b.roomID, n, len(b.orders))
	}
	return nil
}

func checkSide(t Tree, s domain.Side) error {
	var prev *domain.Order
	var err error
	t.Each(func(o *domain.Order) bool {
		if o.Side != s {
			err = errors.Errorf("order %s on wrong side %s", o.ID, s)
			return false
		}
		if prev != nil {
			worse := o.Price > prev.Price
			if s == domain.SideSell {
				worse = o.Price < prev.Price
			}
			if worse || (o.Price == prev.Price && !prev.Before(o)) {
				err = errors.Errorf("%s side out of order: %s(%d,#%d) after %s(%d,#%d)",
					s, o.ID, o.Price, o.Seq, prev.ID, prev.Price, prev.Seq)
				return false
			}
		}
		prev = o
		return true
	})
	return err
}
