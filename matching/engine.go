package matching

import (
	"github.com/pkg/errors"

	"classroom-auction/domain"
	"classroom-auction/orderbook"
)

// MatchingEngine matches unit orders for ONE double auction room.
// Architecture:
//   - Each MatchingEngine owns exactly one order book
//   - It is driven synchronously by the room's actor goroutine, so matching is
//     deterministic and lock-free
//   - Continuous mode matches on every submission; call mode accumulates and
//     clears at a single uniform price on demand
type MatchingEngine struct {
	roomID     string
	orderBook  *orderbook.Book
	orderIDGen *IDGenerator
	tradeIDGen *IDGenerator
}

// Clearing is the outcome of one call-market clearing.
type Clearing struct {
	Price  int64           // uniform price, zero when nothing crossed
	Trades []*domain.Trade // k trades, all at Price
}

// NewMatchingEngine creates a matching engine for a room.
func NewMatchingEngine(roomID string, kind orderbook.TreeType) *MatchingEngine {
	return &MatchingEngine{
		roomID:     roomID,
		orderBook:  orderbook.NewBook(roomID, kind),
		orderIDGen: NewIDGenerator("O"),
		tradeIDGen: NewIDGenerator("T"),
	}
}

// Book returns the order book. Callers must be on the owning goroutine.
func (me *MatchingEngine) Book() *orderbook.Book { return me.orderBook }

// NewOrder builds a unit limit order with a fresh id.
func (me *MatchingEngine) NewOrder(identity string, side domain.Side, price int64, seq uint64) *domain.Order {
	return domain.NewLimitOrder(me.orderIDGen.Next(), me.roomID, identity, side, price, seq)
}

// Rest adds an order without matching (call mode).
func (me *MatchingEngine) Rest(order *domain.Order) error {
	if err := me.orderBook.CheckInvariant(); err != nil {
		return err
	}
	return errors.Wrap(me.orderBook.Add(order), "rest order")
}

// Continuous inserts an incoming order and sweeps the book until nothing
// crosses.
func (me *MatchingEngine) Continuous(incoming *domain.Order) ([]*domain.Trade, error) {
	if err := me.Rest(incoming); err != nil {
		return nil, err
	}
	return me.sweep(), nil
}

// Sweep runs one continuous matching pass over the resting book.
func (me *MatchingEngine) Sweep() ([]*domain.Trade, error) {
	if err := me.orderBook.CheckInvariant(); err != nil {
		return nil, err
	}
	return me.sweep(), nil
}

func (me *MatchingEngine) sweep() []*domain.Trade {
	var trades []*domain.Trade
	for {
		buy := me.orderBook.Best(domain.SideBuy)
		sell := me.orderBook.Best(domain.SideSell)
		if buy == nil || sell == nil || !domain.Crosses(buy.Price, sell.Price) {
			return trades
		}

		// the order that was already waiting sets the price
		price := sell.Price
		if buy.Before(sell) {
			price = buy.Price
		}
		me.orderBook.Remove(buy)
		me.orderBook.Remove(sell)
		trades = append(trades, domain.NewTrade(me.tradeIDGen.Next(), price, buy, sell))
	}
}

// Call clears the book at a uniform price: with buys sorted descending and
// sells ascending, k is the largest count where the k-th buy is >= the k-th
// sell, and all k pairs trade at the k-th sell price.
func (me *MatchingEngine) Call() (Clearing, error) {
	if err := me.orderBook.CheckInvariant(); err != nil {
		return Clearing{}, err
	}
	buys := me.orderBook.Orders(domain.SideBuy)
	sells := me.orderBook.Orders(domain.SideSell)

	k := 0
	for k < len(buys) && k < len(sells) && domain.Crosses(buys[k].Price, sells[k].Price) {
		k++
	}
	if k == 0 {
		return Clearing{}, nil
	}

	clearing := Clearing{Price: sells[k-1].Price, Trades: make([]*domain.Trade, 0, k)}
	for i := 0; i < k; i++ {
		me.orderBook.Remove(buys[i])
		me.orderBook.Remove(sells[i])
		clearing.Trades = append(clearing.Trades, domain.NewTrade(me.tradeIDGen.Next(), clearing.Price, buys[i], sells[i]))
	}
	return clearing, nil
}
