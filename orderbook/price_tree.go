package orderbook

import (
	"container/list"

	"classroom-auction/domain"
)

// Tree keeps one side of a book in price-time priority.
// Implementations: HashMap+List and sharded red-black tree.
type Tree interface {
	// Insert appends an order to the FIFO queue of its price level
	Insert(order *domain.Order)

	// Remove deletes an order from its price level
	Remove(order *domain.Order)

	// BestLevel returns the best price level, nil when empty
	BestLevel() *Level

	// Level returns the level at price, nil when absent
	Level(price int64) *Level

	// Depth returns copies of the first maxLevels levels from the best price
	Depth(maxLevels int) []Level

	// Each walks orders best-first, FIFO inside a level, until fn returns false
	Each(fn func(order *domain.Order) bool)

	IsEmpty() bool

	// Size returns the number of price levels
	Size() int

	// Len returns the number of resting orders
	Len() int
}

// Level represents all orders at a specific price.
// Forms a doubly linked list for efficient price ordering; orders store their
// list.Element for O(1) deletion.
type Level struct {
	Price  int64
	Orders *list.List // FIFO queue for time priority

	NextPrice *Level // next worse price level
	PrevPrice *Level // previous better price level
}

func newLevel(price int64) *Level {
	return &Level{Price: price, Orders: list.New()}
}

// Front returns the order with time priority at this level.
func (l *Level) Front() *domain.Order {
	if l == nil || l.Orders.Len() == 0 {
		return nil
	}
	return l.Orders.Front().Value.(*domain.Order)
}

func (l *Level) push(order *domain.Order) {
	order.ListElement = l.Orders.PushBack(order)
}

// pop removes order from the level; reports false if it was not linked.
func (l *Level) pop(order *domain.Order) bool {
	if order.ListElement == nil {
		return false
	}
	l.Orders.Remove(order.ListElement.(*list.Element))
	order.ListElement = nil
	return true
}

func eachInLevel(l *Level, fn func(*domain.Order) bool) bool {
	for e := l.Orders.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*domain.Order)) {
			return false
		}
	}
	return true
}

// isBetterPrice returns true if p1 is better than p2 for the side
func isBetterPrice(descending bool, p1, p2 int64) bool {
	if descending {
		return p1 > p2 // bids: higher is better
	}
	return p1 < p2 // asks: lower is better
}

// HashMapListTree: HashMap for O(1) level lookup, doubly linked list of levels
// for O(1) best price access. Inserting a new level is O(n) in the number of
// levels, which stays small in a classroom book.
type HashMapListTree struct {
	levels     map[int64]*Level
	bestPrice  *Level
	descending bool // true for bids (high to low), false for asks (low to high)
	count      int
}

var _ Tree = (*HashMapListTree)(nil)

func NewHashMapListTree(descending bool) *HashMapListTree {
	return &HashMapListTree{
		levels:     make(map[int64]*Level),
		descending: descending,
	}
}

func (pt *HashMapListTree) Insert(order *domain.Order) {
	level, exists := pt.levels[order.Price]
	if !exists {
		level = newLevel(order.Price)
		pt.levels[order.Price] = level
		pt.insertLevel(level)
	}
	level.push(order)
	pt.count++
}

func (pt *HashMapListTree) Remove(order *domain.Order) {
	level, exists := pt.levels[order.Price]
	if !exists {
		return
	}
	if level.pop(order) {
		pt.count--
	}
	if level.Orders.Len() == 0 {
		pt.removeLevel(level)
	}
}

func (pt *HashMapListTree) BestLevel() *Level { return pt.bestPrice }

func (pt *HashMapListTree) Level(price int64) *Level { return pt.levels[price] }

func (pt *HashMapListTree) Depth(maxLevels int) []Level {
	if pt.bestPrice == nil || maxLevels <= 0 {
		return nil
	}
	depth := make([]Level, 0, maxLevels)
	for current := pt.bestPrice; current != nil && len(depth) < maxLevels; current = current.NextPrice {
		depth = append(depth, *current)
	}
	return depth
}

func (pt *HashMapListTree) Each(fn func(*domain.Order) bool) {
	for current := pt.bestPrice; current != nil; current = current.NextPrice {
		if !eachInLevel(current, fn) {
			return
		}
	}
}

func (pt *HashMapListTree) IsEmpty() bool { return pt.bestPrice == nil }

func (pt *HashMapListTree) Size() int { return len(pt.levels) }

func (pt *HashMapListTree) Len() int { return pt.count }

func (pt *HashMapListTree) insertLevel(newLevel *Level) {
	if pt.bestPrice == nil {
		pt.bestPrice = newLevel
		return
	}
	if isBetterPrice(pt.descending, newLevel.Price, pt.bestPrice.Price) {
		newLevel.NextPrice = pt.bestPrice
		pt.bestPrice.PrevPrice = newLevel
		pt.bestPrice = newLevel
		return
	}

	current := pt.bestPrice
	for current.NextPrice != nil {
		if isBetterPrice(pt.descending, newLevel.Price, current.NextPrice.Price) {
			break
		}
		current = current.NextPrice
	}

	newLevel.NextPrice = current.NextPrice
	newLevel.PrevPrice = current
	if current.NextPrice != nil {
		current.NextPrice.PrevPrice = newLevel
	}
	current.NextPrice = newLevel
}

func (pt *HashMapListTree) removeLevel(level *Level) {
	delete(pt.levels, level.Price)
	if level.PrevPrice != nil {
		level.PrevPrice.NextPrice = level.NextPrice
	}
	if level.NextPrice != nil {
		level.NextPrice.PrevPrice = level.PrevPrice
	}
	if pt.bestPrice == level {
		pt.bestPrice = level.NextPrice
	}
	level.NextPrice = nil
	level.PrevPrice = nil
}
