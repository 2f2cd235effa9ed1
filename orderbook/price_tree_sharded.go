package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"classroom-auction/domain"
)

const (
	bucketSize = 128 // 2^7, so price & bucketMask == price % bucketSize
	bucketMask = bucketSize - 1
)

// ShardedTree 使用分片 + Ordered Map 架构
// 外层：红黑树管理 bucket（O(log m)），比较器让最佳 bucket 始终在最左
// 内层：固定数组存储价格档位（O(1)）+ 链表维护档位顺序
type ShardedTree struct {
	buckets    *rbt.Tree[int64, *bucket]
	bestBucket *bucket
	isBuy      bool
	count      int
}

var _ Tree = (*ShardedTree)(nil)

// bucket 代表一个价格分片
type bucket struct {
	id        int64 // price / bucketSize
	levels    [bucketSize]*Level
	bestPrice *Level // bucket 内最佳价格（链表头）
	size      int
	isBuy     bool
}

func NewShardedTree(isBuy bool) *ShardedTree {
	comparator := func(a, b int64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	if isBuy {
		// 买单：bucket ID 从大到小
		asc := comparator
		comparator = func(a, b int64) int { return asc(b, a) }
	}
	return &ShardedTree{
		buckets: rbt.NewWith[int64, *bucket](comparator),
		isBuy:   isBuy,
	}
}

func (st *ShardedTree) Insert(order *domain.Order) {
	id := order.Price / bucketSize
	b, found := st.buckets.Get(id)
	if !found {
		b = &bucket{id: id, isBuy: st.isBuy}
		st.buckets.Put(id, b)
	}

	level := b.levels[order.Price&bucketMask]
	if level == nil {
		level = newLevel(order.Price)
		b.insert(level)
	}
	level.push(order)
	st.count++

	if st.bestBucket == nil || st.isBetterBucket(id, st.bestBucket.id) {
		st.bestBucket = b
	}
}

func (st *ShardedTree) Remove(order *domain.Order) {
	id := order.Price / bucketSize
	b, found := st.buckets.Get(id)
	if !found {
		return
	}
	level := b.levels[order.Price&bucketMask]
	if level == nil {
		return
	}
	if level.pop(order) {
		st.count--
	}
	if level.Orders.Len() > 0 {
		return
	}

	b.remove(order.Price)
	if b.size == 0 {
		st.buckets.Remove(id)
		if st.bestBucket == b {
			st.bestBucket = nil
			if node := st.buckets.Left(); node != nil {
				st.bestBucket = node.Value
			}
		}
	}
}

func (st *ShardedTree) BestLevel() *Level {
	if st.bestBucket == nil {
		return nil
	}
	return st.bestBucket.bestPrice
}

func (st *ShardedTree) Level(price int64) *Level {
	b, found := st.buckets.Get(price / bucketSize)
	if !found {
		return nil
	}
	return b.levels[price&bucketMask]
}

func (st *ShardedTree) Depth(maxLevels int) []Level {
	if maxLevels <= 0 || st.buckets.Empty() {
		return nil
	}
	result := make([]Level, 0, maxLevels)
	it := st.buckets.Iterator()
	for it.Next() && len(result) < maxLevels {
		for current := it.Value().bestPrice; current != nil && len(result) < maxLevels; current = current.NextPrice {
			result = append(result, *current)
		}
	}
	return result
}

func (st *ShardedTree) Each(fn func(*domain.Order) bool) {
	it := st.buckets.Iterator()
	for it.Next() {
		for current := it.Value().bestPrice; current != nil; current = current.NextPrice {
			if !eachInLevel(current, fn) {
				return
			}
		}
	}
}

func (st *ShardedTree) IsEmpty() bool { return st.buckets.Empty() }

func (st *ShardedTree) Size() int {
	n := 0
	it := st.buckets.Iterator()
	for it.Next() {
		n += it.Value().size
	}
	return n
}

func (st *ShardedTree) Len() int { return st.count }

func (st *ShardedTree) isBetterBucket(newID, existingID int64) bool {
	if st.isBuy {
		return newID > existingID
	}
	return newID < existingID
}

// insert 在 bucket 内插入价格档位，链表保持价格顺序（n 很小）
func (b *bucket) insert(level *Level) {
	b.levels[level.Price&bucketMask] = level
	b.size++

	if b.bestPrice == nil {
		b.bestPrice = level
		return
	}
	if isBetterPrice(b.isBuy, level.Price, b.bestPrice.Price) {
		level.NextPrice = b.bestPrice
		b.bestPrice.PrevPrice = level
		b.bestPrice = level
		return
	}

	current := b.bestPrice
	for current.NextPrice != nil {
		if isBetterPrice(b.isBuy, level.Price, current.NextPrice.Price) {
			break
		}
		current = current.NextPrice
	}
	level.NextPrice = current.NextPrice
	level.PrevPrice = current
	if current.NextPrice != nil {
		current.NextPrice.PrevPrice = level
	}
	current.NextPrice = level
}

// remove 从 bucket 删除价格档位（O(1) 链表删除）
func (b *bucket) remove(price int64) {
	index := price & bucketMask
	level := b.levels[index]
	if level == nil {
		return
	}
	b.levels[index] = nil
	b.size--

	if level.PrevPrice != nil {
		level.PrevPrice.NextPrice = level.NextPrice
	} else {
		b.bestPrice = level.NextPrice
	}
	if level.NextPrice != nil {
		level.NextPrice.PrevPrice = level.PrevPrice
	}
	level.NextPrice = nil
	level.PrevPrice = nil
}
