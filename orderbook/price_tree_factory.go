package orderbook

import "strings"

// TreeType selects the price tree implementation backing a book side.
type TreeType int

const (
	// ShardedType: sharded red-black tree of fixed-size price buckets
	ShardedType TreeType = iota
	// HashMapListType: HashMap + doubly linked list of levels
	HashMapListType
)

func (t TreeType) String() string {
	switch t {
	case HashMapListType:
		return "hashmap"
	default:
		return "sharded"
	}
}

// ParseTreeType maps a config value onto a TreeType.
func ParseTreeType(v string) (TreeType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "sharded":
		return ShardedType, true
	case "hashmap", "hashmap-list":
		return HashMapListType, true
	}
	return ShardedType, false
}

// NewTree creates a price tree of the given type. descending is true for bids.
func NewTree(kind TreeType, descending bool) Tree {
	switch kind {
	case HashMapListType:
		return NewHashMapListTree(descending)
	default:
		return NewShardedTree(descending)
	}
}
