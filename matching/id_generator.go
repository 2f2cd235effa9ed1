package matching

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator generates unique IDs for orders and trades within one room.
// Format: prefix + counter (e.g. "T1", "T2"); the atomic counter alone
// guarantees uniqueness, so generators may be shared across goroutines.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next generates the next unique ID.
func (g *IDGenerator) Next() string {
	buf := make([]byte, 0, len(g.prefix)+20)
	buf = append(buf, g.prefix...)
	return string(strconv.AppendUint(buf, g.counter.Add(1), 10))
}

// Issued returns how many IDs have been handed out.
func (g *IDGenerator) Issued() uint64 { return g.counter.Load() }
