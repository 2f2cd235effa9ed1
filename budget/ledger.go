package budget

// Ledger records the caps assigned in one room. It is owned by the room's
// actor goroutine and needs no locking.
type Ledger struct {
	cfg    Config
	alloc  *Allocator
	caps   map[string]int64
	order  []string
	total  int64
	lo, hi int64
}

func NewLedger(cfg Config, alloc *Allocator) *Ledger {
	if alloc == nil {
		alloc = NewAllocator(nil)
	}
	return &Ledger{
		cfg:   cfg.Normalize(),
		alloc: alloc,
		caps:  make(map[string]int64),
	}
}

// Assign allocates a cap the first time identity is seen. Later calls return
// the stored cap with fresh=false; the allocator is never consulted again.
func (l *Ledger) Assign(identity string) (amount int64, fresh bool) {
	if c, ok := l.caps[identity]; ok {
		return c, false
	}
	c := l.alloc.Allocate(identity, l.cfg, len(l.order))
	l.caps[identity] = c
	l.order = append(l.order, identity)
	l.total += c
	if len(l.order) == 1 || c < l.lo {
		l.lo = c
	}
	if c > l.hi {
		l.hi = c
	}
	return c, true
}

// Cap returns the assigned cap for identity.
func (l *Ledger) Cap(identity string) (int64, bool) {
	c, ok := l.caps[identity]
	return c, ok
}

// Allows reports whether amount fits under identity's cap. Identities without
// a cap (the auctioneer) are not limited.
func (l *Ledger) Allows(identity string, amount int64) bool {
	c, ok := l.caps[identity]
	return !ok || amount <= c
}

func (l *Ledger) Count() int { return len(l.order) }

func (l *Ledger) Config() Config { return l.cfg }

// Snapshot copies the balances map.
func (l *Ledger) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(l.caps))
	for k, v := range l.caps {
		out[k] = v
	}
	return out
}

// Summary is the budget block of a room descriptor.
type Summary struct {
	Config
	Allocated int   `json:"allocated"`
	Lowest    int64 `json:"lowest,omitempty"`
	Highest   int64 `json:"highest,omitempty"`
	Total     int64 `json:"total"`
}

func (l *Ledger) Summary() Summary {
	return Summary{
		Config:    l.cfg,
		Allocated: len(l.order),
		Lowest:    l.lo,
		Highest:   l.hi,
		Total:     l.total,
	}
}
