package budget

import (
	"math/rand/v2"
	"strings"

	"github.com/pkg/errors"
)

// Strategy decides how spending caps are handed out in a room.
type Strategy string

const (
	StrategyEqual     Strategy = "equal"
	StrategyRandom    Strategy = "random"
	StrategyAscending Strategy = "ascending"
)

// ParseStrategy accepts the original "asc" spelling.
func ParseStrategy(v string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "equal":
		return StrategyEqual, true
	case "random":
		return StrategyRandom, true
	case "ascending", "asc":
		return StrategyAscending, true
	default:
		return "", false
	}
}

// Config is the per-room budget configuration chosen at room creation.
type Config struct {
	Strategy Strategy `json:"strategy"`
	Base     int64    `json:"base_amount"`
	Min      int64    `json:"min_amount"`
	Max      int64    `json:"max_amount"`
	Step     int64    `json:"step_amount"`
}

// Normalize fills defaults: ascending without a step grows by Base per joiner.
func (c Config) Normalize() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyEqual
	}
	if c.Strategy == StrategyAscending && c.Step == 0 {
		c.Step = c.Base
	}
	return c
}

func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyEqual, StrategyAscending:
		if c.Base <= 0 {
			return errors.Errorf("budget: base amount must be positive, got %d", c.Base)
		}
		if c.Step < 0 {
			return errors.Errorf("budget: step must not be negative, got %d", c.Step)
		}
	case StrategyRandom:
		if c.Min <= 0 {
			return errors.Errorf("budget: min amount must be positive, got %d", c.Min)
		}
		if c.Min > c.Max {
			return errors.Errorf("budget: min amount %d greater than max amount %d", c.Min, c.Max)
		}
	default:
		return errors.Errorf("budget: unknown strategy %q", c.Strategy)
	}
	return nil
}

// Allocator computes a cap for one identity. It holds the random stream used
// by the random strategy and is owned by a single room.
type Allocator struct {
	rng *rand.Rand
}

// NewAllocator creates an allocator; a nil source uses a randomly seeded PCG.
func NewAllocator(src rand.Source) *Allocator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Allocator{rng: rand.New(src)}
}

// Allocate returns the cap for the next identity given how many identities
// already hold a cap in the room. Only join order matters, never the name.
func (a *Allocator) Allocate(_ string, cfg Config, count int) int64 {
	switch cfg.Strategy {
	case StrategyRandom:
		span := cfg.Max - cfg.Min + 1
		return cfg.Min + a.rng.Int64N(span)
	case StrategyAscending:
		return cfg.Base + int64(count)*cfg.Step
	default:
		return cfg.Base
	}
}
