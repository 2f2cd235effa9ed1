package auction

import (
	"time"

	"classroom-auction/domain"
)

// Mechanism is one auction state machine. Implementations are synchronous
// and talk to the outside world only through the Room's effects.
type Mechanism interface {
	Type() domain.MechanismType
	Status() domain.Status

	// OnJoin runs the first time an identity is observed in the room.
	OnJoin(r *Room, identity string, host bool)

	// Handle validates and applies an action. Rejections are *domain.Rejection
	// values and must leave the mechanism state unchanged.
	Handle(r *Room, a domain.Action) error

	// OnTimer handles a scheduled expiry that is still current.
	OnTimer(r *Room, kind TimerKind)

	Snapshot(r *Room, audience domain.Audience) any
}

// TimerKind names the one timer slot a mechanism may have pending per kind.
type TimerKind string

const (
	TimerCountdown TimerKind = "countdown" // english no-bid countdown
	TimerClock     TimerKind = "clock"     // dutch price clock
	TimerRound     TimerKind = "round"     // double round duration
)

// Effect is something the room owner must carry out after an action.
type Effect interface{ isEffect() }

// Publish fans an event out; To restricts it to one identity.
type Publish struct {
	Event domain.Event
	To    string
}

// Timer schedules or cancels the timer slot Kind.
type Timer struct {
	Kind   TimerKind
	After  time.Duration
	Cancel bool
}

func (Publish) isEffect() {}
func (Timer) isEffect()   {}

func wrongMechanism(m Mechanism, a domain.Action) error {
	return domain.Reject(domain.ReasonWrongMechanism, "action", string(a.Kind), "mechanism", string(m.Type()))
}

func notRunning(status domain.Status) error {
	return domain.Reject(domain.ReasonNotRunning, "status", string(status))
}

func overBudget(r *Room, identity string, amount int64) error {
	c, _ := r.Cap(identity)
	return domain.Reject(domain.ReasonOverBudget, "cap", c, "amount", amount)
}

func remaining(r *Room, deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	if d := deadline.Sub(r.Now()); d > 0 {
		return d
	}
	return 0
}
