package auction

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"classroom-auction/domain"
)

type sealedBid struct {
	identity string
	amount   int64
	seq      uint64 // submission order, refreshed on overwrite
	at       time.Time
}

// Outcome is the stored result of a reveal.
type Outcome struct {
	Ranked []sealedBid
	Winner string
	Amount int64 // winner's own bid
	Price  int64 // payable price under the room's pricing rule
}

// Sealed is the sealed-bid auction: collecting -> reveal -> ended.
type Sealed struct {
	status   domain.Status
	pricing  domain.PricingRule
	resubmit domain.ResubmitPolicy
	tieBreak domain.TieBreak
	bids     map[string]*sealedBid
	seq      uint64
	outcome  *Outcome
}

var _ Mechanism = (*Sealed)(nil)

func NewSealed(pricing domain.PricingRule, resubmit domain.ResubmitPolicy, tieBreak domain.TieBreak) *Sealed {
	return &Sealed{
		status:   domain.StatusCollecting,
		pricing:  pricing,
		resubmit: resubmit,
		tieBreak: tieBreak,
		bids:     make(map[string]*sealedBid),
	}
}

func (s *Sealed) Type() domain.MechanismType { return domain.MechanismSealed }
func (s *Sealed) Status() domain.Status      { return s.status }

func (s *Sealed) OnJoin(*Room, string, bool) {}

func (s *Sealed) OnTimer(*Room, TimerKind) {}

func (s *Sealed) Handle(r *Room, a domain.Action) error {
	switch a.Kind {
	case domain.ActionSubmitBid:
		return s.submit(r, a.Actor, a.Amount)
	case domain.ActionReveal:
		s.reveal(r)
		return nil
	}
	return wrongMechanism(s, a)
}

func (s *Sealed) submit(r *Room, identity string, amount int64) error {
	if s.status != domain.StatusCollecting {
		return notRunning(s.status)
	}
	if amount <= 0 {
		return domain.Reject(domain.ReasonInvalidAmount, "amount", amount)
	}
	if !r.Allows(identity, amount) {
		return overBudget(r, identity, amount)
	}
	if _, exists := s.bids[identity]; exists && s.resubmit == domain.ResubmitReject {
		return domain.Reject(domain.ReasonAlreadyBid)
	}

	s.seq++
	s.bids[identity] = &sealedBid{identity: identity, amount: amount, seq: s.seq, at: r.Now()}
	r.RecordBid(identity, amount, domain.SideNone, domain.ActionSubmitBid)
	r.Emit(&domain.SealedEvent{Type: domain.KindSealedBid, Actor: identity, Amount: amount})
	return nil
}

// reveal ranks the bids once; later calls re-publish the stored outcome.
func (s *Sealed) reveal(r *Room) {
	if s.outcome == nil {
		s.outcome = s.rank(r)
		s.status = domain.StatusReveal
		r.RoundState(0)
		r.Logger().Info("sealed bids revealed",
			zap.Int("bids", len(s.outcome.Ranked)),
			zap.String("winner", s.outcome.Winner),
			zap.Int64("price", s.outcome.Price))
	}
	for i, b := range s.outcome.Ranked {
		r.Emit(&domain.SealedEvent{Type: domain.KindReveal, Actor: b.identity, Amount: b.amount, Rank: i + 1})
	}
	r.Emit(&domain.SealedEvent{Type: domain.KindWin, Actor: s.outcome.Winner, Amount: s.outcome.Amount, Price: s.outcome.Price})
	if s.status != domain.StatusEnded {
		s.status = domain.StatusEnded
		r.RoundState(0)
	}
}

func (s *Sealed) rank(r *Room) *Outcome {
	ranked := make([]sealedBid, 0, len(s.bids))
	for _, b := range s.bids {
		ranked = append(ranked, *b)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].seq < ranked[j].seq })
	if s.tieBreak == domain.TieBreakRandom {
		r.Rand().Shuffle(len(ranked), func(i, j int) { ranked[i], ranked[j] = ranked[j], ranked[i] })
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].amount > ranked[j].amount })

	out := &Outcome{Ranked: ranked}
	if len(ranked) == 0 {
		return out
	}
	out.Winner = ranked[0].identity
	out.Amount = ranked[0].amount
	out.Price = ranked[0].amount
	if s.pricing == domain.SecondPrice && len(ranked) > 1 {
		out.Price = ranked[1].amount
	}
	return out
}

// Outcome returns the stored reveal result, nil before reveal.
func (s *Sealed) Outcome() *Outcome { return s.outcome }

func (s *Sealed) Snapshot(r *Room, audience domain.Audience) any {
	snap := map[string]any{
		"status":  s.status,
		"pricing": s.pricing,
		"bids":    len(s.bids),
	}
	if audience == domain.AudienceAuctioneer {
		bids := make(map[string]int64, len(s.bids))
		for id, b := range s.bids {
			bids[id] = b.amount
		}
		snap["submitted"] = bids
	}
	if s.outcome != nil {
		snap["winner"] = r.alias(s.outcome.Winner, audience)
		snap["price"] = s.outcome.Price
	}
	return snap
}
