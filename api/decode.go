package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"classroom-auction/auction"
	"classroom-auction/budget"
	"classroom-auction/domain"
)

// wholeAmount converts a decoded amount into integer currency units.
// Fractions and negatives are INVALID_AMOUNT; zero is left to the mechanism.
func wholeAmount(field string, d decimal.Decimal) (int64, error) {
	if d.IsNegative() || !d.IsInteger() {
		return 0, domain.Reject(domain.ReasonInvalidAmount, "field", field, "value", d.String())
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(1 << 53)) {
		return 0, domain.Reject(domain.ReasonInvalidAmount, "field", field, "value", d.String())
	}
	return d.IntPart(), nil
}

// actionRequest is one inbound action, over HTTP or the websocket.
type actionRequest struct {
	Action     string              `json:"action"`
	Amount     decimal.Decimal     `json:"amount"`
	Price      decimal.Decimal     `json:"price"`
	Side       string              `json:"side"`
	StartPrice decimal.Decimal     `json:"start_price"`
	Step       decimal.Decimal     `json:"step"`
	Floor      decimal.NullDecimal `json:"floor"`
	IntervalMs int64               `json:"interval_ms"`
	Duration   int64               `json:"duration_sec"`
	ShowOrders *bool               `json:"show_orders"`
}

// toAction tags the request with the authenticated identity.
func (r actionRequest) toAction(identity string) (domain.Action, error) {
	kind := domain.ActionKind(strings.ToLower(strings.TrimSpace(r.Action)))
	if kind == "" {
		return domain.Action{}, domain.Reject(domain.ReasonUnknownAction, "action", r.Action)
	}
	// 双向拍卖的报单以 price 传入
	raw := r.Amount
	if raw.IsZero() {
		raw = r.Price
	}
	amount, err := wholeAmount("amount", raw)
	if err != nil {
		return domain.Action{}, err
	}
	start, err := wholeAmount("start_price", r.StartPrice)
	if err != nil {
		return domain.Action{}, err
	}
	step, err := wholeAmount("step", r.Step)
	if err != nil {
		return domain.Action{}, err
	}
	var floor int64
	if r.Floor.Valid {
		if floor, err = wholeAmount("floor", r.Floor.Decimal); err != nil {
			return domain.Action{}, err
		}
	}
	if r.IntervalMs < 0 || r.Duration < 0 {
		return domain.Action{}, domain.Reject(domain.ReasonInvalidAmount, "field", "duration")
	}
	return domain.Action{
		Kind:   kind,
		Actor:  identity,
		Amount: amount,
		Side:   domain.ParseSide(r.Side),
		Params: domain.Params{
			StartPrice: start,
			Step:       step,
			Floor:      floor,
			HasFloor:   r.Floor.Valid,
			Interval:   time.Duration(r.IntervalMs) * time.Millisecond,
			Duration:   time.Duration(r.Duration) * time.Second,
			ShowOrders: r.ShowOrders,
		},
	}, nil
}

// createRequest is the body of POST /auctions.
type createRequest struct {
	Type           string          `json:"type"`
	Name           string          `json:"name"`
	BudgetStrategy string          `json:"budget_strategy"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	MinAmount      decimal.Decimal `json:"min_amount"`
	MaxAmount      decimal.Decimal `json:"max_amount"`
	StepAmount     decimal.Decimal `json:"step_amount"`
	DoubleMode     string          `json:"double_mode"`
	ShowOrders     *bool           `json:"show_orders"`
	CapSellers     *bool           `json:"cap_sellers"`
	ManualSides    bool            `json:"manual_sides"`
	SealedPricing  string          `json:"sealed_pricing"`
	SealedResubmit string          `json:"sealed_resubmit"`
	SealedTieBreak string          `json:"sealed_tie_break"`
	CountdownSec   int64           `json:"countdown_sec"`
	RoundSec       int64           `json:"round_sec"`
}

func (r createRequest) toOptions(owner string) (auction.Options, error) {
	mech, ok := domain.ParseMechanism(r.Type)
	if !ok {
		return auction.Options{}, domain.Reject(domain.ReasonUnknownAction, "field", "type", "value", r.Type)
	}
	strategy, ok := budget.ParseStrategy(r.BudgetStrategy)
	if !ok {
		return auction.Options{}, domain.Reject(domain.ReasonInvalidAmount, "field", "budget_strategy", "value", r.BudgetStrategy)
	}
	var amounts [4]int64
	for i, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"base_amount", r.BaseAmount},
		{"min_amount", r.MinAmount},
		{"max_amount", r.MaxAmount},
		{"step_amount", r.StepAmount},
	} {
		v, err := wholeAmount(f.name, f.v)
		if err != nil {
			return auction.Options{}, err
		}
		amounts[i] = v
	}
	if r.CountdownSec < 0 || r.RoundSec < 0 {
		return auction.Options{}, domain.Reject(domain.ReasonInvalidAmount, "field", "duration")
	}

	showOrders := true
	if r.ShowOrders != nil {
		showOrders = *r.ShowOrders
	}
	return auction.Options{
		Name:      strings.TrimSpace(r.Name),
		Owner:     owner,
		Mechanism: mech,
		Budget: budget.Config{
			Strategy: strategy,
			Base:     amounts[0],
			Min:      amounts[1],
			Max:      amounts[2],
			Step:     amounts[3],
		},
		Countdown:       time.Duration(r.CountdownSec) * time.Second,
		Pricing:         domain.ParsePricingRule(r.SealedPricing),
		Resubmit:        domain.ParseResubmitPolicy(r.SealedResubmit),
		TieBreak:        domain.ParseTieBreak(r.SealedTieBreak),
		DoubleMode:      domain.ParseDoubleMode(r.DoubleMode),
		ShowOrders:      showOrders,
		ManualSides:     r.ManualSides,
		UncappedSellers: r.CapSellers != nil && !*r.CapSellers,
		RoundDuration:   time.Duration(r.RoundSec) * time.Second,
	}, nil
}
