package domain

import "strings"

// MechanismType identifies one of the four market mechanisms a room runs.
type MechanismType string

const (
	MechanismEnglish MechanismType = "english"
	MechanismDutch   MechanismType = "dutch"
	MechanismSealed  MechanismType = "sealed"
	MechanismDouble  MechanismType = "double"
)

// ParseMechanism is case-insensitive and accepts the descriptive aliases.
func ParseMechanism(v string) (MechanismType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "english", "ascending":
		return MechanismEnglish, true
	case "dutch", "descending":
		return MechanismDutch, true
	case "sealed", "sealed-bid":
		return MechanismSealed, true
	case "double":
		return MechanismDouble, true
	default:
		return "", false
	}
}

// Status is the mechanism-specific lifecycle state of a room.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusCollecting Status = "collecting"
	StatusReveal     Status = "reveal"
	StatusEnded      Status = "ended"
)

// Audience is the class of observer an event is rendered for.
type Audience int

const (
	AudienceParticipant Audience = iota
	AudienceAuctioneer
)

func (a Audience) String() string {
	if a == AudienceAuctioneer {
		return "auctioneer"
	}
	return "participant"
}

// DoubleMode selects continuous matching or uniform-price call clearing.
type DoubleMode string

const (
	ModeContinuous DoubleMode = "continuous"
	ModeCall       DoubleMode = "call"
)

// ParseDoubleMode accepts the original "dynamic"/"integrated" names too.
// Unknown values fall back to call mode, the original default.
func ParseDoubleMode(v string) DoubleMode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "continuous", "dynamic", "cda":
		return ModeContinuous
	default:
		return ModeCall
	}
}

// PricingRule is the sealed-bid payment rule.
type PricingRule string

const (
	FirstPrice  PricingRule = "first"
	SecondPrice PricingRule = "second"
)

func ParsePricingRule(v string) PricingRule {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "second", "second-price", "vickrey":
		return SecondPrice
	default:
		return FirstPrice
	}
}

// ResubmitPolicy decides what a second sealed bid from the same identity does.
type ResubmitPolicy string

const (
	ResubmitOverwrite ResubmitPolicy = "overwrite"
	ResubmitReject    ResubmitPolicy = "reject"
)

func ParseResubmitPolicy(v string) ResubmitPolicy {
	if strings.EqualFold(strings.TrimSpace(v), string(ResubmitReject)) {
		return ResubmitReject
	}
	return ResubmitOverwrite
}

// TieBreak orders equal top sealed bids.
type TieBreak string

const (
	TieBreakEarliest TieBreak = "earliest"
	TieBreakRandom   TieBreak = "random"
)

func ParseTieBreak(v string) TieBreak {
	if strings.EqualFold(strings.TrimSpace(v), string(TieBreakRandom)) {
		return TieBreakRandom
	}
	return TieBreakEarliest
}
