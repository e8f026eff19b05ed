package trust

import "math"

// Weights holds the tunable constants of the consensus formula. The defaults
// reproduce the documented display tiers; treat them as configuration, not
// recovered fact.
type Weights struct {
	VoteMax      float64 // points awarded at a 100% upvote ratio
	VerifyMax    float64 // points awarded at the verification cap
	VerifyCap    int     // verifications counted toward the score
	AIMax        float64 // points awarded at AI score 100
	AINeutral    float64 // assumed AI score when no result is present
	ConfirmBonus float64 // flat bonus for an official confirmation
}

// DefaultWeights is the reference weighting: 40 vote + 25 verify + 20 AI
// + 15 confirmation = 100.
var DefaultWeights = Weights{
	VoteMax:      40,
	VerifyMax:    25,
	VerifyCap:    10,
	AIMax:        20,
	AINeutral:    50,
	ConfirmBonus: 15,
}

// Signals are the inputs to a consensus recompute, read from a report row
// under its mutation lock.
type Signals struct {
	Upvotes           int
	Downvotes         int
	VerificationCount int
	AIValidationScore *int
	Confirmed         bool
}

// Score derives the 0-100 consensus score from the given signals.
// With no signals at all the score settles at a neutral midpoint.
func (w Weights) Score(s Signals) int {
	voteRatio := 0.5
	if s.Upvotes+s.Downvotes > 0 {
		voteRatio = float64(s.Upvotes) / float64(s.Upvotes+s.Downvotes)
	}
	voteComponent := voteRatio * w.VoteMax

	verifications := s.VerificationCount
	if verifications > w.VerifyCap {
		verifications = w.VerifyCap
	}
	verifyComponent := float64(verifications) / float64(w.VerifyCap) * w.VerifyMax

	ai := w.AINeutral
	if s.AIValidationScore != nil {
		ai = float64(*s.AIValidationScore)
	}
	aiComponent := ai / 100 * w.AIMax

	confirmComponent := 0.0
	if s.Confirmed {
		confirmComponent = w.ConfirmBonus
	}

	score := int(math.Round(voteComponent + verifyComponent + aiComponent + confirmComponent))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Trust tiers consumed by clients. Presentation only - derived from the
// score and never stored.
const (
	TierHighlyTrusted = "Highly Trusted"
	TierTrusted       = "Trusted"
	TierModerate      = "Moderate"
	TierLowTrust      = "Low Trust"
	TierUnverified    = "Unverified"
)

// Tier maps a consensus score to its display tier.
func Tier(score int) string {
	switch {
	case score >= 80:
		return TierHighlyTrusted
	case score >= 60:
		return TierTrusted
	case score >= 40:
		return TierModerate
	case score >= 20:
		return TierLowTrust
	default:
		return TierUnverified
	}
}
