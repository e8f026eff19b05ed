package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestScore_NoSignalsSettlesAtNeutralMidpoint(t *testing.T) {
	t.Parallel()

	// 0.5 vote ratio (20) + neutral AI (10)
	score := DefaultWeights.Score(Signals{})
	assert.Equal(t, 30, score)
}

func TestScore_VoteRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		upvotes   int
		downvotes int
		expected  int
	}{
		{"all upvotes", 10, 0, 50},
		{"all downvotes", 0, 10, 10},
		{"three quarters", 3, 1, 40},
		{"even split", 5, 5, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := DefaultWeights.Score(Signals{Upvotes: tt.upvotes, Downvotes: tt.downvotes})
			assert.Equal(t, tt.expected, score)
		})
	}
}

func TestScore_VerificationsCapped(t *testing.T) {
	t.Parallel()

	atCap := DefaultWeights.Score(Signals{VerificationCount: 10})
	beyondCap := DefaultWeights.Score(Signals{VerificationCount: 50})
	assert.Equal(t, atCap, beyondCap)
	// 20 vote midpoint + 25 verify + 10 neutral AI
	assert.Equal(t, 55, atCap)
}

func TestScore_AIComponent(t *testing.T) {
	t.Parallel()

	// explicit zero replaces the neutral assumption
	low := DefaultWeights.Score(Signals{AIValidationScore: intPtr(0)})
	assert.Equal(t, 20, low)

	high := DefaultWeights.Score(Signals{AIValidationScore: intPtr(100)})
	assert.Equal(t, 40, high)
}

func TestScore_ConfirmationBonus(t *testing.T) {
	t.Parallel()

	base := DefaultWeights.Score(Signals{Upvotes: 4, VerificationCount: 3})
	confirmed := DefaultWeights.Score(Signals{Upvotes: 4, VerificationCount: 3, Confirmed: true})
	assert.Equal(t, base+15, confirmed)
}

func TestScore_FullSignals(t *testing.T) {
	t.Parallel()

	score := DefaultWeights.Score(Signals{
		Upvotes:           10,
		VerificationCount: 10,
		AIValidationScore: intPtr(90),
		Confirmed:         true,
	})
	// 40 + 25 + 18 + 15
	assert.Equal(t, 98, score)
}

func TestScore_TypicalConfirmedReport(t *testing.T) {
	t.Parallel()

	score := DefaultWeights.Score(Signals{
		Upvotes:           3,
		VerificationCount: 3,
		AIValidationScore: intPtr(90),
		Confirmed:         true,
	})
	// 40 + 7.5 + 18 + 15 = 80.5, rounds up
	assert.Equal(t, 81, score)
	assert.Equal(t, TierHighlyTrusted, Tier(score))
}

func TestScore_ClampedToRange(t *testing.T) {
	t.Parallel()

	inflated := Weights{VoteMax: 80, VerifyMax: 50, VerifyCap: 10, AIMax: 20, AINeutral: 50, ConfirmBonus: 15}
	score := inflated.Score(Signals{
		Upvotes:           10,
		VerificationCount: 10,
		AIValidationScore: intPtr(100),
		Confirmed:         true,
	})
	assert.Equal(t, 100, score)
}

func TestTier_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score    int
		expected string
	}{
		{100, TierHighlyTrusted},
		{80, TierHighlyTrusted},
		{79, TierTrusted},
		{60, TierTrusted},
		{59, TierModerate},
		{40, TierModerate},
		{39, TierLowTrust},
		{20, TierLowTrust},
		{19, TierUnverified},
		{0, TierUnverified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Tier(tt.score), "score %d", tt.score)
	}
}
