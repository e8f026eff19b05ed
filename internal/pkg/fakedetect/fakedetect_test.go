package fakedetect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64    { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func TestAggregate_NoSignals(t *testing.T) {
	t.Parallel()

	score, flags := Aggregate(Input{})
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_SpamIndicatorsCapped(t *testing.T) {
	t.Parallel()

	one, flags := Aggregate(Input{Text: &TextAnalysis{ConsistencyScore: 90, SpamIndicators: []string{"crypto link"}}})
	assert.Equal(t, 15, one)
	assert.Equal(t, []string{FlagSpamPattern}, flags)

	many, _ := Aggregate(Input{Text: &TextAnalysis{ConsistencyScore: 90, SpamIndicators: []string{"a", "b", "c", "d"}}})
	assert.Equal(t, 30, many, "spam points cap at two hits")
}

func TestAggregate_LowConsistency(t *testing.T) {
	t.Parallel()

	flagged, flags := Aggregate(Input{Text: &TextAnalysis{ConsistencyScore: 39}})
	assert.Equal(t, 20, flagged)
	assert.Contains(t, flags, FlagInconsistentText)

	clean, flags := Aggregate(Input{Text: &TextAnalysis{ConsistencyScore: 40}})
	assert.Equal(t, 0, clean)
	assert.Empty(t, flags)
}

func TestAggregate_MissingEXIF(t *testing.T) {
	t.Parallel()

	score, flags := Aggregate(Input{Images: []ImageSignal{{HasEXIF: false}, {HasEXIF: false}}})
	assert.Equal(t, 10, score)
	assert.Equal(t, []string{FlagMissingEXIF}, flags)

	// one image with EXIF clears the flag for the whole set
	score, flags = Aggregate(Input{Images: []ImageSignal{{HasEXIF: false}, {HasEXIF: true}}})
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_GPSMismatch(t *testing.T) {
	t.Parallel()

	// Berlin image, Munich claim: ~500km apart
	in := Input{
		ClaimedLatitude:  floatPtr(48.1371),
		ClaimedLongitude: floatPtr(11.5754),
		Images: []ImageSignal{{
			HasEXIF:   true,
			Latitude:  floatPtr(52.5200),
			Longitude: floatPtr(13.4050),
		}},
	}
	score, flags := Aggregate(in)
	assert.Equal(t, 25, score)
	assert.Equal(t, []string{FlagGPSMismatch}, flags)

	// a few hundred meters off is fine
	in.Images[0].Latitude = floatPtr(48.1400)
	in.Images[0].Longitude = floatPtr(11.5800)
	score, flags = Aggregate(in)
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_StaleCapture(t *testing.T) {
	t.Parallel()

	occurred := time.Now()
	in := Input{
		OccurredAt: occurred,
		Images: []ImageSignal{{
			HasEXIF:    true,
			CapturedAt: timePtr(occurred.Add(-8 * 24 * time.Hour)),
		}},
	}
	score, flags := Aggregate(in)
	assert.Equal(t, 15, score)
	assert.Equal(t, []string{FlagStaleTimestamp}, flags)

	in.Images[0].CapturedAt = timePtr(occurred.Add(-time.Hour))
	score, flags = Aggregate(in)
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_EditingSoftware(t *testing.T) {
	t.Parallel()

	score, flags := Aggregate(Input{Images: []ImageSignal{{HasEXIF: true, Software: "Adobe Photoshop 25.1"}}})
	assert.Equal(t, 10, score)
	assert.Equal(t, []string{FlagEditedSoftware}, flags)

	score, flags = Aggregate(Input{Images: []ImageSignal{{HasEXIF: true, Software: "Canon EOS R5"}}})
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_DuplicateContent(t *testing.T) {
	t.Parallel()

	in := Input{SimilarReportIDs: []string{"some-uuid"}, ClusterConfidence: 0.85}
	score, flags := Aggregate(in)
	assert.Equal(t, 20, score)
	assert.Equal(t, []string{FlagDuplicateContent}, flags)

	in.ClusterConfidence = 0.84
	score, flags = Aggregate(in)
	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestAggregate_CombinedClampsAt100(t *testing.T) {
	t.Parallel()

	occurred := time.Now()
	in := Input{
		Text: &TextAnalysis{ConsistencyScore: 10, SpamIndicators: []string{"a", "b", "c"}},
		Images: []ImageSignal{{
			HasEXIF:    true,
			Latitude:   floatPtr(52.5200),
			Longitude:  floatPtr(13.4050),
			CapturedAt: timePtr(occurred.Add(-30 * 24 * time.Hour)),
			Software:   "GIMP 2.10",
		}},
		ClaimedLatitude:   floatPtr(48.1371),
		ClaimedLongitude:  floatPtr(11.5754),
		OccurredAt:        occurred,
		SimilarReportIDs:  []string{"dup"},
		ClusterConfidence: 0.9,
	}
	score, flags := Aggregate(in)
	// 30 spam + 20 inconsistency + 25 gps + 15 stale + 10 edited + 20 duplicate, clamped
	assert.Equal(t, 100, score)
	assert.ElementsMatch(t, []string{
		FlagSpamPattern, FlagInconsistentText, FlagGPSMismatch,
		FlagStaleTimestamp, FlagEditedSoftware, FlagDuplicateContent,
	}, flags)
}

func TestRisk_Tiers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RiskCritical, Risk(100))
	assert.Equal(t, RiskCritical, Risk(75))
	assert.Equal(t, RiskHigh, Risk(74))
	assert.Equal(t, RiskHigh, Risk(50))
	assert.Equal(t, RiskMedium, Risk(49))
	assert.Equal(t, RiskMedium, Risk(25))
	assert.Equal(t, RiskLow, Risk(24))
	assert.Equal(t, RiskLow, Risk(0))
}
