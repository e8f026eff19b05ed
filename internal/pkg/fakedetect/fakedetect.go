package fakedetect

import (
	"strings"
	"time"

	"github.com/crisispulse/CrisisPulse/internal/pkg/geo"
)

// Flags attached to a report by the aggregator.
const (
	FlagSpamPattern      = "spam_pattern"
	FlagInconsistentText = "inconsistent_text"
	FlagMissingEXIF      = "missing_exif"
	FlagGPSMismatch      = "gps_mismatch"
	FlagStaleTimestamp   = "stale_timestamp"
	FlagEditedSoftware   = "edited_software"
	FlagDuplicateContent = "duplicate_content"
)

// Risk tiers for downstream display.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// Risk maps a fake-detection score to its display tier.
func Risk(score int) string {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// TextAnalysis is the external text analyzer's result, passed in as opaque
// structured data.
type TextAnalysis struct {
	ConsistencyScore int      `json:"consistency_score"` // 0-100, lower = less internally consistent
	SpamIndicators   []string `json:"spam_indicators"`
}

// ImageSignal holds per-image metadata, either delivered pre-extracted by
// the image analyzer or decoded locally from a raw EXIF blob.
type ImageSignal struct {
	HasEXIF    bool       `json:"has_exif"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Software   string     `json:"software,omitempty"`
}

// Input gathers everything the aggregator combines for one report.
type Input struct {
	Text              *TextAnalysis
	Images            []ImageSignal
	ClaimedLatitude   *float64
	ClaimedLongitude  *float64
	OccurredAt        time.Time
	SimilarReportIDs  []string
	ClusterConfidence float64
}

// Tunable thresholds of the aggregation heuristic.
const (
	lowConsistencyBelow  = 40
	gpsMismatchKm        = 50.0
	staleCaptureAge      = 7 * 24 * time.Hour
	duplicateConfidence  = 0.85

	spamPointsPerHit     = 15
	spamPointsCap        = 30
	inconsistencyPoints  = 20
	missingEXIFPoints    = 10
	gpsMismatchPoints    = 25
	staleTimestampPoints = 15
	editedPoints         = 10
	duplicatePoints      = 20
)

var editingSoftware = []string{"photoshop", "gimp", "lightroom", "snapseed", "facetune"}

// Aggregate combines text, image and duplicate signals into a 0-100
// suspicion score (higher = more suspicious) plus explainable flags. It is a
// pure function; upstream analyzer failures are handled by not calling it.
func Aggregate(in Input) (int, []string) {
	score := 0
	var flags []string

	if in.Text != nil {
		if len(in.Text.SpamIndicators) > 0 {
			points := len(in.Text.SpamIndicators) * spamPointsPerHit
			if points > spamPointsCap {
				points = spamPointsCap
			}
			score += points
			flags = append(flags, FlagSpamPattern)
		}
		if in.Text.ConsistencyScore < lowConsistencyBelow {
			score += inconsistencyPoints
			flags = append(flags, FlagInconsistentText)
		}
	}

	if len(in.Images) > 0 {
		score, flags = aggregateImages(in, score, flags)
	}

	if len(in.SimilarReportIDs) > 0 && in.ClusterConfidence >= duplicateConfidence {
		score += duplicatePoints
		flags = append(flags, FlagDuplicateContent)
	}

	if score > 100 {
		score = 100
	}
	return score, flags
}

func aggregateImages(in Input, score int, flags []string) (int, []string) {
	anyEXIF := false
	gpsMismatch := false
	stale := false
	edited := false

	for _, img := range in.Images {
		if !img.HasEXIF {
			continue
		}
		anyEXIF = true

		if img.Latitude != nil && img.Longitude != nil &&
			in.ClaimedLatitude != nil && in.ClaimedLongitude != nil {
			distance := geo.HaversineKm(*img.Latitude, *img.Longitude,
				*in.ClaimedLatitude, *in.ClaimedLongitude)
			if distance > gpsMismatchKm {
				gpsMismatch = true
			}
		}

		if img.CapturedAt != nil && !in.OccurredAt.IsZero() {
			if in.OccurredAt.Sub(*img.CapturedAt) > staleCaptureAge {
				stale = true
			}
		}

		software := strings.ToLower(img.Software)
		for _, editor := range editingSoftware {
			if strings.Contains(software, editor) {
				edited = true
				break
			}
		}
	}

	if !anyEXIF {
		score += missingEXIFPoints
		flags = append(flags, FlagMissingEXIF)
	}
	if gpsMismatch {
		score += gpsMismatchPoints
		flags = append(flags, FlagGPSMismatch)
	}
	if stale {
		score += staleTimestampPoints
		flags = append(flags, FlagStaleTimestamp)
	}
	if edited {
		score += editedPoints
		flags = append(flags, FlagEditedSoftware)
	}
	return score, flags
}
