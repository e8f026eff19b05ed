package clustering

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/geo"
	"github.com/crisispulse/CrisisPulse/internal/pkg/notify"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
)

// ErrRunInProgress is returned when a clustering run is triggered while
// another one is still active. Runs are mutually exclusive.
var ErrRunInProgress = errors.New("clustering run already in progress")

// Match reasons reported per cluster.
const (
	ReasonSameType       = "same incident type"
	ReasonLocationRadius = "same location radius"
	ReasonTimeWindow     = "overlapping time window"
	ReasonSimilarText    = "similar description"
)

// Config holds the similarity thresholds. Defaults suit urban-scale
// incident reporting; all of them are env-tunable at boot.
type Config struct {
	RadiusKm          float64       // spatial proximity radius
	TimeWindow        time.Duration // temporal proximity window
	TextThreshold     float64       // token-overlap threshold for the text criterion
	CombinedThreshold float64       // overall pairwise similarity cutoff
	DefaultLimit      int           // reports scanned when the caller gives no limit
}

// DefaultConfig returns the default clustering configuration.
func DefaultConfig() Config {
	return Config{
		RadiusKm:          25,
		TimeWindow:        48 * time.Hour,
		TextThreshold:     0.3,
		CombinedThreshold: 0.6,
		DefaultLimit:      200,
	}
}

// RunResult summarizes one completed clustering run.
type RunResult struct {
	ClustersFound   int `json:"clusters_found"`
	ReportsAnalyzed int `json:"reports_analyzed"`
}

// Clusterer groups likely-duplicate reports into explainable clusters. Each
// run replaces the previous materialized cluster set wholesale.
type Clusterer struct {
	reports  repository.ReportRepository
	clusters repository.ClusterRepository
	engine   *trust.Engine
	notifier *notify.Notifier
	config   Config
	recheck  func(reportUUID string)
	runMu    sync.Mutex
}

// NewClusterer creates a clusterer over the given repositories.
func NewClusterer(reports repository.ReportRepository, clusters repository.ClusterRepository,
	engine *trust.Engine, notifier *notify.Notifier, config Config) *Clusterer {
	return &Clusterer{
		reports:  reports,
		clusters: clusters,
		engine:   engine,
		notifier: notifier,
		config:   config,
	}
}

// SetRecheckFunc registers a callback invoked for every report that a run
// annotates as a duplicate. The server wires it to re-enqueue fake detection
// for those reports.
func (c *Clusterer) SetRecheckFunc(fn func(reportUUID string)) {
	c.recheck = fn
}

// Run scans up to limit most-recent reports, groups them and atomically
// replaces the stored cluster set. Cancelling the context discards partial
// results. Voting and verification on the same reports are never blocked; a
// slightly stale snapshot self-corrects on the next run.
func (c *Clusterer) Run(ctx context.Context, limit int) (*RunResult, error) {
	if !c.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.runMu.Unlock()

	if limit <= 0 {
		limit = c.config.DefaultLimit
	}

	reports, err := c.reports.GetRecent(limit)
	if err != nil {
		return nil, err
	}

	clusters, err := c.buildClusters(ctx, reports)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	rows := make([]models.ReportCluster, 0, len(clusters))
	for _, cl := range clusters {
		rows = append(rows, models.ReportCluster{
			ClusterID:       uuid.New().String(),
			RunID:           runID,
			PrimaryReportID: cl.primary.UUID,
			MemberIDs:       cl.memberUUIDs(),
			Confidence:      cl.confidence,
			Reasons:         cl.reasons,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.clusters.ReplaceAll(runID, rows); err != nil {
		return nil, err
	}

	// annotate non-primary members with their cluster's representative so
	// the fake-detection aggregator can pick up duplicate_content
	for _, cl := range clusters {
		for _, member := range cl.members {
			if member.UUID == cl.primary.UUID {
				continue
			}
			if err := c.engine.SetSimilarReports(member.UUID, []string{cl.primary.UUID}); err != nil {
				log.Warnf("[Clustering] annotate %s: %v", member.UUID, err)
				continue
			}
			if c.recheck != nil {
				c.recheck(member.UUID)
			}
		}
	}

	if c.notifier != nil {
		c.notifier.Publish(notify.Event{
			Type: notify.EventClustersRebuilt,
			Data: map[string]interface{}{
				"run_id":           runID,
				"clusters_found":   len(rows),
				"reports_analyzed": len(reports),
			},
		})
	}

	return &RunResult{ClustersFound: len(rows), ReportsAnalyzed: len(reports)}, nil
}

type cluster struct {
	primary    *models.Report
	members    []*models.Report
	confidence float64
	reasons    models.StringList
}

func (c *cluster) memberUUIDs() models.StringList {
	ids := make(models.StringList, 0, len(c.members)-1)
	for _, m := range c.members {
		if m.UUID != c.primary.UUID {
			ids = append(ids, m.UUID)
		}
	}
	return ids
}

// buildClusters runs the greedy single pass: iterate reports in recency
// order, and for each ungrouped report collect every other ungrouped report
// above the combined similarity threshold. Singletons are discarded.
func (c *Clusterer) buildClusters(ctx context.Context, reports []models.Report) ([]cluster, error) {
	grouped := make(map[string]bool, len(reports))
	var clusters []cluster

	for i := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seed := &reports[i]
		if grouped[seed.UUID] {
			continue
		}

		members := []*models.Report{seed}
		for j := i + 1; j < len(reports); j++ {
			candidate := &reports[j]
			if grouped[candidate.UUID] {
				continue
			}
			if c.similarity(seed, candidate).combined >= c.config.CombinedThreshold {
				members = append(members, candidate)
			}
		}

		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			grouped[m.UUID] = true
		}

		pairs := c.pairwiseSimilarities(members)
		clusters = append(clusters, cluster{
			primary:    pickPrimary(members),
			members:    members,
			confidence: meanCombined(pairs),
			reasons:    c.clusterReasons(pairs),
		})
	}
	return clusters, nil
}

// pairwiseSimilarities compares every unordered member pair. Confidence and
// reasons are means over all pairs, not only the pairs involving the seed.
func (c *Clusterer) pairwiseSimilarities(members []*models.Report) []pairSimilarity {
	pairs := make([]pairSimilarity, 0, len(members)*(len(members)-1)/2)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			pairs = append(pairs, c.similarity(members[i], members[j]))
		}
	}
	return pairs
}

// pickPrimary selects the representative: highest verification count, ties
// broken by earliest creation.
func pickPrimary(members []*models.Report) *models.Report {
	primary := members[0]
	for _, m := range members[1:] {
		if m.VerificationCount > primary.VerificationCount ||
			(m.VerificationCount == primary.VerificationCount && m.CreatedAt.Before(primary.CreatedAt)) {
			primary = m
		}
	}
	return primary
}

// pairSimilarity carries the per-criterion components of one comparison.
type pairSimilarity struct {
	combined float64
	spatial  float64
	temporal float64
	text     float64
}

// Component weights of the combined pairwise similarity. A type mismatch
// zeroes the whole score: reports of different incident types never cluster.
const (
	weightType     = 0.25
	weightSpatial  = 0.30
	weightTemporal = 0.25
	weightText     = 0.20
)

func (c *Clusterer) similarity(a, b *models.Report) pairSimilarity {
	if a.Type != b.Type {
		return pairSimilarity{}
	}

	spatial := c.spatialScore(a, b)
	temporal := c.temporalScore(a, b)
	text := tokenOverlap(a.Description, b.Description)

	return pairSimilarity{
		combined: weightType + weightSpatial*spatial + weightTemporal*temporal + weightText*text,
		spatial:  spatial,
		temporal: temporal,
		text:     text,
	}
}

// spatialScore decays linearly with distance inside the radius. Reports
// without coordinates fall back to comparing their free-text location.
func (c *Clusterer) spatialScore(a, b *models.Report) float64 {
	if a.Latitude != nil && a.Longitude != nil && b.Latitude != nil && b.Longitude != nil {
		distance := geo.HaversineKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		if distance >= c.config.RadiusKm {
			return 0
		}
		return 1 - distance/c.config.RadiusKm
	}
	if a.LocationText != "" && strings.EqualFold(strings.TrimSpace(a.LocationText), strings.TrimSpace(b.LocationText)) {
		return 1
	}
	return 0
}

func (c *Clusterer) temporalScore(a, b *models.Report) float64 {
	delta := reportTime(a).Sub(reportTime(b))
	if delta < 0 {
		delta = -delta
	}
	if delta >= c.config.TimeWindow {
		return 0
	}
	return 1 - float64(delta)/float64(c.config.TimeWindow)
}

func reportTime(r *models.Report) time.Time {
	if !r.OccurredAt.IsZero() {
		return r.OccurredAt
	}
	return r.CreatedAt
}

// tokenOverlap is the Jaccard similarity of the lowercase word sets of two
// descriptions.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if len(token) > 2 {
			set[token] = true
		}
	}
	return set
}

func meanCombined(pairs []pairSimilarity) float64 {
	if len(pairs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pairs {
		sum += p.combined
	}
	return math.Round(sum/float64(len(pairs))*100) / 100
}

// clusterReasons lists the criteria that contributed for the cluster as a
// whole: a criterion counts when its mean component is substantial.
func (c *Clusterer) clusterReasons(pairs []pairSimilarity) models.StringList {
	reasons := models.StringList{ReasonSameType}
	if len(pairs) == 0 {
		return reasons
	}

	var spatial, temporal, text float64
	for _, p := range pairs {
		spatial += p.spatial
		temporal += p.temporal
		text += p.text
	}
	n := float64(len(pairs))

	if spatial/n >= 0.5 {
		reasons = append(reasons, ReasonLocationRadius)
	}
	if temporal/n >= 0.5 {
		reasons = append(reasons, ReasonTimeWindow)
	}
	if text/n >= c.config.TextThreshold {
		reasons = append(reasons, ReasonSimilarText)
	}
	return reasons
}
