package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/clustering"
	"github.com/crisispulse/CrisisPulse/internal/pkg/fakedetect"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
)

// analyzerCallTimeout bounds the external analyzer round trip. On timeout
// the report keeps a null fake-detection score; submission is never failed.
const analyzerCallTimeout = 15 * time.Second

// clusteringRunTimeout bounds a full clustering pass.
const clusteringRunTimeout = 2 * time.Minute

// Processors holds the dependencies the job handlers run against.
type Processors struct {
	Engine    *trust.Engine
	Analyzer  *fakedetect.AnalyzerClient
	Reports   repository.ReportRepository
	Clusters  repository.ClusterRepository
	Clusterer *clustering.Clusterer
}

// processFakeDetectionJob gathers analyzer and cluster signals for one
// report and applies the aggregated risk score. Analyzer failure degrades
// to a null score rather than failing the job: there is nothing to retry
// that a re-run on demand cannot redo.
func (p *Processors) processFakeDetectionJob(ctx context.Context, job *Job) error {
	payload, err := FakeDetectionJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid fake detection payload: %w", err)
	}

	report, err := p.Reports.GetByUUID(payload.ReportUUID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", payload.ReportUUID, err)
	}

	var text *fakedetect.TextAnalysis
	var images []fakedetect.ImageSignal
	analyzed := false
	if p.Analyzer != nil {
		callCtx, cancel := context.WithTimeout(ctx, analyzerCallTimeout)
		text, images, err = p.Analyzer.Analyze(callCtx, report.Title, report.Description, report.MediaURLs)
		cancel()
		if err != nil {
			log.Warnf("[JobQueue] analyzer unavailable for report %s, score stays null: %v", report.UUID, err)
		} else {
			analyzed = true
		}
	}

	clusterConfidence := p.clusterConfidenceFor(report.UUID)

	if !analyzed && len(report.SimilarReportIDs) == 0 {
		// no signals at all - leave the score null
		return nil
	}

	input := fakedetect.Input{
		Text:              text,
		Images:            images,
		ClaimedLatitude:   report.Latitude,
		ClaimedLongitude:  report.Longitude,
		OccurredAt:        report.OccurredAt,
		SimilarReportIDs:  report.SimilarReportIDs,
		ClusterConfidence: clusterConfidence,
	}
	score, flags := fakedetect.Aggregate(input)

	if _, err := p.Engine.ApplyFakeDetection(report.UUID, &score, flags); err != nil {
		return fmt.Errorf("apply fake detection for %s: %w", report.UUID, err)
	}
	return nil
}

// clusterConfidenceFor finds the confidence of the cluster the report
// belongs to, 0 when unclustered.
func (p *Processors) clusterConfidenceFor(reportUUID string) float64 {
	clusters, err := p.Clusters.GetAll()
	if err != nil {
		log.Warnf("[JobQueue] cluster lookup failed: %v", err)
		return 0
	}
	for _, cluster := range clusters {
		if cluster.PrimaryReportID == reportUUID || cluster.MemberIDs.Contains(reportUUID) {
			return cluster.Confidence
		}
	}
	return 0
}

// processClusteringJob runs one clustering pass. An overlapping run is not
// an error: the active run's results make this one redundant.
func (p *Processors) processClusteringJob(ctx context.Context, job *Job) error {
	payload, err := ClusteringJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid clustering payload: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, clusteringRunTimeout)
	defer cancel()

	result, err := p.Clusterer.Run(runCtx, payload.Limit)
	if err != nil {
		if errors.Is(err, clustering.ErrRunInProgress) {
			log.Infof("[JobQueue] clustering run already active, skipping job %s", job.ID)
			return nil
		}
		return err
	}

	log.Infof("[JobQueue] clustering run done: %d clusters from %d reports",
		result.ClustersFound, result.ReportsAnalyzed)
	return nil
}
