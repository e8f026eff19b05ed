package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/fakedetect"
	"github.com/crisispulse/CrisisPulse/internal/pkg/jobqueue"
	"github.com/crisispulse/CrisisPulse/internal/pkg/metrics/counter"
	"github.com/crisispulse/CrisisPulse/internal/pkg/notify"
	"github.com/crisispulse/CrisisPulse/internal/pkg/statistics"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
	"github.com/crisispulse/CrisisPulse/internal/pkg/usercontext"
)

// CreateReportRequest is the submission payload.
type CreateReportRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Severity     string   `json:"severity"`
	LocationText string   `json:"location_text"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	MediaURLs    []string `json:"media_urls"`
	OccurredAt   string   `json:"occurred_at"` // RFC3339, defaults to now
}

// POST /api/v1/reports - submit a new incident report. Fake detection runs in
// the background and never blocks creation.
func HandleCreateReport(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	report := models.NewReport(user.UserID, req.Title, req.Description, req.Type, req.Severity)
	report.LocationText = req.LocationText
	report.Latitude = req.Latitude
	report.Longitude = req.Longitude
	if len(req.MediaURLs) > 0 {
		report.MediaURLs = models.StringList(req.MediaURLs)
	}
	report.OccurredAt = time.Now()
	if req.OccurredAt != "" {
		occurred, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "occurred_at must be RFC3339"})
		}
		report.OccurredAt = occurred
	}

	if err := report.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetReportRepository()
	if err := repo.Create(report); err != nil {
		log.Errorf("[API] create report: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Report could not be saved"})
	}

	payload := jobqueue.FakeDetectionJobPayload{ReportUUID: report.UUID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeFakeDetection, payload.ToMap()); err != nil {
		// annotation only - the report stands without it
		log.Warnf("[API] enqueue fake detection for %s: %v", report.UUID, err)
	}

	go statistics.UpdateCacheIfNeeded()

	notify.Get().Publish(notify.Event{
		Type: notify.EventNewReport,
		Data: map[string]interface{}{
			"report_id": report.UUID,
			"type":      report.Type,
			"severity":  report.Severity,
			"status":    report.Status,
		},
	})

	setConditionalHeaders(c, report)
	return c.Status(fiber.StatusCreated).JSON(reportResponse(report))
}

// GET /api/v1/reports - list reports with optional type/status/severity
// filters and paging.
func HandleListReports(c *fiber.Ctx) error {
	filter := repository.ReportFilter{
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		Severity: c.Query("severity"),
	}
	if filter.Type != "" && !isValidIncidentType(filter.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "unknown report type"})
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "unknown status"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	repo := repository.GetGlobalFactory().GetReportRepository()
	reports, err := repo.List(filter, (page-1)*limit, limit)
	if err != nil {
		log.Errorf("[API] list reports: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reports could not be loaded"})
	}
	total, err := repo.Count(filter)
	if err != nil {
		log.Errorf("[API] count reports: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reports could not be loaded"})
	}

	items := make([]fiber.Map, 0, len(reports))
	for i := range reports {
		items = append(items, reportResponse(&reports[i]))
	}
	return c.JSON(fiber.Map{
		"reports": items,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GET /api/v1/reports/:uuid - single report with conditional retrieval
// support (If-None-Match / If-Modified-Since).
func HandleGetReport(c *fiber.Ctx) error {
	id := c.Params("uuid")
	repo := repository.GetGlobalFactory().GetReportRepository()
	report, err := repo.GetByUUID(id)
	if err != nil {
		return respondTrustError(c, trust.ErrReportNotFound)
	}

	if notModified(c, report) {
		setConditionalHeaders(c, report)
		return c.SendStatus(fiber.StatusNotModified)
	}

	if err := counter.AddReportView(report.ID); err != nil {
		log.Warnf("[API] report view counter for %s: %v", report.UUID, err)
	}

	setConditionalHeaders(c, report)
	return c.JSON(reportResponse(report))
}

// reportResponse is the canonical report resource shape.
func reportResponse(report *models.Report) fiber.Map {
	var risk *string
	if report.FakeScore != nil {
		r := fakedetect.Risk(*report.FakeScore)
		risk = &r
	}
	return fiber.Map{
		"uuid":                 report.UUID,
		"reporter_id":          report.ReporterID,
		"title":                report.Title,
		"description":          report.Description,
		"type":                 report.Type,
		"severity":             report.Severity,
		"location_text":        report.LocationText,
		"latitude":             report.Latitude,
		"longitude":            report.Longitude,
		"media_urls":           report.MediaURLs,
		"occurred_at":          report.OccurredAt,
		"view_count":           report.ViewCount,
		"upvotes":              report.Upvotes,
		"downvotes":            report.Downvotes,
		"verification_count":   report.VerificationCount,
		"consensus_score":      report.ConsensusScore,
		"consensus_tier":       trust.Tier(report.ConsensusScore),
		"status":               report.Status,
		"confirmed_by_id":      report.ConfirmedByID,
		"confirmed_at":         report.ConfirmedAt,
		"ai_validation_score":  report.AIValidationScore,
		"fake_detection_score": report.FakeScore,
		"fake_detection_risk":  risk,
		"fake_detection_flags": report.FakeFlags,
		"similar_report_ids":   report.SimilarReportIDs,
		"version":              report.Version,
		"created_at":           report.CreatedAt,
		"updated_at":           report.UpdatedAt,
	}
}

func isValidIncidentType(t string) bool {
	switch t {
	case models.IncidentFire, models.IncidentFlood, models.IncidentEarthquake,
		models.IncidentStorm, models.IncidentRoadAccident, models.IncidentEpidemic,
		models.IncidentLandslide, models.IncidentGasLeak, models.IncidentBuildingCollapse,
		models.IncidentChemicalSpill, models.IncidentPowerOutage,
		models.IncidentWaterContamination, models.IncidentOther:
		return true
	}
	return false
}
