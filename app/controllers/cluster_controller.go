package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/clustering"
	"github.com/crisispulse/CrisisPulse/internal/pkg/usercontext"
)

// GET /api/v1/reports/clusters - the current duplicate cluster set from the
// most recent completed run.
func HandleListClusters(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetClusterRepository()
	clusters, err := repo.GetAll()
	if err != nil {
		log.Errorf("[API] list clusters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Clusters could not be loaded"})
	}
	lastRun, err := repo.LastRunAt()
	if err != nil {
		log.Errorf("[API] cluster last run: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Clusters could not be loaded"})
	}

	totalReports := 0
	items := make([]fiber.Map, 0, len(clusters))
	for i := range clusters {
		cl := &clusters[i]
		totalReports += cl.Size()
		items = append(items, fiber.Map{
			"cluster_id":        cl.ClusterID,
			"primary_report_id": cl.PrimaryReportID,
			"member_ids":        cl.MemberIDs,
			"size":              cl.Size(),
			"confidence":        cl.Confidence,
			"reasons":           cl.Reasons,
		})
	}
	return c.JSON(fiber.Map{
		"clusters":                  items,
		"total_clusters":            len(items),
		"total_reports_in_clusters": totalReports,
		"last_run_at":               lastRun,
	})
}

// POST /api/v1/reports/run-clustering - trigger a synchronous clustering
// run. Only one run executes at a time; a concurrent trigger is rejected.
func HandleRunClustering(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if !models.CanConfirm(user.Role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Insufficient role for this operation"})
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "limit must be a non-negative integer"})
		}
		limit = parsed
	}

	result, err := clusterer.Run(c.Context(), limit)
	if err != nil {
		if errors.Is(err, clustering.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "run_in_progress", "message": "A clustering run is already in progress"})
		}
		log.Errorf("[API] clustering run: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Clustering run failed"})
	}
	return c.JSON(fiber.Map{
		"clusters_found":   result.ClustersFound,
		"reports_analyzed": result.ReportsAnalyzed,
	})
}
