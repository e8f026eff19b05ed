package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/database"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
	"github.com/crisispulse/CrisisPulse/internal/pkg/usercontext"
)

// StatusUpdateRequest carries a lifecycle status transition. ExpectedVersion
// is optional; when set the update only applies against that exact version.
type StatusUpdateRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int   `json:"expected_version"`
}

func loadActor(c *fiber.Ctx) (*models.User, error) {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return nil, fiber.ErrUnauthorized
	}
	return repository.GetGlobalFactory().GetUserRepository().GetByID(user.UserID)
}

// notifyReporter persists an in-app notification for the report owner.
// Best-effort: a failed write is logged and the request still succeeds.
func notifyReporter(report *models.Report, notificationType, content string) {
	if err := models.CreateNotification(database.GetDB(), report.ReporterID, notificationType, content, report.ID); err != nil {
		log.Warnf("[API] notify reporter %d for report %s: %v", report.ReporterID, report.UUID, err)
	}
}

// POST /api/v1/reports/:uuid/confirm - official confirmation by an NGO or
// admin account. Requires the verification threshold to be met.
func HandleConfirmReport(c *fiber.Ctx) error {
	actor, err := loadActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	report, err := engine.Confirm(c.Params("uuid"), actor)
	if err != nil {
		return respondTrustError(c, err)
	}
	notifyReporter(report, "report_confirmed",
		fmt.Sprintf("Your report %q was officially confirmed.", report.Title))
	return c.JSON(fiber.Map{
		"report_id":       report.UUID,
		"status":          report.Status,
		"confirmed_by_id": report.ConfirmedByID,
		"confirmed_at":    report.ConfirmedAt,
		"consensus_score": report.ConsensusScore,
		"consensus_tier":  trust.Tier(report.ConsensusScore),
		"version":         report.Version,
	})
}

// DELETE /api/v1/reports/:uuid/confirm - retract an official confirmation.
func HandleUnconfirmReport(c *fiber.Ctx) error {
	actor, err := loadActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	report, err := engine.Unconfirm(c.Params("uuid"), actor)
	if err != nil {
		return respondTrustError(c, err)
	}
	notifyReporter(report, "report_unconfirmed",
		fmt.Sprintf("The official confirmation of your report %q was retracted.", report.Title))
	return c.JSON(fiber.Map{
		"report_id":       report.UUID,
		"status":          report.Status,
		"consensus_score": report.ConsensusScore,
		"consensus_tier":  trust.Tier(report.ConsensusScore),
		"version":         report.Version,
	})
}

// PATCH /api/v1/reports/:uuid/status - move a report forward through its
// lifecycle. Backward transitions are rejected.
func HandleUpdateStatus(c *fiber.Ctx) error {
	actor, err := loadActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if !models.CanConfirm(actor.Role) {
		return respondTrustError(c, trust.ErrForbidden)
	}

	var req StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	report, err := engine.UpdateStatus(c.Params("uuid"), req.Status, req.ExpectedVersion)
	if err != nil {
		return respondTrustError(c, err)
	}
	setConditionalHeaders(c, report)
	return c.JSON(fiber.Map{
		"report_id":       report.UUID,
		"status":          report.Status,
		"consensus_score": report.ConsensusScore,
		"version":         report.Version,
		"updated_at":      report.UpdatedAt,
	})
}
