package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
	"github.com/crisispulse/CrisisPulse/internal/pkg/usercontext"
)

// POST /api/v1/reports/:uuid/verify - record an independent on-the-ground
// verification. One per user per report, no retraction.
func HandleVerifyReport(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	report, err := engine.RecordVerification(c.Params("uuid"), user.UserID)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_id":          report.UUID,
		"verification_count": report.VerificationCount,
		"consensus_score":    report.ConsensusScore,
		"consensus_tier":     trust.Tier(report.ConsensusScore),
		"status":             report.Status,
	})
}

// GET /api/v1/reports/:uuid/verify - whether the caller has verified this report.
func HandleGetVerification(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	verified, err := engine.HasVerified(c.Params("uuid"), user.UserID)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_id": c.Params("uuid"),
		"verified":  verified,
	})
}

// GET /api/v1/verifications/mine - reports the caller has verified.
func HandleListMyVerifications(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	ids, err := engine.ListVerifiedBy(user.UserID)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_ids": ids,
		"count":      len(ids),
	})
}
