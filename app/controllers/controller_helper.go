package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/internal/pkg/clustering"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
)

// Shared engine wiring for all controllers, set once at boot.
var (
	engine    *trust.Engine
	clusterer *clustering.Clusterer
)

// Setup wires the controllers to the trust engine and clusterer.
func Setup(e *trust.Engine, cl *clustering.Clusterer) {
	engine = e
	clusterer = cl
}

// respondTrustError translates engine errors into structured client-visible
// responses. Everything the engine can return maps to a 4xx; anything else
// is an internal error and gets logged.
func respondTrustError(c *fiber.Ctx, err error) error {
	var validationErr *trust.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation_error", "message": validationErr.Error(),
		})
	}

	var lockErr *trust.OptimisticLockError
	if errors.As(err, &lockErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":    "conflict",
			"code":     "OPTIMISTIC_LOCK_ERROR",
			"message":  lockErr.Error(),
			"expected": lockErr.Expected,
			"actual":   lockErr.Actual,
		})
	}

	switch {
	case errors.Is(err, trust.ErrReportNotFound), errors.Is(err, trust.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found", "message": err.Error(),
		})
	case errors.Is(err, trust.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden", "message": err.Error(),
		})
	case errors.Is(err, trust.ErrDuplicateVerification):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "duplicate_verification", "message": err.Error(),
		})
	case errors.Is(err, trust.ErrNotEnoughVerifications):
		return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{
			"error": "precondition_failed", "message": err.Error(),
		})
	case errors.Is(err, trust.ErrNothingToUnconfirm):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "nothing_to_unconfirm", "message": err.Error(),
		})
	}

	log.Errorf("[API] internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal_server_error", "message": "Something went wrong",
	})
}

// reportETag derives the content fingerprint for conditional requests. The
// version uniquely identifies a row state, so no body hash is needed.
func reportETag(report *models.Report) string {
	return fmt.Sprintf("\"%s-%d\"", report.UUID, report.Version)
}

// notModified checks the conditional request headers against the report's
// current state.
func notModified(c *fiber.Ctx, report *models.Report) bool {
	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" {
		return match == reportETag(report)
	}
	if since := c.Get(fiber.HeaderIfModifiedSince); since != "" {
		if t, err := time.Parse(time.RFC1123, since); err == nil {
			return !report.UpdatedAt.Truncate(time.Second).After(t)
		}
	}
	return false
}

// setConditionalHeaders attaches ETag and Last-Modified to a report reply.
func setConditionalHeaders(c *fiber.Ctx, report *models.Report) {
	c.Set(fiber.HeaderETag, reportETag(report))
	c.Set(fiber.HeaderLastModified, report.UpdatedAt.UTC().Format(http.TimeFormat))
}
