package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
)

func TestReportETag(t *testing.T) {
	t.Parallel()

	report := &models.Report{UUID: "11111111-2222-3333-4444-555555555555", Version: 3}
	assert.Equal(t, `"11111111-2222-3333-4444-555555555555-3"`, reportETag(report))
}

// runConditional routes a request through a handler that evaluates the
// conditional helpers against the given report.
func runConditional(t *testing.T, report *models.Report, headers map[string]string) int {
	t.Helper()

	app := fiber.New()
	app.Get("/r", func(c *fiber.Ctx) error {
		if notModified(c, report) {
			setConditionalHeaders(c, report)
			return c.SendStatus(fiber.StatusNotModified)
		}
		setConditionalHeaders(c, report)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/r", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestNotModified_IfNoneMatch(t *testing.T) {
	t.Parallel()

	report := &models.Report{UUID: "abc", Version: 2, UpdatedAt: time.Now()}

	status := runConditional(t, report, map[string]string{fiber.HeaderIfNoneMatch: `"abc-2"`})
	assert.Equal(t, fiber.StatusNotModified, status)

	status = runConditional(t, report, map[string]string{fiber.HeaderIfNoneMatch: `"abc-1"`})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestNotModified_IfModifiedSince(t *testing.T) {
	t.Parallel()

	updated := time.Date(2026, 5, 12, 10, 30, 0, 0, time.UTC)
	report := &models.Report{UUID: "abc", Version: 1, UpdatedAt: updated}

	status := runConditional(t, report, map[string]string{
		fiber.HeaderIfModifiedSince: updated.Format(time.RFC1123),
	})
	assert.Equal(t, fiber.StatusNotModified, status)

	status = runConditional(t, report, map[string]string{
		fiber.HeaderIfModifiedSince: updated.Add(-time.Hour).Format(time.RFC1123),
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestNotModified_ETagTakesPrecedence(t *testing.T) {
	t.Parallel()

	report := &models.Report{UUID: "abc", Version: 2, UpdatedAt: time.Now()}

	// mismatched ETag wins over a satisfied If-Modified-Since
	status := runConditional(t, report, map[string]string{
		fiber.HeaderIfNoneMatch:     `"abc-1"`,
		fiber.HeaderIfModifiedSince: time.Now().Add(time.Hour).UTC().Format(time.RFC1123),
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestSetConditionalHeaders(t *testing.T) {
	t.Parallel()

	updated := time.Date(2026, 5, 12, 10, 30, 0, 0, time.UTC)
	report := &models.Report{UUID: "abc", Version: 4, UpdatedAt: updated}

	app := fiber.New()
	app.Get("/r", func(c *fiber.Ctx) error {
		setConditionalHeaders(c, report)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/r", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, `"abc-4"`, resp.Header.Get(fiber.HeaderETag))
	// HTTP dates carry a GMT zone regardless of the stored zone
	assert.Equal(t, "Tue, 12 May 2026 10:30:00 GMT", resp.Header.Get(fiber.HeaderLastModified))
}

func TestRespondTrustError_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", trust.NewValidationError("status", "bad"), fiber.StatusBadRequest},
		{"optimistic lock", &trust.OptimisticLockError{Expected: 1, Actual: 2}, fiber.StatusConflict},
		{"not found", trust.ErrReportNotFound, fiber.StatusNotFound},
		{"forbidden", trust.ErrForbidden, fiber.StatusForbidden},
		{"duplicate verification", trust.ErrDuplicateVerification, fiber.StatusConflict},
		{"threshold not met", trust.ErrNotEnoughVerifications, fiber.StatusPreconditionFailed},
		{"nothing to unconfirm", trust.ErrNothingToUnconfirm, fiber.StatusConflict},
		{"unknown", assert.AnError, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/e", func(c *fiber.Ctx) error {
				return respondTrustError(c, tt.err)
			})
			resp, err := app.Test(httptest.NewRequest("GET", "/e", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}
