package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisispulse/CrisisPulse/internal/pkg/statistics"
)

// GET /api/v1/stats - aggregate platform counters, served from cache.
func HandleGetStats(c *fiber.Ctx) error {
	go statistics.UpdateCacheIfNeeded()
	return c.JSON(statistics.GetStatistics())
}
