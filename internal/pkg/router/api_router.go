package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/crisispulse/CrisisPulse/app/controllers"
	"github.com/crisispulse/CrisisPulse/internal/pkg/env"
	"github.com/crisispulse/CrisisPulse/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        rateLimitMax(),
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	auth := middleware.APIKeyAuthMiddleware()

	v1 := api.Group("/v1")

	v1.Get("/stats", controllers.HandleGetStats)

	// Static report routes must register before the :uuid wildcard.
	v1.Get("/reports/clusters", controllers.HandleListClusters)
	v1.Post("/reports/run-clustering", auth, controllers.HandleRunClustering)

	v1.Post("/reports", auth, controllers.HandleCreateReport)
	v1.Get("/reports", controllers.HandleListReports)
	v1.Get("/reports/:uuid", controllers.HandleGetReport)

	v1.Post("/reports/:uuid/vote", auth, controllers.HandleCastVote)
	v1.Get("/reports/:uuid/vote", auth, controllers.HandleGetVote)
	v1.Delete("/reports/:uuid/vote", auth, controllers.HandleRemoveVote)
	v1.Get("/reports/:uuid/votes", controllers.HandleGetTally)

	v1.Post("/reports/:uuid/verify", auth, controllers.HandleVerifyReport)
	v1.Get("/reports/:uuid/verify", auth, controllers.HandleGetVerification)
	v1.Get("/verifications/mine", auth, controllers.HandleListMyVerifications)

	v1.Post("/reports/:uuid/confirm", auth, controllers.HandleConfirmReport)
	v1.Delete("/reports/:uuid/confirm", auth, controllers.HandleUnconfirmReport)
	v1.Patch("/reports/:uuid/status", auth, controllers.HandleUpdateStatus)

	v1.Get("/notifications", auth, controllers.HandleListNotifications)
	v1.Post("/notifications/:id/read", auth, controllers.HandleMarkNotificationRead)

	v1.Get("/stream", controllers.HandleEventStream)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func rateLimitMax() int {
	max, err := strconv.Atoi(env.GetEnv("API_RATE_LIMIT", "120"))
	if err != nil || max < 1 {
		return 120
	}
	return max
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to the in-memory default when Redis is not reachable.
func newLimiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
	})
}
