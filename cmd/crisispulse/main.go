package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/crisispulse/CrisisPulse/app/controllers"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/cache"
	"github.com/crisispulse/CrisisPulse/internal/pkg/clustering"
	"github.com/crisispulse/CrisisPulse/internal/pkg/database"
	"github.com/crisispulse/CrisisPulse/internal/pkg/env"
	"github.com/crisispulse/CrisisPulse/internal/pkg/fakedetect"
	"github.com/crisispulse/CrisisPulse/internal/pkg/jobqueue"
	"github.com/crisispulse/CrisisPulse/internal/pkg/notify"
	"github.com/crisispulse/CrisisPulse/internal/pkg/router"
	"github.com/crisispulse/CrisisPulse/internal/pkg/trust"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("shutting down")
		jobqueue.GetManager().Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	notifier := notify.Setup(64, cache.GetClient())
	engine := trust.NewEngine(repos, notifier, trust.DefaultWeights)
	clusterer := clustering.NewClusterer(repos.Report, repos.Cluster, engine, notifier, clustering.DefaultConfig())
	analyzer := fakedetect.NewAnalyzerClient()

	manager := jobqueue.Setup(&jobqueue.Processors{
		Engine:    engine,
		Analyzer:  analyzer,
		Reports:   repos.Report,
		Clusters:  repos.Cluster,
		Clusterer: clusterer,
	})
	manager.Start()

	// re-run fake detection whenever a clustering run tags a report as a
	// duplicate, so the duplicate_content signal picks up the annotation
	clusterer.SetRecheckFunc(func(reportUUID string) {
		payload := jobqueue.FakeDetectionJobPayload{ReportUUID: reportUUID}
		if _, err := manager.GetQueue().EnqueueJob(jobqueue.JobTypeFakeDetection, payload.ToMap()); err != nil {
			log.Printf("requeue fake detection for %s: %v", reportUUID, err)
		}
	})

	controllers.Setup(engine, clusterer)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CrisisPulse",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
