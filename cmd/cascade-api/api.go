// Package main provides the Cascade API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/cascadehq/cascade/pkg/eventbus"
	"github.com/cascadehq/cascade/pkg/infer"
	"github.com/cascadehq/cascade/pkg/kinds"
	"github.com/cascadehq/cascade/pkg/runner"
	"github.com/cascadehq/cascade/pkg/services"
	"github.com/cascadehq/cascade/pkg/session"
	"github.com/cascadehq/cascade/pkg/store"
	"github.com/cascadehq/cascade/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger    *slog.Logger
	store     store.Store
	sessions  *session.Manager
	eventBus  eventbus.EventBus
	tracer    trace.Tracer
	runnerCfg runner.Config
	validate  *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	st store.Store,
	sessions *session.Manager,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	runnerCfg runner.Config,
) *API {
	return &API{
		logger:    logger,
		store:     st,
		sessions:  sessions,
		eventBus:  eventBus,
		tracer:    tracer,
		runnerCfg: runnerCfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	registry := kinds.NewRegistry()

	r := runner.NewRunner(a.store, a.sessions, infer.New(), registry, a.eventBus, a.tracer, a.runnerCfg)

	pipelineService := services.NewPipeline(a.store, a.validate)
	analysisService := services.NewAnalysis(a.store)
	executionService := services.NewExecution(r)

	handlers := web.NewAPIHandlers(pipelineService, analysisService, executionService, a.validate, registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cascade API")
	})

	p := app.Group("/pipelines")
	p.Get("/", handlers.GetPipelines)
	p.Post("/", handlers.CreatePipeline)
	p.Get("/:id", handlers.GetPipeline)
	p.Get("/:id/validate", handlers.ValidateGraph)

	// Node endpoints:
	p.Get("/:id/nodes", handlers.GetNodes)
	p.Put("/:id/nodes/:nodeId", handlers.UpsertNode)
	p.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)
	p.Get("/:id/nodes/:nodeId/analyze", handlers.AnalyzeNode)
	p.Post("/:id/nodes/:nodeId/plan", handlers.PlanNode)
	p.Post("/:id/nodes/:nodeId/execute", handlers.ExecuteNode)

	app.Get("/kinds", handlers.GetKinds)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
