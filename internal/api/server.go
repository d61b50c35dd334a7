package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/config"
	"vigil/internal/engine"
)

// HealthChecker reports engine health.
type HealthChecker interface {
	HealthCheck() engine.Health
}

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger
	health HealthChecker

	// Handlers
	alertHandler           *AlertHandler
	ingestHandler          *IngestHandler
	suppressionRuleHandler *SuppressionRuleHandler
	escalationHandler      *EscalationPolicyHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config                 *config.ServerConfig
	Logger                 *slog.Logger
	Health                 HealthChecker
	AlertHandler           *AlertHandler
	IngestHandler          *IngestHandler
	SuppressionRuleHandler *SuppressionRuleHandler
	EscalationHandler      *EscalationPolicyHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          customErrorHandler,
	})

	s := &Server{
		app:                    app,
		config:                 deps.Config,
		logger:                 deps.Logger,
		health:                 deps.Health,
		alertHandler:           deps.AlertHandler,
		ingestHandler:          deps.IngestHandler,
		suppressionRuleHandler: deps.SuppressionRuleHandler,
		escalationHandler:      deps.EscalationHandler,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")

	// Ingestion
	v1.Post("/metrics", s.ingestHandler.IngestMetric)
	v1.Post("/alerts", s.ingestHandler.IngestAlert)

	// Alerts and operator commands
	v1.Get("/alerts", s.alertHandler.List)
	v1.Get("/alerts/:id", s.alertHandler.Get)
	v1.Get("/alerts/:id/notifications", s.alertHandler.Notifications)
	v1.Post("/alerts/:id/acknowledge", s.alertHandler.Acknowledge)
	v1.Post("/alerts/:id/resolve", s.alertHandler.Resolve)
	v1.Post("/alerts/:id/suppress", s.alertHandler.Suppress)
	v1.Get("/correlations", s.alertHandler.Correlations)

	// Suppression rules
	v1.Post("/suppression-rules", s.suppressionRuleHandler.Create)
	v1.Get("/suppression-rules", s.suppressionRuleHandler.List)
	v1.Delete("/suppression-rules/:id", s.suppressionRuleHandler.Delete)

	// Escalation policies
	v1.Get("/escalation-policies", s.escalationHandler.List)
	v1.Get("/escalation-policies/:id", s.escalationHandler.Get)
	v1.Put("/escalation-policies/:id", s.escalationHandler.Put)
}

// healthCheck reports engine health. An unhealthy engine answers 503 so
// load balancers stop routing to it.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	h := s.health.HealthCheck()
	status := fiber.StatusOK
	if !h.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(APIResponse{
		Success: h.Healthy,
		Data: fiber.Map{
			"healthy":              h.Healthy,
			"alerts_in_memory":     h.AlertsInMemory,
			"correlation_groups":   h.CorrelationGroups,
			"metrics_tracked":      h.MetricsTracked,
			"max_alerts_in_memory": h.MaxAlertsInMemory,
			"uptime":               h.Uptime.String(),
		},
	})
}

// App exposes the underlying Fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	// Default to internal server error
	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
