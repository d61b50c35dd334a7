package api

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"vigil/internal/domain"
	"vigil/internal/engine"
)

// AlertEngine is the part of the engine the alert handler needs.
type AlertEngine interface {
	GetAlertStatus(id string) (*domain.Alert, bool)
	GetArchivedAlert(ctx context.Context, id string) (*domain.Alert, error)
	ListAlerts(filter domain.AlertFilter) []*domain.Alert
	GetCorrelatedAlerts(key domain.CorrelationKey) (*engine.CorrelatedAlerts, bool)
	NotificationHistory(ctx context.Context, alertID string) ([]*domain.NotificationStatus, error)
	Acknowledge(ctx context.Context, id, actor string) (*domain.Alert, error)
	Resolve(ctx context.Context, id, actor string) (*domain.Alert, error)
	Suppress(ctx context.Context, id string, d time.Duration, reason string) (*domain.Alert, error)
}

// AlertHandler handles HTTP requests for alert queries and operator commands.
type AlertHandler struct {
	engine AlertEngine
	logger *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(eng AlertEngine, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		engine: eng,
		logger: logger,
	}
}

// actorRequest is the body of acknowledge and resolve commands.
type actorRequest struct {
	Actor string `json:"actor"`
}

// suppressRequest is the body of the suppress command. Duration is a Go
// duration string such as "30m".
type suppressRequest struct {
	Duration string `json:"duration"`
	Reason   string `json:"reason"`
}

// List handles GET /v1/alerts
// Returns active alerts, optionally filtered by state, severity and service.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	filter := domain.AlertFilter{
		Service: c.Query("service"),
	}

	if state := c.Query("state"); state != "" {
		s := domain.State(state)
		if !s.IsValid() {
			return ValidationError(c, "unknown state: "+state)
		}
		filter.States = []domain.State{s}
	}

	if severity := c.Query("severity"); severity != "" {
		sev, err := domain.ParseSeverity(severity)
		if err != nil {
			return ValidationError(c, err.Error())
		}
		filter.Severity = sev
	}

	// Parse pagination
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	// Default limit if not specified
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	return Success(c, h.engine.ListAlerts(filter))
}

// Get handles GET /v1/alerts/:id
// Alerts already reclaimed by cleanup are served from the archive.
func (h *AlertHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	if alert, ok := h.engine.GetAlertStatus(id); ok {
		return Success(c, alert)
	}

	alert, err := h.engine.GetArchivedAlert(c.Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get alert", err)
	}
	return Success(c, alert)
}

// Notifications handles GET /v1/alerts/:id/notifications
// Returns every recorded delivery attempt for the alert.
func (h *AlertHandler) Notifications(c *fiber.Ctx) error {
	history, err := h.engine.NotificationHistory(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "list notifications", err)
	}
	return Success(c, history)
}

// Acknowledge handles POST /v1/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}
	if req.Actor == "" {
		return ValidationError(c, "actor is required")
	}

	alert, err := h.engine.Acknowledge(c.Context(), c.Params("id"), req.Actor)
	if err != nil {
		return respondError(c, h.logger, "acknowledge alert", err)
	}
	return Success(c, alert)
}

// Resolve handles POST /v1/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}
	if req.Actor == "" {
		return ValidationError(c, "actor is required")
	}

	alert, err := h.engine.Resolve(c.Context(), c.Params("id"), req.Actor)
	if err != nil {
		return respondError(c, h.logger, "resolve alert", err)
	}
	return Success(c, alert)
}

// Suppress handles POST /v1/alerts/:id/suppress
func (h *AlertHandler) Suppress(c *fiber.Ctx) error {
	var req suppressRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return ValidationError(c, "duration must be a duration such as 30m")
	}

	alert, err := h.engine.Suppress(c.Context(), c.Params("id"), d, req.Reason)
	if err != nil {
		return respondError(c, h.logger, "suppress alert", err)
	}
	return Success(c, alert)
}

// Correlations handles GET /v1/correlations
// Returns the correlation group for the key given in the query string.
func (h *AlertHandler) Correlations(c *fiber.Ctx) error {
	key := domain.CorrelationKey{
		Service:     c.Query("service"),
		Component:   c.Query("component"),
		MetricType:  c.Query("metric_type"),
		Fingerprint: c.Query("fingerprint"),
	}
	if key.Fingerprint == "" {
		return ValidationError(c, domain.ErrEmptyFingerprint.Error())
	}

	group, ok := h.engine.GetCorrelatedAlerts(key)
	if !ok {
		return NotFound(c, "no correlation group for key "+key.String())
	}
	return Success(c, group)
}
