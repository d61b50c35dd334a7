package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vigil/internal/domain"
)

// Ingester publishes incoming events to the processing queue.
type Ingester interface {
	IngestMetric(ctx context.Context, sample *domain.MetricSample) error
	IngestAlert(ctx context.Context, event *domain.AlertEvent) error
}

// IngestHandler handles HTTP requests for event ingestion.
type IngestHandler struct {
	service Ingester
	logger  *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(service Ingester, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  logger,
	}
}

// IngestMetric handles POST /v1/metrics
// Returns 202 Accepted immediately - detection happens asynchronously.
func (h *IngestHandler) IngestMetric(c *fiber.Ctx) error {
	var sample domain.MetricSample
	if err := c.BodyParser(&sample); err != nil {
		h.logger.Debug("failed to parse metric body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := h.service.IngestMetric(c.Context(), &sample); err != nil {
		return respondError(c, h.logger, "ingest metric", err)
	}

	return Accepted(c, map[string]string{
		"status":      "accepted",
		"metric_name": sample.MetricName,
	})
}

// IngestAlert handles POST /v1/alerts
// Returns 202 Accepted immediately - correlation happens asynchronously.
func (h *IngestHandler) IngestAlert(c *fiber.Ctx) error {
	var event domain.AlertEvent
	if err := c.BodyParser(&event); err != nil {
		h.logger.Debug("failed to parse alert body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := h.service.IngestAlert(c.Context(), &event); err != nil {
		return respondError(c, h.logger, "ingest alert", err)
	}

	h.logger.Debug("alert accepted", "fingerprint", event.CorrelationKey.Fingerprint)
	return Accepted(c, map[string]string{
		"status":      "accepted",
		"fingerprint": event.CorrelationKey.Fingerprint,
	})
}
