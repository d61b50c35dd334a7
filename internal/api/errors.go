package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/ingest"
	"vigil/internal/notification"
)

// respondError maps engine and domain errors onto HTTP responses.
// Anything unrecognized is logged and reported as a 500.
func respondError(c *fiber.Ctx, logger *slog.Logger, action string, err error) error {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound),
		errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrPolicyNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return Conflict(c, err.Error())
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidSeverity),
		errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyFingerprint),
		errors.Is(err, domain.ErrEmptyMetricName),
		errors.Is(err, domain.ErrInvalidMetric),
		errors.Is(err, domain.ErrInvalidEventKind):
		return ValidationError(c, err.Error())
	case errors.Is(err, engine.ErrEngineStopped),
		errors.Is(err, notification.ErrDispatcherClosed),
		errors.Is(err, ingest.ErrPublishFailed):
		return ServiceUnavailable(c, err.Error())
	default:
		logger.Error("request failed", "action", action, "error", err)
		return InternalError(c, "failed to "+action)
	}
}
