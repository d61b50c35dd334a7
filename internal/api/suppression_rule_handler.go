package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vigil/internal/domain"
)

// RuleEngine manages the engine's suppression rules.
type RuleEngine interface {
	AddSuppressionRule(ctx context.Context, rule domain.SuppressionRule) (*domain.SuppressionRule, error)
	RemoveSuppressionRule(ctx context.Context, id string) error
	ListSuppressionRules() []*domain.SuppressionRule
}

// SuppressionRuleHandler handles HTTP requests for suppression rules.
type SuppressionRuleHandler struct {
	engine RuleEngine
	logger *slog.Logger
}

// NewSuppressionRuleHandler creates a new suppression rule handler.
func NewSuppressionRuleHandler(eng RuleEngine, logger *slog.Logger) *SuppressionRuleHandler {
	return &SuppressionRuleHandler{
		engine: eng,
		logger: logger,
	}
}

// Create handles POST /v1/suppression-rules
// The rule applies to alerts created from now on.
func (h *SuppressionRuleHandler) Create(c *fiber.Ctx) error {
	var req domain.CreateSuppressionRuleRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	rule, err := h.engine.AddSuppressionRule(c.Context(), *req.ToSuppressionRule(""))
	if err != nil {
		return respondError(c, h.logger, "create suppression rule", err)
	}

	h.logger.Info("created suppression rule", "ruleID", rule.ID, "pattern", rule.Pattern)
	return Created(c, rule)
}

// List handles GET /v1/suppression-rules
func (h *SuppressionRuleHandler) List(c *fiber.Ctx) error {
	return Success(c, h.engine.ListSuppressionRules())
}

// Delete handles DELETE /v1/suppression-rules/:id
func (h *SuppressionRuleHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.engine.RemoveSuppressionRule(c.Context(), id); err != nil {
		return respondError(c, h.logger, "delete suppression rule", err)
	}

	h.logger.Info("deleted suppression rule", "ruleID", id)
	return NoContent(c)
}
