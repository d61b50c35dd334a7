package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"vigil/internal/domain"
)

// PolicyEngine manages the engine's escalation policies.
type PolicyEngine interface {
	UpdateEscalationPolicy(ctx context.Context, policy domain.EscalationPolicy) error
	ListEscalationPolicies() []*domain.EscalationPolicy
	GetEscalationPolicy(id string) (*domain.EscalationPolicy, error)
}

// EscalationPolicyHandler handles HTTP requests for escalation policies.
type EscalationPolicyHandler struct {
	engine PolicyEngine
	logger *slog.Logger
}

// NewEscalationPolicyHandler creates a new escalation policy handler.
func NewEscalationPolicyHandler(eng PolicyEngine, logger *slog.Logger) *EscalationPolicyHandler {
	return &EscalationPolicyHandler{
		engine: eng,
		logger: logger,
	}
}

// escalationLevelDTO is the wire form of a level. Timeouts are Go
// duration strings such as "5m".
type escalationLevelDTO struct {
	Level    int                          `json:"level"`
	Timeout  string                       `json:"timeout"`
	Channels []domain.NotificationChannel `json:"channels"`
	Targets  []string                     `json:"targets"`
}

// escalationPolicyDTO is the wire form of a policy.
type escalationPolicyDTO struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Levels           []escalationLevelDTO `json:"levels"`
	RepeatFinalLevel bool                 `json:"repeat_final_level"`
	RepeatInterval   string               `json:"repeat_interval,omitempty"`
	MaxEscalations   int                  `json:"max_escalations"`
}

func toPolicyDTO(p *domain.EscalationPolicy) escalationPolicyDTO {
	dto := escalationPolicyDTO{
		ID:               p.ID,
		Name:             p.Name,
		Levels:           make([]escalationLevelDTO, len(p.Levels)),
		RepeatFinalLevel: p.RepeatFinalLevel,
		MaxEscalations:   p.MaxEscalations,
	}
	if p.RepeatInterval > 0 {
		dto.RepeatInterval = p.RepeatInterval.String()
	}
	for i, lvl := range p.Levels {
		dto.Levels[i] = escalationLevelDTO{
			Level:    lvl.Level,
			Timeout:  lvl.Timeout.String(),
			Channels: lvl.Channels,
			Targets:  lvl.Targets,
		}
	}
	return dto
}

func (dto *escalationPolicyDTO) toPolicy(id string) (domain.EscalationPolicy, error) {
	policy := domain.EscalationPolicy{
		ID:               id,
		Name:             dto.Name,
		Levels:           make([]domain.EscalationLevel, len(dto.Levels)),
		RepeatFinalLevel: dto.RepeatFinalLevel,
		MaxEscalations:   dto.MaxEscalations,
	}

	if dto.RepeatInterval != "" {
		d, err := time.ParseDuration(dto.RepeatInterval)
		if err != nil {
			return policy, fmt.Errorf("%w: repeat_interval: %v", domain.ErrInvalidConfig, err)
		}
		policy.RepeatInterval = d
	}

	for i, lvl := range dto.Levels {
		timeout, err := time.ParseDuration(lvl.Timeout)
		if err != nil {
			return policy, fmt.Errorf("%w: level %d timeout: %v", domain.ErrInvalidConfig, i, err)
		}
		policy.Levels[i] = domain.EscalationLevel{
			Level:    lvl.Level,
			Timeout:  timeout,
			Channels: lvl.Channels,
			Targets:  lvl.Targets,
		}
	}
	return policy, nil
}

// List handles GET /v1/escalation-policies
func (h *EscalationPolicyHandler) List(c *fiber.Ctx) error {
	policies := h.engine.ListEscalationPolicies()
	out := make([]escalationPolicyDTO, len(policies))
	for i, p := range policies {
		out[i] = toPolicyDTO(p)
	}
	return Success(c, out)
}

// Get handles GET /v1/escalation-policies/:id
func (h *EscalationPolicyHandler) Get(c *fiber.Ctx) error {
	policy, err := h.engine.GetEscalationPolicy(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "get escalation policy", err)
	}
	return Success(c, toPolicyDTO(policy))
}

// Put handles PUT /v1/escalation-policies/:id
// Creates or replaces the policy. Alerts pick it up on the next escalation tick.
func (h *EscalationPolicyHandler) Put(c *fiber.Ctx) error {
	id := c.Params("id")

	var req escalationPolicyDTO
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	policy, err := req.toPolicy(id)
	if err != nil {
		return ValidationError(c, err.Error())
	}

	if err := h.engine.UpdateEscalationPolicy(c.Context(), policy); err != nil {
		return respondError(c, h.logger, "update escalation policy", err)
	}

	h.logger.Info("updated escalation policy", "policyID", id, "levels", len(policy.Levels))
	return Success(c, toPolicyDTO(&policy))
}
