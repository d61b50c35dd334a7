// Package redis provides Redis-based implementations of the store interfaces.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/config"
	"vigil/internal/domain"
)

// Key prefixes for different data types in Redis.
const (
	prefixRule     = "vigil:suppression_rule:"
	prefixPolicy   = "vigil:escalation_policy:"
	keyRuleIndex   = "vigil:suppression_rules"
	keyPolicyIndex = "vigil:escalation_policies"
	connectTimeout = 5 * time.Second
)

// RuleStore implements store.RuleStore using Redis. Each entity is a JSON
// string under its own key, and a set per type indexes the ids.
type RuleStore struct {
	client *redis.Client
}

// NewRuleStore creates a new Redis-backed rule store.
func NewRuleStore(cfg *config.RedisConfig) (*RuleStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RuleStore{client: client}, nil
}

// NewRuleStoreWithClient wraps an existing client.
func NewRuleStoreWithClient(client *redis.Client) *RuleStore {
	return &RuleStore{client: client}
}

// --- Suppression Rules ---

func ruleKey(id string) string {
	return prefixRule + id
}

// SaveSuppressionRule stores or replaces a rule.
func (s *RuleStore) SaveSuppressionRule(ctx context.Context, rule *domain.SuppressionRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal suppression rule: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ruleKey(rule.ID), data, 0)
		pipe.SAdd(ctx, keyRuleIndex, rule.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save suppression rule: %w", err)
	}

	return nil
}

// DeleteSuppressionRule removes a rule by id.
func (s *RuleStore) DeleteSuppressionRule(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, ruleKey(id))
		pipe.SRem(ctx, keyRuleIndex, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete suppression rule: %w", err)
	}

	if del.Val() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// ListSuppressionRules returns all rules ordered by id.
func (s *RuleStore) ListSuppressionRules(ctx context.Context) ([]*domain.SuppressionRule, error) {
	values, err := s.loadIndexed(ctx, keyRuleIndex, prefixRule)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppression rules: %w", err)
	}

	rules := make([]*domain.SuppressionRule, 0, len(values))
	for _, data := range values {
		var rule domain.SuppressionRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suppression rule: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}

// --- Escalation Policies ---

func policyKey(id string) string {
	return prefixPolicy + id
}

// SaveEscalationPolicy stores or replaces a policy.
func (s *RuleStore) SaveEscalationPolicy(ctx context.Context, policy *domain.EscalationPolicy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation policy: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, policyKey(policy.ID), data, 0)
		pipe.SAdd(ctx, keyPolicyIndex, policy.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save escalation policy: %w", err)
	}

	return nil
}

// ListEscalationPolicies returns all policies ordered by id.
func (s *RuleStore) ListEscalationPolicies(ctx context.Context) ([]*domain.EscalationPolicy, error) {
	values, err := s.loadIndexed(ctx, keyPolicyIndex, prefixPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation policies: %w", err)
	}

	policies := make([]*domain.EscalationPolicy, 0, len(values))
	for _, data := range values {
		var policy domain.EscalationPolicy
		if err := json.Unmarshal(data, &policy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation policy: %w", err)
		}
		policies = append(policies, &policy)
	}
	return policies, nil
}

// loadIndexed reads every id in the index set and fetches its value.
// Ids whose key has disappeared are skipped.
func (s *RuleStore) loadIndexed(ctx context.Context, index, prefix string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([][]byte, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// --- Lifecycle ---

// Close closes the Redis client connection.
func (s *RuleStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
