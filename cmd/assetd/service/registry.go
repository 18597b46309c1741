package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/cache"
	"github.com/xilian/asset-registry/common/logger"
)

// RuleStore is the persistence surface the registry needs
type RuleStore interface {
	Insert(ctx context.Context, rule *models.CodeRule) error
	GetByCode(ctx context.Context, ruleCode string) (*models.CodeRule, error)
	List(ctx context.Context) ([]*models.CodeRule, error)
}

// RuleRegistry stores and resolves code-generation templates. Rules are
// validated once at registration; at generation time they are read-only
// pure data. Resolved rules are cached read-through since templates are
// configuration data edited rarely.
type RuleRegistry struct {
	store    RuleStore
	cache    cache.Cache
	cacheTTL time.Duration
	guards   *GuardEvaluator
	log      *logger.Logger
}

// NewRuleRegistry creates a new rule registry. cache may be nil to
// disable caching.
func NewRuleRegistry(store RuleStore, c cache.Cache, cacheTTL time.Duration, guards *GuardEvaluator, log *logger.Logger) *RuleRegistry {
	return &RuleRegistry{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
		guards:   guards,
		log:      log,
	}
}

// Register validates and stores a new rule
func (r *RuleRegistry) Register(ctx context.Context, rule *models.CodeRule) error {
	if err := r.validate(rule); err != nil {
		return err
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := r.store.Insert(ctx, rule); err != nil {
		return fmt.Errorf("failed to register rule: %w", err)
	}

	r.log.Info("registered rule",
		"rule_code", rule.RuleCode,
		"level", rule.Level,
		"segments", len(rule.Segments),
	)

	return nil
}

// Resolve returns the rule for a rule code
func (r *RuleRegistry) Resolve(ctx context.Context, ruleCode string) (*models.CodeRule, error) {
	cacheKey := "rule:" + ruleCode

	if r.cache != nil {
		if data, hit, err := r.cache.Get(ctx, cacheKey); err == nil && hit {
			rule := &models.CodeRule{}
			if err := json.Unmarshal(data, rule); err == nil {
				return rule, nil
			}
			// Corrupt entry; fall through to the store
			r.cache.Delete(ctx, cacheKey)
		}
	}

	rule, err := r.store.GetByCode(ctx, ruleCode)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(rule); err == nil {
			r.cache.Set(ctx, cacheKey, data, r.cacheTTL)
		}
	}

	return rule, nil
}

// List returns all registered rules
func (r *RuleRegistry) List(ctx context.Context) ([]*models.CodeRule, error) {
	return r.store.List(ctx)
}

// validate checks the rule definition exhaustively. Generation never
// re-validates; a stored rule is trusted.
func (r *RuleRegistry) validate(rule *models.CodeRule) error {
	if rule.RuleCode == "" {
		return apperrors.New(apperrors.KindInvalidRuleDefinition, "rule code is required")
	}

	if err := models.ValidateLevel(rule.Level); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidRuleDefinition, err,
			"rule %q has invalid level", rule.RuleCode)
	}

	if len(rule.Segments) == 0 {
		return apperrors.New(apperrors.KindInvalidRuleDefinition,
			"rule %q has no segments", rule.RuleCode)
	}

	sequences := 0
	for i, seg := range rule.Segments {
		switch seg.Kind {
		case models.SegmentLiteral:
			if seg.Value == "" {
				return apperrors.New(apperrors.KindInvalidRuleDefinition,
					"rule %q segment %d: literal value must not be empty", rule.RuleCode, i)
			}
		case models.SegmentCategoryRef:
			if seg.DictionaryCategory == "" {
				return apperrors.New(apperrors.KindInvalidRuleDefinition,
					"rule %q segment %d: dictionary category is required", rule.RuleCode, i)
			}
		case models.SegmentParentCode:
			// A level-1 code has no parent to reference
			if rule.Level == models.LevelDevice {
				return apperrors.New(apperrors.KindInvalidRuleDefinition,
					"rule %q segment %d: parent_code segment on a level-1 rule", rule.RuleCode, i)
			}
		case models.SegmentSequence:
			sequences++
			if seg.PadWidth < 1 {
				return apperrors.New(apperrors.KindInvalidRuleDefinition,
					"rule %q segment %d: pad width must be >= 1", rule.RuleCode, i)
			}
		default:
			return apperrors.New(apperrors.KindInvalidRuleDefinition,
				"rule %q segment %d: unknown segment kind %q", rule.RuleCode, i, seg.Kind)
		}
	}

	if sequences != 1 {
		return apperrors.New(apperrors.KindInvalidRuleDefinition,
			"rule %q must have exactly one sequence segment, got %d", rule.RuleCode, sequences)
	}

	if err := r.guards.Compile(rule.Guard); err != nil {
		if apperrors.KindOf(err) != "" {
			return err
		}
		return apperrors.Wrap(apperrors.KindInvalidRuleDefinition, err,
			"rule %q guard rejected", rule.RuleCode)
	}

	return nil
}
