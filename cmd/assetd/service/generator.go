package service

import (
	"context"

	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/logger"
)

// CodeGenerator turns a rule plus caller inputs into identifier strings.
// Preview reads the allocator without mutating it; Generate reserves a
// sequence value. The preview result is a best-effort hint only - a
// concurrent allocation may shift the committed value, and callers must
// treat the Generate response as authoritative.
type CodeGenerator struct {
	registry  *RuleRegistry
	resolver  *CategoryResolver
	allocator *SequenceAllocator
	guards    *GuardEvaluator
	log       *logger.Logger
}

// NewCodeGenerator creates a new code generator
func NewCodeGenerator(
	registry *RuleRegistry,
	resolver *CategoryResolver,
	allocator *SequenceAllocator,
	guards *GuardEvaluator,
	log *logger.Logger,
) *CodeGenerator {
	return &CodeGenerator{
		registry:  registry,
		resolver:  resolver,
		allocator: allocator,
		guards:    guards,
		log:       log,
	}
}

// GeneratedCode is the authoritative result of a committed generation
type GeneratedCode struct {
	Code          string `json:"code"`
	SequenceValue int64  `json:"sequence_value"`
	Scope         string `json:"-"`
}

// Preview computes the candidate code for the given inputs without
// mutating allocator state
func (g *CodeGenerator) Preview(ctx context.Context, ruleCode string, inputs map[string]string, parent *models.AssetNode) (string, error) {
	rule, parts, err := g.resolve(ctx, ruleCode, inputs, parent)
	if err != nil {
		return "", err
	}

	next, err := g.allocator.PeekNext(ctx, scopeFor(rule, parts))
	if err != nil {
		return "", err
	}

	return Assemble(parts, next), nil
}

// Generate allocates the next sequence value for the derived scope and
// returns the final code. Each call consumes a new integer, even for
// identical inputs; callers must not retry blindly.
func (g *CodeGenerator) Generate(ctx context.Context, ruleCode string, inputs map[string]string, parent *models.AssetNode) (*GeneratedCode, error) {
	rule, parts, err := g.resolve(ctx, ruleCode, inputs, parent)
	if err != nil {
		return nil, err
	}

	scope := scopeFor(rule, parts)
	value, err := g.allocator.Allocate(ctx, scope)
	if err != nil {
		return nil, err
	}

	code := Assemble(parts, value)

	g.log.Info("generated code",
		"rule_code", rule.RuleCode,
		"scope", scope,
		"sequence_value", value,
		"code", code,
	)

	return &GeneratedCode{
		Code:          code,
		SequenceValue: value,
		Scope:         scope,
	}, nil
}

// Forfeit logs an allocated value whose owning commit failed. The value
// stays consumed.
func (g *CodeGenerator) Forfeit(generated *GeneratedCode, cause error) {
	g.allocator.Forfeit(generated.Scope, generated.SequenceValue, cause)
}

// scopeFor returns the allocation scope for a resolved rule. A pure
// running counter has an empty prefix; its counter is local to the rule.
func scopeFor(rule *models.CodeRule, parts *ResolvedParts) string {
	if scope := parts.Scope(); scope != "" {
		return scope
	}
	return rule.RuleCode
}

// resolve loads the rule, checks its guard, and resolves every segment
// against the caller's inputs and the parent node
func (g *CodeGenerator) resolve(ctx context.Context, ruleCode string, inputs map[string]string, parent *models.AssetNode) (*models.CodeRule, *ResolvedParts, error) {
	rule, err := g.registry.Resolve(ctx, ruleCode)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := g.guards.Evaluate(rule.Guard, inputs, rule.Level)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, apperrors.New(apperrors.KindGuardRejected,
			"rule %q guard rejected the given inputs", rule.RuleCode)
	}

	if rule.HasParentRef() && parent == nil {
		return nil, nil, apperrors.New(apperrors.KindInvalidParent,
			"rule %q references the parent code but no parent was given", rule.RuleCode)
	}

	parts := &ResolvedParts{
		Parts:         make([]string, len(rule.Segments)),
		SequenceIndex: -1,
	}

	for i, seg := range rule.Segments {
		switch seg.Kind {
		case models.SegmentLiteral:
			parts.Parts[i] = seg.Value

		case models.SegmentCategoryRef:
			token, ok := inputs[seg.DictionaryCategory]
			if !ok || token == "" {
				return nil, nil, apperrors.New(apperrors.KindInvalidInput,
					"rule %q requires an input for category %q", rule.RuleCode, seg.DictionaryCategory)
			}
			entry, err := g.resolver.Resolve(ctx, seg.DictionaryCategory, token)
			if err != nil {
				return nil, nil, err
			}
			parts.Parts[i] = entry.Label

		case models.SegmentParentCode:
			parts.Parts[i] = parent.Code

		case models.SegmentSequence:
			parts.SequenceIndex = i
			parts.PadWidth = seg.PadWidth
		}
	}

	return rule, parts, nil
}
