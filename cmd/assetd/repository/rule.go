package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/db"
)

// RuleRepository handles database operations for code rules
type RuleRepository struct {
	db *db.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *db.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Insert stores a new rule; segments are persisted as JSONB
func (r *RuleRepository) Insert(ctx context.Context, rule *models.CodeRule) error {
	segments, err := json.Marshal(rule.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
		INSERT INTO code_rule (rule_code, name, level, guard, segments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Exec(ctx, query,
		rule.RuleCode,
		rule.Name,
		rule.Level,
		rule.Guard,
		segments,
		rule.CreatedAt,
		rule.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.KindInvalidRuleDefinition, err,
				"rule %q already registered", rule.RuleCode)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// GetByCode retrieves a rule by its unique key
func (r *RuleRepository) GetByCode(ctx context.Context, ruleCode string) (*models.CodeRule, error) {
	query := `
		SELECT rule_code, name, level, guard, segments, created_at, updated_at
		FROM code_rule
		WHERE rule_code = $1
	`

	rule := &models.CodeRule{}
	var segments []byte

	err := r.db.QueryRow(ctx, query, ruleCode).Scan(
		&rule.RuleCode,
		&rule.Name,
		&rule.Level,
		&rule.Guard,
		&segments,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindRuleNotFound, "rule %q not found", ruleCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	if err := json.Unmarshal(segments, &rule.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments for rule %q: %w", ruleCode, err)
	}

	return rule, nil
}

// List retrieves all registered rules, ordered by rule code
func (r *RuleRepository) List(ctx context.Context) ([]*models.CodeRule, error) {
	query := `
		SELECT rule_code, name, level, guard, segments, created_at, updated_at
		FROM code_rule
		ORDER BY rule_code
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.CodeRule

	for rows.Next() {
		rule := &models.CodeRule{}
		var segments []byte

		err := rows.Scan(
			&rule.RuleCode,
			&rule.Name,
			&rule.Level,
			&rule.Guard,
			&segments,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		if err := json.Unmarshal(segments, &rule.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments for rule %q: %w", rule.RuleCode, err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	return rules, nil
}
