package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/logger"
	"github.com/xilian/asset-registry/common/redis"
)

// VocabularyReader reads category vocabularies from the dictionary store.
// Implemented by the common Redis client; vocabularies are hashes keyed
// by category, field = token, value = label.
type VocabularyReader interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// CategoryResolver resolves short category tokens against the external
// dictionary service. Nothing is cached here: vocabularies are edited
// independently of code generation, so every call reflects the
// dictionary's current state.
type CategoryResolver struct {
	vocab     VocabularyReader
	keyPrefix string
	log       *logger.Logger
}

// NewCategoryResolver creates a new category resolver
func NewCategoryResolver(vocab VocabularyReader, keyPrefix string, log *logger.Logger) *CategoryResolver {
	return &CategoryResolver{
		vocab:     vocab,
		keyPrefix: keyPrefix,
		log:       log,
	}
}

// Resolve maps a token to its controlled-vocabulary entry. An unknown
// token is a caller error, not a retryable condition.
func (r *CategoryResolver) Resolve(ctx context.Context, category, token string) (*models.CategoryEntry, error) {
	if category == "" || token == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput,
			"category and token are required")
	}

	label, err := r.vocab.HGet(ctx, r.keyPrefix+category, token)
	if err != nil {
		if errors.Is(err, redis.ErrFieldNotFound) {
			return nil, apperrors.New(apperrors.KindUnknownCategory,
				"token %q not found in category %q", token, category)
		}
		return nil, fmt.Errorf("failed to resolve token %q in category %q: %w", token, category, err)
	}

	return &models.CategoryEntry{
		Category: category,
		Token:    token,
		Label:    label,
	}, nil
}

// Vocabulary returns the full token-to-label mapping of a category.
// Used by list pages to populate their selects.
func (r *CategoryResolver) Vocabulary(ctx context.Context, category string) (map[string]string, error) {
	if category == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "category is required")
	}

	vocab, err := r.vocab.HGetAll(ctx, r.keyPrefix+category)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %q: %w", category, err)
	}

	if len(vocab) == 0 {
		return nil, apperrors.New(apperrors.KindUnknownCategory,
			"category %q has no vocabulary", category)
	}

	return vocab, nil
}
