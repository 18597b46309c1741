package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/cmd/assetd/service"
	"github.com/xilian/asset-registry/common/logger"
)

// RuleHandler handles code-rule administration
type RuleHandler struct {
	registry *service.RuleRegistry
	resolver *service.CategoryResolver
	log      *logger.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(registry *service.RuleRegistry, resolver *service.CategoryResolver, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		registry: registry,
		resolver: resolver,
		log:      log,
	}
}

// RegisterRule validates and stores a new code rule
// POST /api/v1/rules
func (h *RuleHandler) RegisterRule(c echo.Context) error {
	rule := &models.CodeRule{}
	if err := c.Bind(rule); err != nil {
		return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed request"))
	}

	if err := h.registry.Register(c.Request().Context(), rule); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, rule)
}

// ListRules returns all registered rules
// GET /api/v1/rules
func (h *RuleHandler) ListRules(c echo.Context) error {
	rules, err := h.registry.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	if rules == nil {
		rules = []*models.CodeRule{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"rules": rules,
	})
}

// GetRule returns a single rule by its code
// GET /api/v1/rules/:code
func (h *RuleHandler) GetRule(c echo.Context) error {
	rule, err := h.registry.Resolve(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, rule)
}

// GetVocabulary returns the current token-to-label mapping of a
// dictionary category. Read-only; the dictionary service owns the data.
// GET /api/v1/dictionaries/:category
func (h *RuleHandler) GetVocabulary(c echo.Context) error {
	vocab, err := h.resolver.Vocabulary(c.Request().Context(), c.Param("category"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"category":   c.Param("category"),
		"vocabulary": vocab,
	})
}
