package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/cmd/assetd/service"
	"github.com/xilian/asset-registry/common/logger"
)

// CodeHandler handles code preview and generation requests
type CodeHandler struct {
	generator *service.CodeGenerator
	hierarchy *service.Hierarchy
	log       *logger.Logger
}

// NewCodeHandler creates a new code handler
func NewCodeHandler(generator *service.CodeGenerator, hierarchy *service.Hierarchy, log *logger.Logger) *CodeHandler {
	return &CodeHandler{
		generator: generator,
		hierarchy: hierarchy,
		log:       log,
	}
}

type codeRequest struct {
	RuleCode     string            `json:"rule_code"`
	Inputs       map[string]string `json:"inputs"`
	ParentNodeID *uuid.UUID        `json:"parent_node_id,omitempty"`
}

// PreviewCode computes a candidate code without consuming a sequence value.
// The result is advisory; only a subsequent generate response is
// authoritative.
// POST /api/v1/codes/preview
func (h *CodeHandler) PreviewCode(c echo.Context) error {
	req := &codeRequest{}
	if err := c.Bind(req); err != nil {
		return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed request"))
	}

	parent, err := h.parent(c, req.ParentNodeID)
	if err != nil {
		return respondError(c, err)
	}

	code, err := h.generator.Preview(c.Request().Context(), req.RuleCode, req.Inputs, parent)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"code": code,
	})
}

// GenerateCode allocates the next sequence value and returns the final
// code. Not idempotent: every call consumes a new integer.
// POST /api/v1/codes/generate
func (h *CodeHandler) GenerateCode(c echo.Context) error {
	req := &codeRequest{}
	if err := c.Bind(req); err != nil {
		return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed request"))
	}

	parent, err := h.parent(c, req.ParentNodeID)
	if err != nil {
		return respondError(c, err)
	}

	generated, err := h.generator.Generate(c.Request().Context(), req.RuleCode, req.Inputs, parent)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, generated)
}

// parent loads the optional parent node referenced by a code request
func (h *CodeHandler) parent(c echo.Context, parentID *uuid.UUID) (*models.AssetNode, error) {
	if parentID == nil {
		return nil, nil
	}

	parent, err := h.hierarchy.GetNode(c.Request().Context(), *parentID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNodeNotFound) {
			return nil, apperrors.New(apperrors.KindInvalidParent,
				"parent %s does not exist", *parentID)
		}
		return nil, err
	}

	return parent, nil
}
