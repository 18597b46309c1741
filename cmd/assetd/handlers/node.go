package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/cmd/assetd/service"
	"github.com/xilian/asset-registry/common/logger"
)

// NodeHandler handles asset-node CRUD and tree queries
type NodeHandler struct {
	hierarchy *service.Hierarchy
	log       *logger.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(hierarchy *service.Hierarchy, log *logger.Logger) *NodeHandler {
	return &NodeHandler{
		hierarchy: hierarchy,
		log:       log,
	}
}

// CreateNode inserts a new node under its chosen parent. The code is
// either supplied explicitly or generated by naming a rule.
// POST /api/v1/nodes
func (h *NodeHandler) CreateNode(c echo.Context) error {
	input := &service.CreateNodeInput{}
	if err := c.Bind(input); err != nil {
		return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed request"))
	}

	node, err := h.hierarchy.CreateNode(c.Request().Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, node)
}

// GetNode retrieves a single node
// GET /api/v1/nodes/:id
func (h *NodeHandler) GetNode(c echo.Context) error {
	nodeID, err := parseNodeID(c)
	if err != nil {
		return respondError(c, err)
	}

	node, err := h.hierarchy.GetNode(c.Request().Context(), nodeID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, node)
}

// UpdateNode applies a partial update to the mutable fields
// PATCH /api/v1/nodes/:id
func (h *NodeHandler) UpdateNode(c echo.Context) error {
	nodeID, err := parseNodeID(c)
	if err != nil {
		return respondError(c, err)
	}

	input := &service.UpdateNodeInput{}
	if err := c.Bind(input); err != nil {
		return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed request"))
	}

	node, err := h.hierarchy.UpdateNode(c.Request().Context(), nodeID, input)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, node)
}

// DeleteNode removes a leaf node
// DELETE /api/v1/nodes/:id
func (h *NodeHandler) DeleteNode(c echo.Context) error {
	nodeID, err := parseNodeID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.hierarchy.DeleteNode(c.Request().Context(), nodeID); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListNodes queries the tree by level or by immediate parent.
// GET /api/v1/nodes?level=2
// GET /api/v1/nodes?parent_id=<uuid>
// GET /api/v1/nodes?parent_id=root
func (h *NodeHandler) ListNodes(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		nodes []*models.AssetNode
		err   error
	)

	switch {
	case c.QueryParam("parent_id") == "root":
		nodes, err = h.hierarchy.GetRoots(ctx)

	case c.QueryParam("parent_id") != "":
		parentID, parseErr := uuid.Parse(c.QueryParam("parent_id"))
		if parseErr != nil {
			return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, parseErr,
				"invalid parent_id"))
		}
		nodes, err = h.hierarchy.GetByParent(ctx, parentID)

	case c.QueryParam("level") != "":
		level, parseErr := strconv.Atoi(c.QueryParam("level"))
		if parseErr != nil {
			return respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, parseErr,
				"invalid level"))
		}
		nodes, err = h.hierarchy.GetTree(ctx, level)

	default:
		return respondError(c, apperrors.New(apperrors.KindInvalidInput,
			"either level or parent_id is required"))
	}

	if err != nil {
		return respondError(c, err)
	}

	if nodes == nil {
		nodes = []*models.AssetNode{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"nodes": nodes,
	})
}

func parseNodeID(c echo.Context) (uuid.UUID, error) {
	nodeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid node id")
	}
	return nodeID, nil
}
