package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/logger"
)

// NodeStore is the persistence surface the hierarchy needs. Insert must
// enforce sibling code uniqueness at the storage layer (unique index),
// and Delete must refuse nodes that still have children; pushing both
// checks into single statements closes the check-then-act races.
type NodeStore interface {
	Insert(ctx context.Context, node *models.AssetNode) error
	GetByID(ctx context.Context, nodeID uuid.UUID) (*models.AssetNode, error)
	Update(ctx context.Context, node *models.AssetNode) error
	Delete(ctx context.Context, nodeID uuid.UUID) error
	HasChildren(ctx context.Context, nodeID uuid.UUID) (bool, error)
	ListByLevel(ctx context.Context, level int) ([]*models.AssetNode, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.AssetNode, error)
	ListRoots(ctx context.Context) ([]*models.AssetNode, error)
}

// Hierarchy maintains the 5-level asset tree: level progression, sibling
// code uniqueness, path strings and root propagation.
type Hierarchy struct {
	store     NodeStore
	generator *CodeGenerator
	log       *logger.Logger
}

// NewHierarchy creates a new hierarchy service
func NewHierarchy(store NodeStore, generator *CodeGenerator, log *logger.Logger) *Hierarchy {
	return &Hierarchy{
		store:     store,
		generator: generator,
		log:       log,
	}
}

// CreateNodeInput carries the fields for node creation. Either Code or
// RuleCode must be set: an explicit code is used verbatim, a rule code
// commits a generation (allocate + assemble) for the new node.
type CreateNodeInput struct {
	Code     string            `json:"code,omitempty"`
	RuleCode string            `json:"rule_code,omitempty"`
	Inputs   map[string]string `json:"inputs,omitempty"`

	Name         string         `json:"name"`
	Level        int            `json:"level"`
	NodeType     string         `json:"node_type"`
	ParentNodeID *uuid.UUID     `json:"parent_node_id,omitempty"`
	SerialNumber *string        `json:"serial_number,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Department   *string        `json:"department,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// UpdateNodeInput carries the mutable fields for a partial update. The
// attributes patch is an RFC 7386 merge patch: null removes a key.
// Code, Level and ParentNodeID are immutable; their presence is rejected.
type UpdateNodeInput struct {
	Name         *string         `json:"name,omitempty"`
	SerialNumber *string         `json:"serial_number,omitempty"`
	Location     *string         `json:"location,omitempty"`
	Department   *string         `json:"department,omitempty"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`

	Code         *string    `json:"code,omitempty"`
	Level        *int       `json:"level,omitempty"`
	ParentNodeID *uuid.UUID `json:"parent_node_id,omitempty"`
}

// CreateNode validates the tree invariants and inserts a new node.
// Fails with InvalidParent when the declared parent is missing or not
// exactly one level above, and DuplicateCode when the code collides with
// a sibling.
func (h *Hierarchy) CreateNode(ctx context.Context, input *CreateNodeInput) (*models.AssetNode, error) {
	if err := models.ValidateLevel(input.Level); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid node level")
	}

	if input.Name == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "node name is required")
	}

	if err := models.ValidateAttributes(input.Attributes); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid attributes")
	}

	parent, err := h.resolveParent(ctx, input)
	if err != nil {
		return nil, err
	}

	code := input.Code
	var generated *GeneratedCode

	switch {
	case code != "" && input.RuleCode != "":
		return nil, apperrors.New(apperrors.KindInvalidInput,
			"code and rule_code are mutually exclusive")
	case code == "" && input.RuleCode == "":
		return nil, apperrors.New(apperrors.KindInvalidInput,
			"either code or rule_code is required")
	case input.RuleCode != "":
		generated, err = h.generator.Generate(ctx, input.RuleCode, input.Inputs, parent)
		if err != nil {
			return nil, err
		}
		code = generated.Code
	}

	nodeID := uuid.New()
	now := time.Now()

	node := &models.AssetNode{
		NodeID:       nodeID,
		Code:         code,
		Name:         input.Name,
		Level:        input.Level,
		NodeType:     input.NodeType,
		ParentNodeID: input.ParentNodeID,
		SerialNumber: input.SerialNumber,
		Location:     input.Location,
		Department:   input.Department,
		Attributes:   input.Attributes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if parent == nil {
		node.RootNodeID = nodeID
		node.Path = models.RootPath(nodeID)
	} else {
		node.RootNodeID = parent.RootNodeID
		node.Path = parent.ChildPath(nodeID)
	}

	if err := h.store.Insert(ctx, node); err != nil {
		if generated != nil {
			// The sequence value stays consumed; operators audit the gap
			h.generator.Forfeit(generated, err)
		}
		return nil, err
	}

	h.log.Info("created node",
		"node_id", node.NodeID,
		"code", node.Code,
		"level", node.Level,
		"parent_node_id", input.ParentNodeID,
	)

	return node, nil
}

// UpdateNode mutates the mutable attributes of a node. Attempts to change
// code, level or parent fail with ImmutableFieldChange; re-parenting
// would require re-deriving path and root for an entire subtree, which
// this engine does not do.
func (h *Hierarchy) UpdateNode(ctx context.Context, nodeID uuid.UUID, input *UpdateNodeInput) (*models.AssetNode, error) {
	if input.Code != nil || input.Level != nil || input.ParentNodeID != nil {
		return nil, apperrors.New(apperrors.KindImmutableFieldChange,
			"code, level and parent_node_id cannot change after creation")
	}

	node, err := h.store.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.New(apperrors.KindInvalidInput, "node name must not be empty")
		}
		node.Name = *input.Name
	}
	if input.SerialNumber != nil {
		node.SerialNumber = input.SerialNumber
	}
	if input.Location != nil {
		node.Location = input.Location
	}
	if input.Department != nil {
		node.Department = input.Department
	}

	if len(input.Attributes) > 0 {
		merged, err := mergeAttributes(node.Attributes, input.Attributes)
		if err != nil {
			return nil, err
		}
		node.Attributes = merged
	}

	node.UpdatedAt = time.Now()

	if err := h.store.Update(ctx, node); err != nil {
		return nil, err
	}

	h.log.Info("updated node", "node_id", node.NodeID, "code", node.Code)

	return node, nil
}

// DeleteNode removes a leaf node. Fails with HasChildren while any node
// references it as parent; there is no cascade by design.
func (h *Hierarchy) DeleteNode(ctx context.Context, nodeID uuid.UUID) error {
	if err := h.store.Delete(ctx, nodeID); err != nil {
		return err
	}

	h.log.Info("deleted node", "node_id", nodeID)
	return nil
}

// GetNode retrieves a single node
func (h *Hierarchy) GetNode(ctx context.Context, nodeID uuid.UUID) (*models.AssetNode, error) {
	return h.store.GetByID(ctx, nodeID)
}

// GetTree returns all nodes at the given level
func (h *Hierarchy) GetTree(ctx context.Context, level int) ([]*models.AssetNode, error) {
	if err := models.ValidateLevel(level); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid tree level")
	}
	return h.store.ListByLevel(ctx, level)
}

// GetByParent returns the direct children of a node
func (h *Hierarchy) GetByParent(ctx context.Context, parentID uuid.UUID) ([]*models.AssetNode, error) {
	if _, err := h.store.GetByID(ctx, parentID); err != nil {
		return nil, err
	}
	return h.store.ListByParent(ctx, parentID)
}

// GetRoots returns all level-1 nodes
func (h *Hierarchy) GetRoots(ctx context.Context) ([]*models.AssetNode, error) {
	return h.store.ListRoots(ctx)
}

// resolveParent loads and validates the declared parent: a level-1 node
// must have none, every other level needs a parent exactly one level up.
func (h *Hierarchy) resolveParent(ctx context.Context, input *CreateNodeInput) (*models.AssetNode, error) {
	if input.Level == models.LevelDevice {
		if input.ParentNodeID != nil {
			return nil, apperrors.New(apperrors.KindInvalidParent,
				"level-1 nodes cannot declare a parent")
		}
		return nil, nil
	}

	if input.ParentNodeID == nil {
		return nil, apperrors.New(apperrors.KindInvalidParent,
			"level-%d nodes require a parent", input.Level)
	}

	parent, err := h.store.GetByID(ctx, *input.ParentNodeID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNodeNotFound) {
			return nil, apperrors.New(apperrors.KindInvalidParent,
				"parent %s does not exist", *input.ParentNodeID)
		}
		return nil, err
	}

	if parent.Level+1 != input.Level {
		return nil, apperrors.New(apperrors.KindInvalidParent,
			"parent %s is level %d; a level-%d child needs a level-%d parent",
			parent.NodeID, parent.Level, input.Level, input.Level-1)
	}

	return parent, nil
}

// mergeAttributes applies an RFC 7386 merge patch to the attribute bag
// and re-validates the result
func mergeAttributes(current map[string]any, patch json.RawMessage) (map[string]any, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if current == nil {
		currentJSON = []byte(`{}`)
	}

	mergedJSON, err := jsonpatch.MergePatch(currentJSON, patch)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err,
			"invalid attributes patch")
	}

	var merged map[string]any
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err,
			"attributes patch must produce an object")
	}

	if err := models.ValidateAttributes(merged); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid attributes")
	}

	return merged, nil
}
