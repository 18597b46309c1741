package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

// createChain creates one node per level down to depth and returns them
// in level order
func createChain(t *testing.T, h *Hierarchy, depth int) []*models.AssetNode {
	t.Helper()
	ctx := context.Background()

	var nodes []*models.AssetNode
	var parentID *uuid.UUID

	for level := models.LevelDevice; level <= depth; level++ {
		node, err := h.CreateNode(ctx, &CreateNodeInput{
			Code:         codeForLevel(level),
			Name:         "node",
			Level:        level,
			NodeType:     "generic",
			ParentNodeID: parentID,
		})
		require.NoError(t, err)
		nodes = append(nodes, node)
		parentID = &node.NodeID
	}

	return nodes
}

func codeForLevel(level int) string {
	codes := []string{"DEV-01", "MECH-01", "COMP-01", "ASM-01", "PART-01"}
	return codes[level-1]
}

func TestCreateNode_RootInvariants(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	node, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:     "DEV-01",
		Name:     "compressor",
		Level:    models.LevelDevice,
		NodeType: "device",
	})
	require.NoError(t, err)

	assert.Equal(t, node.NodeID, node.RootNodeID)
	assert.Nil(t, node.ParentNodeID)
	assert.Equal(t, "/"+node.NodeID.String()+"/", node.Path)
}

func TestCreateNode_ChildInvariants(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelPart)

	root := nodes[0]
	for i, node := range nodes {
		// Root propagation: every descendant carries the level-1 ancestor
		assert.Equal(t, root.NodeID, node.RootNodeID, "level %d", i+1)

		// Path correctness: parent path followed by own id
		if i == 0 {
			assert.Equal(t, models.RootPath(node.NodeID), node.Path)
		} else {
			assert.Equal(t, nodes[i-1].Path+node.NodeID.String()+"/", node.Path)
		}
	}
}

func TestCreateNode_LevelSkipRejected(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelDevice)

	// level=3 under a level-1 parent skips level 2
	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:         "COMP-01",
		Name:         "gearbox",
		Level:        models.LevelComponent,
		ParentNodeID: &nodes[0].NodeID,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidParent))
}

func TestCreateNode_MissingParentRejected(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	ghost := uuid.New()
	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:         "MECH-01",
		Name:         "drive",
		Level:        models.LevelMechanism,
		ParentNodeID: &ghost,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidParent))
}

func TestCreateNode_ParentOnRootRejected(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelDevice)

	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:         "DEV-02",
		Name:         "pump",
		Level:        models.LevelDevice,
		ParentNodeID: &nodes[0].NodeID,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidParent))
}

func TestCreateNode_ParentRequiredBelowRoot(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:  "MECH-01",
		Name:  "drive",
		Level: models.LevelMechanism,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidParent))
}

func TestCreateNode_DuplicateSiblingCode(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()
	nodes := createChain(t, hierarchy, models.LevelMechanism)

	// Same code under the same parent: rejected
	_, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:         "MECH-01",
		Name:         "drive copy",
		Level:        models.LevelMechanism,
		ParentNodeID: &nodes[0].NodeID,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindDuplicateCode))

	// Same code under a different parent: fine
	other, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:  "DEV-02",
		Name:  "pump",
		Level: models.LevelDevice,
	})
	require.NoError(t, err)

	_, err = hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:         "MECH-01",
		Name:         "drive",
		Level:        models.LevelMechanism,
		ParentNodeID: &other.NodeID,
	})
	assert.NoError(t, err)
}

func TestCreateNode_GeneratedCode(t *testing.T) {
	hierarchy, _, _, _, rules, vocab := newTestEngine()
	seedDeviceRule(t, rules, vocab)

	node, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		RuleCode: "DEVICE_CODE",
		Inputs:   deviceInputs(),
		Name:     "compressor",
		Level:    models.LevelDevice,
		NodeType: "device",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mgj-XC001", node.Code)
}

func TestCreateNode_GeneratedCodeForfeitedOnInsertFailure(t *testing.T) {
	hierarchy, _, _, counters, rules, vocab := newTestEngine()
	seedDeviceRule(t, rules, vocab)
	ctx := context.Background()

	first, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		RuleCode: "DEVICE_CODE",
		Inputs:   deviceInputs(),
		Name:     "compressor",
		Level:    models.LevelDevice,
	})
	require.NoError(t, err)
	require.Equal(t, "Mgj-XC001", first.Code)

	// Force a collision: a sibling already holds the next generated code.
	// The insert fails and the allocated value is forfeited, not recycled.
	_, err = hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:  "Mgj-XC002",
		Name:  "squatter",
		Level: models.LevelDevice,
	})
	require.NoError(t, err)

	_, err = hierarchy.CreateNode(ctx, &CreateNodeInput{
		RuleCode: "DEVICE_CODE",
		Inputs:   deviceInputs(),
		Name:     "collider",
		Level:    models.LevelDevice,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindDuplicateCode))

	// Counter moved past the forfeited value
	current, err := counters.Current(ctx, "MgjXC")
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)

	// The next commit skips the forfeited integer
	next, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		RuleCode: "DEVICE_CODE",
		Inputs:   deviceInputs(),
		Name:     "third",
		Level:    models.LevelDevice,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mgj-XC003", next.Code)
}

func TestCreateNode_CodeAndRuleMutuallyExclusive(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:     "DEV-01",
		RuleCode: "DEVICE_CODE",
		Name:     "compressor",
		Level:    models.LevelDevice,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))

	_, err = hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Name:  "compressor",
		Level: models.LevelDevice,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestCreateNode_InvalidAttributes(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	_, err := hierarchy.CreateNode(context.Background(), &CreateNodeInput{
		Code:  "DEV-01",
		Name:  "compressor",
		Level: models.LevelDevice,
		Attributes: map[string]any{
			"nested": map[string]any{"not": "allowed"},
		},
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestUpdateNode_MutableFields(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelDevice)

	updated, err := hierarchy.UpdateNode(context.Background(), nodes[0].NodeID, &UpdateNodeInput{
		Name:     strptr("renamed"),
		Location: strptr("hall 3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "hall 3", *updated.Location)

	// Identity fields untouched
	assert.Equal(t, nodes[0].Code, updated.Code)
	assert.Equal(t, nodes[0].Path, updated.Path)
}

func TestUpdateNode_ImmutableFieldsRejected(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelMechanism)
	ctx := context.Background()

	_, err := hierarchy.UpdateNode(ctx, nodes[1].NodeID, &UpdateNodeInput{
		Code: strptr("MECH-99"),
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindImmutableFieldChange))

	_, err = hierarchy.UpdateNode(ctx, nodes[1].NodeID, &UpdateNodeInput{
		Level: intptr(3),
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindImmutableFieldChange))

	otherParent := nodes[0].NodeID
	_, err = hierarchy.UpdateNode(ctx, nodes[1].NodeID, &UpdateNodeInput{
		ParentNodeID: &otherParent,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindImmutableFieldChange))
}

func TestUpdateNode_AttributesMergePatch(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()

	node, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:  "DEV-01",
		Name:  "compressor",
		Level: models.LevelDevice,
		Attributes: map[string]any{
			"vendor":   "acme",
			"capacity": float64(10),
		},
	})
	require.NoError(t, err)

	// null removes, new keys add, existing keys overwrite
	updated, err := hierarchy.UpdateNode(ctx, node.NodeID, &UpdateNodeInput{
		Attributes: json.RawMessage(`{"vendor":null,"capacity":20,"color":"red"}`),
	})
	require.NoError(t, err)

	assert.NotContains(t, updated.Attributes, "vendor")
	assert.Equal(t, float64(20), updated.Attributes["capacity"])
	assert.Equal(t, "red", updated.Attributes["color"])
}

func TestUpdateNode_BadAttributesPatch(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	nodes := createChain(t, hierarchy, models.LevelDevice)

	_, err := hierarchy.UpdateNode(context.Background(), nodes[0].NodeID, &UpdateNodeInput{
		Attributes: json.RawMessage(`{"nested":{"not":"allowed"}}`),
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestUpdateNode_NotFound(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	_, err := hierarchy.UpdateNode(context.Background(), uuid.New(), &UpdateNodeInput{
		Name: strptr("ghost"),
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNodeNotFound))
}

func TestDeleteNode_GuardedThenAllowed(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()
	nodes := createChain(t, hierarchy, models.LevelAssembly)

	component, assembly := nodes[2], nodes[3]

	// The level-3 node still has a level-4 child
	err := hierarchy.DeleteNode(ctx, component.NodeID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindHasChildren))

	// Delete bottom-up
	require.NoError(t, hierarchy.DeleteNode(ctx, assembly.NodeID))
	require.NoError(t, hierarchy.DeleteNode(ctx, component.NodeID))

	_, err = hierarchy.GetNode(ctx, component.NodeID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNodeNotFound))
}

func TestDeleteNode_NotFound(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()

	err := hierarchy.DeleteNode(context.Background(), uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNodeNotFound))
}

func TestGetTree_FiltersByLevel(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()
	createChain(t, hierarchy, models.LevelComponent)

	_, err := hierarchy.CreateNode(ctx, &CreateNodeInput{
		Code:  "DEV-02",
		Name:  "pump",
		Level: models.LevelDevice,
	})
	require.NoError(t, err)

	devices, err := hierarchy.GetTree(ctx, models.LevelDevice)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	components, err := hierarchy.GetTree(ctx, models.LevelComponent)
	require.NoError(t, err)
	assert.Len(t, components, 1)

	_, err = hierarchy.GetTree(ctx, 9)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestGetByParent_ReturnsDirectChildren(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()
	nodes := createChain(t, hierarchy, models.LevelComponent)

	children, err := hierarchy.GetByParent(ctx, nodes[0].NodeID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, nodes[1].NodeID, children[0].NodeID)

	// Grandchildren are not included
	assert.NotEqual(t, nodes[2].NodeID, children[0].NodeID)

	_, err = hierarchy.GetByParent(ctx, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNodeNotFound))
}

func TestGetRoots(t *testing.T) {
	hierarchy, _, _, _, _, _ := newTestEngine()
	ctx := context.Background()
	createChain(t, hierarchy, models.LevelMechanism)

	roots, err := hierarchy.GetRoots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, models.LevelDevice, roots[0].Level)
}
