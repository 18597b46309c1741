package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Hierarchy levels. Every node sits at exactly one of the five levels;
// a child is always exactly one level below its parent.
const (
	LevelDevice    = 1
	LevelMechanism = 2
	LevelComponent = 3
	LevelAssembly  = 4
	LevelPart      = 5

	MinLevel = LevelDevice
	MaxLevel = LevelPart
)

// PathSeparator delimits node IDs inside a path string
const PathSeparator = "/"

// AssetNode represents one entry in the asset hierarchy
// Maps to: asset_node table
type AssetNode struct {
	// Process-unique node ID
	NodeID uuid.UUID `db:"node_id" json:"node_id"`

	// Generated or user-supplied identifier, unique among siblings
	Code string `db:"code" json:"code"`

	Name     string `db:"name" json:"name"`
	Level    int    `db:"level" json:"level"`
	NodeType string `db:"node_type" json:"node_type"`

	// Nil only for level-1 nodes
	ParentNodeID *uuid.UUID `db:"parent_node_id" json:"parent_node_id,omitempty"`

	// The level-1 ancestor; equals NodeID for level-1 nodes
	RootNodeID uuid.UUID `db:"root_node_id" json:"root_node_id"`

	// Slash-delimited ancestor chain from root to this node,
	// e.g. "/<root-id>/<parent-id>/<node-id>/"
	Path string `db:"path" json:"path"`

	SerialNumber *string `db:"serial_number" json:"serial_number,omitempty"`
	Location     *string `db:"location" json:"location,omitempty"`
	Department   *string `db:"department" json:"department,omitempty"`

	// User-extensible fields (JSONB); string keys, scalar values only
	Attributes map[string]any `db:"attributes" json:"attributes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsRoot reports whether the node is a level-1 node
func (n *AssetNode) IsRoot() bool {
	return n.Level == LevelDevice
}

// ChildPath returns the path a direct child of this node must carry
func (n *AssetNode) ChildPath(childID uuid.UUID) string {
	return n.Path + childID.String() + PathSeparator
}

// RootPath returns the path of a level-1 node
func RootPath(nodeID uuid.UUID) string {
	return PathSeparator + nodeID.String() + PathSeparator
}

// ValidateLevel checks that a level is within the fixed hierarchy depth
func ValidateLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return fmt.Errorf("level must be between %d and %d, got %d", MinLevel, MaxLevel, level)
	}
	return nil
}

// ValidateAttributes checks the open attribute bag: keys must be
// non-empty and values must be scalar (string, number or bool).
// Custom columns are end-user-defined, so only the shape is checked.
func ValidateAttributes(attrs map[string]any) error {
	for key, value := range attrs {
		if key == "" {
			return fmt.Errorf("attribute key must not be empty")
		}
		switch value.(type) {
		case string, bool, float64, int, int32, int64:
			// ok
		case nil:
			return fmt.Errorf("attribute %q must not be null", key)
		default:
			return fmt.Errorf("attribute %q has unsupported value type %T", key, value)
		}
	}
	return nil
}
