package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/db"
)

// NodeRepository handles database operations for asset nodes.
//
// Sibling code uniqueness is enforced by the storage layer, not in
// application logic, so two concurrent inserts under the same parent can
// never both pass a check-then-act window:
//
//	CREATE UNIQUE INDEX asset_node_sibling_code_key
//	    ON asset_node (parent_node_id, code) WHERE parent_node_id IS NOT NULL;
//	CREATE UNIQUE INDEX asset_node_root_code_key
//	    ON asset_node (code) WHERE parent_node_id IS NULL;
type NodeRepository struct {
	db *db.DB
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(db *db.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

const nodeColumns = `
	node_id, code, name, level, node_type, parent_node_id, root_node_id,
	path, serial_number, location, department, attributes, created_at, updated_at
`

// Insert stores a new node. A unique-index violation on the sibling code
// surfaces as a DuplicateCode error.
func (r *NodeRepository) Insert(ctx context.Context, node *models.AssetNode) error {
	query := `
		INSERT INTO asset_node (
			node_id, code, name, level, node_type, parent_node_id, root_node_id,
			path, serial_number, location, department, attributes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		node.NodeID,
		node.Code,
		node.Name,
		node.Level,
		node.NodeType,
		node.ParentNodeID,
		node.RootNodeID,
		node.Path,
		node.SerialNumber,
		node.Location,
		node.Department,
		node.Attributes,
		node.CreatedAt,
		node.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.KindDuplicateCode, err,
				"code %q already used by a sibling", node.Code)
		}
		return fmt.Errorf("failed to insert node: %w", err)
	}

	return nil
}

// GetByID retrieves a node by its ID
func (r *NodeRepository) GetByID(ctx context.Context, nodeID uuid.UUID) (*models.AssetNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM asset_node WHERE node_id = $1`

	node := &models.AssetNode{}
	err := r.db.QueryRow(ctx, query, nodeID).Scan(
		&node.NodeID,
		&node.Code,
		&node.Name,
		&node.Level,
		&node.NodeType,
		&node.ParentNodeID,
		&node.RootNodeID,
		&node.Path,
		&node.SerialNumber,
		&node.Location,
		&node.Department,
		&node.Attributes,
		&node.CreatedAt,
		&node.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNodeNotFound, "node %s not found", nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

// Update persists the mutable attributes of a node
func (r *NodeRepository) Update(ctx context.Context, node *models.AssetNode) error {
	query := `
		UPDATE asset_node
		SET name = $2, serial_number = $3, location = $4, department = $5,
		    attributes = $6, updated_at = $7
		WHERE node_id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		node.NodeID,
		node.Name,
		node.SerialNumber,
		node.Location,
		node.Department,
		node.Attributes,
		node.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNodeNotFound, "node %s not found", node.NodeID)
	}

	return nil
}

// Delete removes a node if and only if no child references it. The child
// check and the delete run as one statement so a concurrent child insert
// cannot slip between them.
func (r *NodeRepository) Delete(ctx context.Context, nodeID uuid.UUID) error {
	query := `
		DELETE FROM asset_node
		WHERE node_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM asset_node c WHERE c.parent_node_id = $1
		  )
	`

	tag, err := r.db.Exec(ctx, query, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish missing node from guarded node
		hasChildren, err := r.HasChildren(ctx, nodeID)
		if err != nil {
			return err
		}
		if hasChildren {
			return apperrors.New(apperrors.KindHasChildren,
				"node %s still has children", nodeID)
		}
		return apperrors.New(apperrors.KindNodeNotFound, "node %s not found", nodeID)
	}

	return nil
}

// HasChildren reports whether any node references the given node as parent
func (r *NodeRepository) HasChildren(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM asset_node WHERE parent_node_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, nodeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check children: %w", err)
	}

	return exists, nil
}

// ListByLevel retrieves all nodes at the given level, ordered by code
func (r *NodeRepository) ListByLevel(ctx context.Context, level int) ([]*models.AssetNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM asset_node WHERE level = $1 ORDER BY code`

	rows, err := r.db.Query(ctx, query, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes by level: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// ListByParent retrieves the direct children of a node, ordered by code
func (r *NodeRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.AssetNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM asset_node WHERE parent_node_id = $1 ORDER BY code`

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes by parent: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// ListRoots retrieves all level-1 nodes, ordered by code
func (r *NodeRepository) ListRoots(ctx context.Context) ([]*models.AssetNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM asset_node WHERE parent_node_id IS NULL ORDER BY code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list root nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

func scanNodes(rows pgx.Rows) ([]*models.AssetNode, error) {
	var nodes []*models.AssetNode

	for rows.Next() {
		node := &models.AssetNode{}
		err := rows.Scan(
			&node.NodeID,
			&node.Code,
			&node.Name,
			&node.Level,
			&node.NodeType,
			&node.ParentNodeID,
			&node.RootNodeID,
			&node.Path,
			&node.SerialNumber,
			&node.Location,
			&node.Department,
			&node.Attributes,
			&node.CreatedAt,
			&node.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	return nodes, nil
}

// isUniqueViolation reports whether err is a Postgres unique-index violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
