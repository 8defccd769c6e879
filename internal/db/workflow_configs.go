package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// GetWorkflowConfig loads a config owned by userID or shared with every account.
func (db *DB) GetWorkflowConfig(ctx context.Context, id, userID uuid.UUID) (*WorkflowConfigRow, error) {
	var (
		c   WorkflowConfigRow
		raw []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, workflow_id, name, nodes, created_at, updated_at
		 FROM workflow_configs
		 WHERE id = $1 AND (user_id = $2 OR user_id IS NULL)`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.WorkflowID, &c.Name, &raw, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkflowConfigNotFound
		}
		return nil, eris.Wrap(err, "db: get workflow config")
	}

	c.Nodes, err = decodeNodes(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "db: decode nodes of workflow config %s", id)
	}
	return &c, nil
}

// SaveWorkflowConfig inserts or replaces a config. A zero ID gets a new UUID.
func (db *DB) SaveWorkflowConfig(ctx context.Context, c *WorkflowConfigRow) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Nodes == nil {
		c.Nodes = []WorkflowNode{}
	}
	raw, err := json.Marshal(c.Nodes)
	if err != nil {
		return eris.Wrap(err, "db: marshal workflow nodes")
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO workflow_configs (id, user_id, workflow_id, name, nodes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET workflow_id = EXCLUDED.workflow_id, name = EXCLUDED.name, nodes = EXCLUDED.nodes, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.WorkflowID, c.Name, raw,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "db: save workflow config %s", c.Name)
	}
	return nil
}

// ListWorkflowConfigs returns the user's configs plus shared ones for a workflow.
func (db *DB) ListWorkflowConfigs(ctx context.Context, userID uuid.UUID, workflowID string) ([]WorkflowConfigRow, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, workflow_id, name, nodes, created_at, updated_at
		 FROM workflow_configs
		 WHERE workflow_id = $2 AND (user_id = $1 OR user_id IS NULL)
		 ORDER BY name`,
		userID, workflowID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "db: list workflow configs")
	}
	defer rows.Close()

	configs := []WorkflowConfigRow{}
	for rows.Next() {
		var (
			c   WorkflowConfigRow
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.WorkflowID, &c.Name, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "db: scan workflow config")
		}
		if c.Nodes, err = decodeNodes(raw); err != nil {
			return nil, eris.Wrapf(err, "db: decode nodes of workflow config %s", c.ID)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
