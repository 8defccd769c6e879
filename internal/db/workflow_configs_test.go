package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workflowColumns = []string{"id", "user_id", "workflow_id", "name", "nodes", "created_at", "updated_at"}

func TestGetWorkflowConfig_Success(t *testing.T) {
	db, mock := newMockDB(t)
	id, userID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, workflow_id, name, nodes`).
		WithArgs(id, userID).
		WillReturnRows(pgxmock.NewRows(workflowColumns).AddRow(
			id, &userID, "keyword_mining", "Cafe niche",
			[]byte(`[{"id":"mining-gen","prompt":"Focus on cafes"},{"id":"mining-analyze"}]`),
			now, now,
		))

	c, err := db.GetWorkflowConfig(context.Background(), id, userID)
	require.NoError(t, err)
	assert.Equal(t, "keyword_mining", c.WorkflowID)
	require.Len(t, c.Nodes, 2)
	assert.Equal(t, "mining-gen", c.Nodes[0].ID)
	assert.Equal(t, "Focus on cafes", c.Nodes[0].Prompt)
	assert.Empty(t, c.Nodes[1].Prompt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWorkflowConfig_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM workflow_configs`).
		WithArgs(id, userID).
		WillReturnRows(pgxmock.NewRows(workflowColumns))

	_, err := db.GetWorkflowConfig(context.Background(), id, userID)
	assert.ErrorIs(t, err, ErrWorkflowConfigNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWorkflowConfig_BadNodes(t *testing.T) {
	db, mock := newMockDB(t)
	id, userID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM workflow_configs`).
		WithArgs(id, userID).
		WillReturnRows(pgxmock.NewRows(workflowColumns).AddRow(
			id, (*uuid.UUID)(nil), "deep_dive", "Shared", []byte(`{not json`), now, now,
		))

	_, err := db.GetWorkflowConfig(context.Background(), id, userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode nodes")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWorkflowConfig_AssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO workflow_configs`).
		WithArgs(pgxmock.AnyArg(), (*uuid.UUID)(nil), "batch_translation", "Shared translation", []byte(`[]`)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	c := &WorkflowConfigRow{WorkflowID: "batch_translation", Name: "Shared translation"}
	require.NoError(t, db.SaveWorkflowConfig(context.Background(), c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, now, c.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
