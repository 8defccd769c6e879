package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CreditBalance is one row of user_credits.
type CreditBalance struct {
	UserID       uuid.UUID `json:"user_id"`
	TotalCredits int       `json:"total_credits"`
	UsedCredits  int       `json:"used_credits"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Remaining is total minus used.
func (b *CreditBalance) Remaining() int {
	return b.TotalCredits - b.UsedCredits
}

// CreditTransaction is an immutable ledger entry. Delta is negative for usage.
type CreditTransaction struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Delta         int       `json:"delta"`
	BalanceBefore int       `json:"balance_before"`
	BalanceAfter  int       `json:"balance_after"`
	Description   string    `json:"description"`
	RelatedEntity string    `json:"related_entity,omitempty"`
	ModeID        string    `json:"mode_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DebitInput describes a usage charge.
type DebitInput struct {
	UserID        uuid.UUID
	Amount        int
	ModeID        string
	Description   string
	RelatedEntity string
}

// WorkflowNode is one stage override inside a stored workflow config.
type WorkflowNode struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt,omitempty"`
}

// WorkflowConfigRow is a stored workflow config. A nil UserID marks a shared config.
type WorkflowConfigRow struct {
	ID         uuid.UUID      `json:"id"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	WorkflowID string         `json:"workflow_id"`
	Name       string         `json:"name"`
	Nodes      []WorkflowNode `json:"nodes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func decodeNodes(raw []byte) ([]WorkflowNode, error) {
	if len(raw) == 0 {
		return []WorkflowNode{}, nil
	}
	var nodes []WorkflowNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// APIKey is a stored API key. The secret is only ever kept as a bcrypt hash.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the key has not been revoked.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}
