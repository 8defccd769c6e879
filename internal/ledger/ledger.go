// Package ledger meters the prepaid credit balance of each account.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/db"
)

// ErrAccountNotProvisioned means the account has no credit row.
var ErrAccountNotProvisioned = errors.New("credit account not provisioned")

// InsufficientCreditsError reports a shortfall.
type InsufficientCreditsError struct {
	Required  int
	Remaining int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, remaining %d", e.Required, e.Remaining)
}

// Balance is an account's credit position.
type Balance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Store is the persistence the ledger needs. *db.DB implements it.
type Store interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*db.CreditBalance, error)
	DebitCredits(ctx context.Context, in db.DebitInput) (*db.CreditBalance, *db.CreditTransaction, error)
}

// Ledger is the Ledger Accessor.
type Ledger struct {
	store Store
}

// New creates a Ledger.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// CheckBalance returns the account's balance or ErrAccountNotProvisioned.
func (l *Ledger) CheckBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	b, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return nil, ErrAccountNotProvisioned
		}
		return nil, eris.Wrap(err, "ledger: check balance")
	}
	return toBalance(b), nil
}

// Require fails with InsufficientCreditsError unless the account can pay cost.
// A missing account counts as zero remaining.
func (l *Ledger) Require(ctx context.Context, accountID uuid.UUID, cost int) (*Balance, error) {
	b, err := l.CheckBalance(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrAccountNotProvisioned) {
			return nil, err
		}
		b = &Balance{}
	}
	if b.Remaining < cost {
		return b, &InsufficientCreditsError{Required: cost, Remaining: b.Remaining}
	}
	return b, nil
}

// DebitRequest describes one charge.
type DebitRequest struct {
	AccountID     uuid.UUID
	Amount        int
	ModeID        string
	Description   string
	RelatedEntity string
}

// Debit atomically charges the account and records the transaction.
// A non-positive amount charges nothing and returns the current balance.
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (*Balance, error) {
	if req.Amount <= 0 {
		return l.CheckBalance(ctx, req.AccountID)
	}

	b, _, err := l.store.DebitCredits(ctx, db.DebitInput{
		UserID:        req.AccountID,
		Amount:        req.Amount,
		ModeID:        req.ModeID,
		Description:   req.Description,
		RelatedEntity: req.RelatedEntity,
	})
	if err == nil {
		return toBalance(b), nil
	}

	switch {
	case errors.Is(err, db.ErrAccountNotFound):
		return nil, ErrAccountNotProvisioned
	case errors.Is(err, db.ErrInsufficientFunds):
		remaining := 0
		if cur, cerr := l.store.GetBalance(ctx, req.AccountID); cerr == nil {
			remaining = cur.Remaining()
		}
		return nil, &InsufficientCreditsError{Required: req.Amount, Remaining: remaining}
	default:
		return nil, eris.Wrap(err, "ledger: debit")
	}
}

func toBalance(b *db.CreditBalance) *Balance {
	return &Balance{
		Total:     b.TotalCredits,
		Used:      b.UsedCredits,
		Remaining: b.Remaining(),
	}
}
