package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// GetBalance returns the credit row for a user, or ErrAccountNotFound.
func (db *DB) GetBalance(ctx context.Context, userID uuid.UUID) (*CreditBalance, error) {
	var b CreditBalance
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, total_credits, used_credits, updated_at
		 FROM user_credits WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.TotalCredits, &b.UsedCredits, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, eris.Wrap(err, "db: get balance")
	}
	return &b, nil
}

// DebitCredits charges in.Amount against the account and appends a usage
// transaction. The update only applies while used+amount stays within total,
// so concurrent debits can never overdraw. When nothing is updated the
// account is re-read to return ErrAccountNotFound or ErrInsufficientFunds.
func (db *DB) DebitCredits(ctx context.Context, in DebitInput) (*CreditBalance, *CreditTransaction, error) {
	if in.Amount <= 0 {
		return nil, nil, eris.Errorf("db: debit amount must be positive, got %d", in.Amount)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "db: debit: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := CreditBalance{UserID: in.UserID}
	err = tx.QueryRow(ctx,
		`UPDATE user_credits
		 SET used_credits = used_credits + $2, updated_at = NOW()
		 WHERE user_id = $1 AND used_credits + $2 <= total_credits
		 RETURNING total_credits, used_credits, updated_at`,
		in.UserID, in.Amount,
	).Scan(&b.TotalCredits, &b.UsedCredits, &b.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, eris.Wrap(err, "db: debit: update balance")
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_credits WHERE user_id = $1)`,
			in.UserID,
		).Scan(&exists); err != nil {
			return nil, nil, eris.Wrap(err, "db: debit: check account")
		}
		if !exists {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, ErrInsufficientFunds
	}

	txn := CreditTransaction{
		ID:            uuid.New(),
		UserID:        in.UserID,
		Delta:         -in.Amount,
		BalanceAfter:  b.Remaining(),
		BalanceBefore: b.Remaining() + in.Amount,
		Description:   in.Description,
		RelatedEntity: in.RelatedEntity,
		ModeID:        in.ModeID,
	}
	if err := insertTransaction(ctx, tx, &txn); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "db: debit: commit")
	}
	return &b, &txn, nil
}

// GrantCredits adds amount to the account's total, creating the account if needed.
func (db *DB) GrantCredits(ctx context.Context, userID uuid.UUID, amount int, description string) (*CreditBalance, error) {
	if amount <= 0 {
		return nil, eris.Errorf("db: grant amount must be positive, got %d", amount)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: grant: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := CreditBalance{UserID: userID}
	err = tx.QueryRow(ctx,
		`INSERT INTO user_credits (user_id, total_credits)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET total_credits = user_credits.total_credits + EXCLUDED.total_credits, updated_at = NOW()
		 RETURNING total_credits, used_credits, updated_at`,
		userID, amount,
	).Scan(&b.TotalCredits, &b.UsedCredits, &b.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "db: grant: upsert balance")
	}

	txn := CreditTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		Delta:         amount,
		BalanceAfter:  b.Remaining(),
		BalanceBefore: b.Remaining() - amount,
		Description:   description,
		ModeID:        "grant",
	}
	if err := insertTransaction(ctx, tx, &txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: grant: commit")
	}
	return &b, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn *CreditTransaction) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO credit_transactions
		 (id, user_id, delta, balance_before, balance_after, description, related_entity, mode_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		txn.ID, txn.UserID, txn.Delta, txn.BalanceBefore, txn.BalanceAfter,
		txn.Description, txn.RelatedEntity, txn.ModeID,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "db: insert credit transaction")
	}
	return nil
}

// ListTransactions returns the most recent ledger entries for a user, newest first.
func (db *DB) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, delta, balance_before, balance_after, description, related_entity, mode_id, created_at
		 FROM credit_transactions WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "db: list transactions")
	}
	defer rows.Close()

	txns := []CreditTransaction{}
	for rows.Next() {
		var t CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.BalanceBefore, &t.BalanceAfter,
			&t.Description, &t.RelatedEntity, &t.ModeID, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "db: scan transaction")
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "db: iterate transactions")
	}
	return txns, nil
}
