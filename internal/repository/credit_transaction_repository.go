package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/biodata-api/internal/models"
)

// CreditTransactionRepository persists credit purchase reviews.
type CreditTransactionRepository struct {
	db *sqlx.DB
}

// NewCreditTransactionRepository constructs the repository.
func NewCreditTransactionRepository(db *sqlx.DB) *CreditTransactionRepository {
	return &CreditTransactionRepository{db: db}
}

const creditTransactionColumns = `id, user_id, credits, amount, payment_method, external_ref, status, note, reviewed_by, reviewed_at, created_at`

// GetByID fetches a credit transaction.
func (r *CreditTransactionRepository) GetByID(ctx context.Context, id string) (*models.CreditTransaction, error) {
	var txn models.CreditTransaction
	if err := r.db.GetContext(ctx, &txn, `SELECT `+creditTransactionColumns+` FROM credit_transactions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &txn, nil
}

// ReviewCreditParams describes the decision on a pending transaction.
type ReviewCreditParams struct {
	ID         string
	To         models.CreditTransactionStatus
	Note       *string
	ReviewedBy string
	ReviewedAt time.Time
	Action     *models.ModerationAction
}

// Review settles a pending transaction. Approval adds the purchased credits to the buyer in
// the same transaction. sql.ErrNoRows means the transaction was missing or already settled.
func (r *CreditTransactionRepository) Review(ctx context.Context, params ReviewCreditParams) (txn *models.CreditTransaction, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credit review: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `UPDATE credit_transactions SET status = $2, note = COALESCE($3, note), reviewed_by = $4, reviewed_at = $5
WHERE id = $1 AND status = $6
RETURNING ` + creditTransactionColumns
	var updated models.CreditTransaction
	if err = tx.GetContext(ctx, &updated, query, params.ID, params.To, params.Note, params.ReviewedBy, params.ReviewedAt, models.CreditPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("review credit transaction: %w", err)
	}

	if params.To == models.CreditApproved {
		const creditQuery = `UPDATE users SET credits = credits + $2, updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, creditQuery, updated.UserID, updated.Credits, params.ReviewedAt); err != nil {
			return nil, fmt.Errorf("add user credits: %w", err)
		}
	}
	if err = insertModerationAction(ctx, tx, params.Action); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit review: %w", err)
	}
	return &updated, nil
}
