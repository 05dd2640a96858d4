package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/biodata-api/internal/models"
)

// UserRepository provides database access for account flags and audit records.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, account_status, credits, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// AccountStatus returns only the account flag of a user.
func (r *UserRepository) AccountStatus(ctx context.Context, id string) (models.AccountStatus, error) {
	var status models.AccountStatus
	if err := r.db.GetContext(ctx, &status, `SELECT account_status FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("get account status: %w", err)
	}
	return status, nil
}

// UpdateAccountStatus moves the user to status when the current flag is one of from and
// records action in the same transaction. sql.ErrNoRows means nothing matched.
func (r *UserRepository) UpdateAccountStatus(ctx context.Context, id string, status models.AccountStatus, from []models.AccountStatus, action *models.ModerationAction) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	const query = `UPDATE users SET account_status = $2, updated_at = $3 WHERE id = $1 AND account_status = ANY($4)`
	result, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC(), pq.Array(sources))
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check account status rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = insertModerationAction(ctx, tx, action); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit account status: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
