package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/biodata-api/internal/models"
)

// ModerationRepository stores the admin action trail.
type ModerationRepository struct {
	db *sqlx.DB
}

// NewModerationRepository constructs the repository.
func NewModerationRepository(db *sqlx.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

const insertModerationActionQuery = `INSERT INTO moderation_actions (id, target_type, target_id, action, actor_id, reason, created_at)
VALUES (:id, :target_type, :target_id, :action, :actor_id, :reason, :created_at)`

// insertModerationAction writes action through ext so callers can record it inside the
// transaction that applied the change.
func insertModerationAction(ctx context.Context, ext sqlx.ExtContext, action *models.ModerationAction) error {
	if action == nil {
		return nil
	}
	if action.ID == "" {
		action.ID = ulid.Make().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertModerationActionQuery, action); err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}
	return nil
}

// ListByTarget returns the action history for one target, newest first. ULIDs sort by time.
func (r *ModerationRepository) ListByTarget(ctx context.Context, targetType models.ModerationTargetType, targetID string) ([]models.ModerationAction, error) {
	const query = `SELECT id, target_type, target_id, action, actor_id, reason, created_at
FROM moderation_actions WHERE target_type = $1 AND target_id = $2 ORDER BY id DESC`
	var actions []models.ModerationAction
	if err := r.db.SelectContext(ctx, &actions, query, targetType, targetID); err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	return actions, nil
}
