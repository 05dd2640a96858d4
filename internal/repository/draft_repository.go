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

// DraftRepository persists one in-progress biodata per owner.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs the repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

const draftColumns = `owner_id, current_step, draft_data, revision, created_at, updated_at`

// GetByOwner returns the owner's draft or sql.ErrNoRows.
func (r *DraftRepository) GetByOwner(ctx context.Context, ownerID string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE owner_id = $1`
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, ownerID); err != nil {
		return nil, err
	}
	return &draft, nil
}

// Upsert overwrites the owner's draft unless the stored revision is newer. The returned flag
// is false when the write was stale and the stored draft was returned instead.
func (r *DraftRepository) Upsert(ctx context.Context, draft *models.Draft) (*models.Draft, bool, error) {
	query := `INSERT INTO drafts (owner_id, current_step, draft_data, revision, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $5, $5)
ON CONFLICT (owner_id)
DO UPDATE SET current_step = EXCLUDED.current_step, draft_data = EXCLUDED.draft_data,
              revision = GREATEST(drafts.revision, EXCLUDED.revision), updated_at = EXCLUDED.updated_at
WHERE drafts.revision <= EXCLUDED.revision OR EXCLUDED.revision = 0
RETURNING ` + draftColumns

	now := time.Now().UTC()
	var saved models.Draft
	err := r.db.GetContext(ctx, &saved, query, draft.OwnerID, draft.CurrentStep, string(draft.DraftData), draft.Revision, now)
	if err == nil {
		return &saved, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("upsert draft: %w", err)
	}

	current, err := r.GetByOwner(ctx, draft.OwnerID)
	if err != nil {
		return nil, false, fmt.Errorf("load draft after stale write: %w", err)
	}
	return current, false, nil
}

// Delete removes the owner's draft. A missing draft is not an error.
func (r *DraftRepository) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
