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

// ReportRepository persists user reports against profiles.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, profile_id, reporter_id, reason, status, review_notes, reviewed_by, reviewed_at, created_at, updated_at`

// Create inserts a pending report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	report.Status = models.ReportPending
	report.CreatedAt = now
	report.UpdatedAt = now
	const query = `INSERT INTO reports (id, profile_id, reporter_id, reason, status, created_at, updated_at)
VALUES (:id, :profile_id, :reporter_id, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetByID fetches a report.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := r.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// ReviewReportParams describes a guarded report status change.
type ReviewReportParams struct {
	ID         string
	From       []models.ReportStatus
	To         models.ReportStatus
	Notes      *string
	ReviewedBy string
	ReviewedAt time.Time
	Action     *models.ModerationAction
}

// Review moves the report to params.To while it is in params.From. sql.ErrNoRows means nothing matched.
func (r *ReportRepository) Review(ctx context.Context, params ReviewReportParams) (report *models.Report, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin report review: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sources := make([]string, len(params.From))
	for i, s := range params.From {
		sources[i] = string(s)
	}
	query := `UPDATE reports SET status = $2, review_notes = COALESCE($3, review_notes), reviewed_by = $4, reviewed_at = $5, updated_at = $5
WHERE id = $1 AND status = ANY($6)
RETURNING ` + reportColumns
	var updated models.Report
	if err = tx.GetContext(ctx, &updated, query, params.ID, params.To, params.Notes, params.ReviewedBy, params.ReviewedAt, pq.Array(sources)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("review report: %w", err)
	}
	if err = insertModerationAction(ctx, tx, params.Action); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report review: %w", err)
	}
	return &updated, nil
}
