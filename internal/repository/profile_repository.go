package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/biodata-api/internal/models"
)

// ErrDuplicateProfile is returned when the owner already has a profile.
var ErrDuplicateProfile = errors.New("profile already exists for user")

const uniqueViolation = "23505"

// ProfileRepository persists submitted biodata and its moderation state.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `p.profile_id, p.user_id, p.gender, p.personal, p.family, p.education, p.lifestyle,
       p.partner_preference, p.declaration, p.contact, p.status, p.edit_count, p.rejection_reason,
       p.last_edit_date, p.reviewed_by, p.reviewed_at, p.created_at, p.updated_at`

const returningProfileColumns = `profile_id, user_id, gender, personal, family, education, lifestyle,
       partner_preference, declaration, contact, status, edit_count, rejection_reason,
       last_edit_date, reviewed_by, reviewed_at, created_at, updated_at`

// CreateFromDraft inserts a pending profile and removes the owner's draft in one transaction.
// The profile id is assigned by the database sequence.
func (r *ProfileRepository) CreateFromDraft(ctx context.Context, userID string, sections models.ProfileSections) (profile *models.Profile, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin profile transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO profiles (profile_id, user_id, gender, personal, family, education, lifestyle,
       partner_preference, declaration, contact, status, edit_count, created_at, updated_at)
VALUES ('BD-' || LPAD(nextval('profile_seq')::text, 6, '0'), $1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6::jsonb,
       $7::jsonb, $8::jsonb, $9::jsonb, $10, 0, $11, $11)
RETURNING ` + returningProfileColumns

	var created models.Profile
	err = tx.GetContext(ctx, &created, insertQuery, userID, sections.Gender,
		string(sections.Personal), string(sections.Family), string(sections.Education), string(sections.Lifestyle),
		string(sections.PartnerPreference), string(sections.Declaration), string(sections.Contact),
		models.ProfilePendingApproval, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = ErrDuplicateProfile
			return nil, err
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM drafts WHERE owner_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear promoted draft: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile transaction: %w", err)
	}
	return &created, nil
}

// GetByID fetches a profile regardless of visibility.
func (r *ProfileRepository) GetByID(ctx context.Context, profileID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.profile_id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, profileID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUserID fetches the profile owned by userID.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.user_id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetPublic fetches an approved profile whose owner account is active.
func (r *ProfileRepository) GetPublic(ctx context.Context, profileID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p JOIN users u ON u.id = p.user_id
WHERE p.profile_id = $1 AND p.status = $2 AND u.account_status = $3`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, profileID, models.ProfileApproved, models.AccountActive); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateByOwner replaces the editable sections and sends the profile back to review.
// Declaration is never part of the statement. The rejection reason is left as stored.
func (r *ProfileRepository) UpdateByOwner(ctx context.Context, profileID, userID string, sections models.ProfileSections, editedAt time.Time) (*models.Profile, error) {
	query := `UPDATE profiles SET gender = $3, personal = $4::jsonb, family = $5::jsonb, education = $6::jsonb,
       lifestyle = $7::jsonb, partner_preference = $8::jsonb, contact = $9::jsonb,
       status = $10, edit_count = edit_count + 1, last_edit_date = $11, updated_at = $11
WHERE profile_id = $1 AND user_id = $2
RETURNING ` + returningProfileColumns

	var updated models.Profile
	err := r.db.GetContext(ctx, &updated, query, profileID, userID, sections.Gender,
		string(sections.Personal), string(sections.Family), string(sections.Education),
		string(sections.Lifestyle), string(sections.PartnerPreference), string(sections.Contact),
		models.ProfilePendingApproval, editedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &updated, nil
}

// TransitionParams describes a guarded moderation status change.
type TransitionParams struct {
	ProfileID   string
	From        []models.ProfileStatus
	To          models.ProfileStatus
	Reason      *string
	ClearReason bool
	ReviewedBy  string
	ReviewedAt  time.Time
	Action      *models.ModerationAction
}

// TransitionStatus applies the change only while the profile is in one of params.From, and
// records params.Action in the same transaction. sql.ErrNoRows means nothing matched.
func (r *ProfileRepository) TransitionStatus(ctx context.Context, params TransitionParams) (profile *models.Profile, err error) {
	setParts := []string{
		"status = :status",
		"reviewed_by = :reviewed_by",
		"reviewed_at = :reviewed_at",
		"updated_at = :reviewed_at",
	}
	switch {
	case params.Reason != nil:
		setParts = append(setParts, "rejection_reason = :reason")
	case params.ClearReason:
		setParts = append(setParts, "rejection_reason = NULL")
	}
	sources := make([]string, len(params.From))
	for i, s := range params.From {
		sources[i] = string(s)
	}
	query, args, err := sqlx.Named(fmt.Sprintf(`UPDATE profiles SET %s WHERE profile_id = :profile_id AND status = ANY(:sources)
RETURNING %s`, strings.Join(setParts, ", "), returningProfileColumns), map[string]interface{}{
		"status":      params.To,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
		"reason":      params.Reason,
		"profile_id":  params.ProfileID,
		"sources":     pq.Array(sources),
	})
	if err != nil {
		return nil, fmt.Errorf("build transition query: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var updated models.Profile
	if err = tx.GetContext(ctx, &updated, tx.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition profile: %w", err)
	}
	if err = insertModerationAction(ctx, tx, params.Action); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return &updated, nil
}

// Delete removes the profile and its bookmark and unlock references in one transaction.
// A non-empty ownerID restricts the delete to that owner. sql.ErrNoRows means nothing matched.
func (r *ProfileRepository) Delete(ctx context.Context, profileID, ownerID string, action *models.ModerationAction) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := `SELECT profile_id FROM profiles WHERE profile_id = $1 FOR UPDATE`
	args := []interface{}{profileID}
	if ownerID != "" {
		lockQuery = `SELECT profile_id FROM profiles WHERE profile_id = $1 AND user_id = $2 FOR UPDATE`
		args = append(args, ownerID)
	}
	var locked string
	if err = tx.GetContext(ctx, &locked, lockQuery, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock profile: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM bookmarks WHERE profile_id = $1`,
		`DELETE FROM contact_unlocks WHERE profile_id = $1`,
		`DELETE FROM profiles WHERE profile_id = $1`,
	} {
		if _, err = tx.ExecContext(ctx, q, profileID); err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
	}
	if err = insertModerationAction(ctx, tx, action); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

// List returns admin listing rows with a total count taken under the same filter.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.ProfileListItem, int, error) {
	baseQuery := `FROM profiles p JOIN users u ON u.id = p.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.profile_id) LIKE $%d OR LOWER(u.full_name) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args), len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf(`SELECT p.profile_id, p.user_id, u.full_name AS owner_name, u.email AS owner_email,
       u.account_status, p.gender, p.status, p.edit_count, p.rejection_reason, p.last_edit_date, p.created_at
%s ORDER BY p.created_at DESC, p.profile_id DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, (page-1)*pageSize)

	var items []models.ProfileListItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}
	return items, total, nil
}

// ListPublic returns approved profiles of active accounts.
func (r *ProfileRepository) ListPublic(ctx context.Context, filter models.PublicProfileFilter) ([]models.Profile, int, error) {
	baseQuery := `FROM profiles p JOIN users u ON u.id = p.user_id WHERE p.status = $1 AND u.account_status = $2`
	args := []interface{}{models.ProfileApproved, models.AccountActive}
	if filter.Gender != "" {
		args = append(args, filter.Gender)
		baseQuery += fmt.Sprintf(" AND p.gender = $%d", len(args))
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf(`SELECT %s %s ORDER BY p.reviewed_at DESC NULLS LAST, p.profile_id DESC LIMIT %d OFFSET %d`,
		profileColumns, baseQuery, pageSize, (page-1)*pageSize)

	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list public profiles: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count public profiles: %w", err)
	}
	return profiles, total, nil
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
