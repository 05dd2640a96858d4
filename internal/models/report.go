package models

import "time"

// ReportStatus tracks admin handling of a user report.
type ReportStatus string

const (
	ReportPending       ReportStatus = "pending"
	ReportInvestigating ReportStatus = "investigating"
	ReportDismissed     ReportStatus = "dismissed"
)

// Report is a complaint filed by a user against a profile.
type Report struct {
	ID          string       `db:"id" json:"id"`
	ProfileID   string       `db:"profile_id" json:"profileId"`
	ReporterID  string       `db:"reporter_id" json:"reporterId"`
	Reason      string       `db:"reason" json:"reason"`
	Status      ReportStatus `db:"status" json:"status"`
	ReviewNotes *string      `db:"review_notes" json:"reviewNotes,omitempty"`
	ReviewedBy  *string      `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time   `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}
