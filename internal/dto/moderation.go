package dto

// RejectProfileRequest carries the mandatory rejection reason.
type RejectProfileRequest struct {
	Reason string `json:"reason"`
}

// CreateReportRequest files a report against a profile.
type CreateReportRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

// ReviewReportRequest resolves a report.
type ReviewReportRequest struct {
	Action string `json:"action" validate:"required,oneof=investigate dismiss"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// ReviewCreditTransactionRequest approves or rejects a credit purchase.
type ReviewCreditTransactionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Note   string `json:"note" validate:"max=1000"`
}

// UpdateMonetizationRequest toggles the monetization flag.
type UpdateMonetizationRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// MonetizationView exposes the monetization flag to clients.
type MonetizationView struct {
	Enabled bool `json:"enabled"`
}

// ModerationResult reports whether an admin action changed anything.
type ModerationResult struct {
	TargetID string `json:"targetId"`
	Status   string `json:"status"`
	Changed  bool   `json:"changed"`
}
