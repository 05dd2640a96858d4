package models

import "time"

// CreditTransactionStatus captures the review state of a credit purchase.
type CreditTransactionStatus string

const (
	CreditPending  CreditTransactionStatus = "pending"
	CreditApproved CreditTransactionStatus = "approved"
	CreditRejected CreditTransactionStatus = "rejected"
)

// CreditTransaction is a manual credit purchase awaiting admin verification.
type CreditTransaction struct {
	ID            string                  `db:"id" json:"id"`
	UserID        string                  `db:"user_id" json:"userId"`
	Credits       int                     `db:"credits" json:"credits"`
	Amount        float64                 `db:"amount" json:"amount"`
	PaymentMethod string                  `db:"payment_method" json:"paymentMethod"`
	ExternalRef   string                  `db:"external_ref" json:"externalRef"`
	Status        CreditTransactionStatus `db:"status" json:"status"`
	Note          *string                 `db:"note" json:"note,omitempty"`
	ReviewedBy    *string                 `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time              `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt     time.Time               `db:"created_at" json:"createdAt"`
}
