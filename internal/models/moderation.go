package models

import "time"

// ModerationTargetType identifies the kind of record an admin acted on.
type ModerationTargetType string

const (
	TargetProfile           ModerationTargetType = "profile"
	TargetUser              ModerationTargetType = "user"
	TargetReport            ModerationTargetType = "report"
	TargetCreditTransaction ModerationTargetType = "credit_transaction"
)

// ModerationActionType enumerates admin actions.
type ModerationActionType string

const (
	ActionApprove     ModerationActionType = "approve"
	ActionReject      ModerationActionType = "reject"
	ActionDelete      ModerationActionType = "delete"
	ActionRestrict    ModerationActionType = "restrict"
	ActionBan         ModerationActionType = "ban"
	ActionUnrestrict  ModerationActionType = "unrestrict"
	ActionInvestigate ModerationActionType = "investigate"
	ActionDismiss     ModerationActionType = "dismiss"
)

// ModerationAction is the audit record of one applied admin action.
type ModerationAction struct {
	ID         string               `db:"id" json:"id"`
	TargetType ModerationTargetType `db:"target_type" json:"targetType"`
	TargetID   string               `db:"target_id" json:"targetId"`
	Action     ModerationActionType `db:"action" json:"action"`
	ActorID    string               `db:"actor_id" json:"actorId"`
	Reason     *string              `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time            `db:"created_at" json:"createdAt"`
}
