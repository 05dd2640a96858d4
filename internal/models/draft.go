package models

import (
	"encoding/json"
	"time"
)

// Draft is the single in-progress biodata submission of one owner.
type Draft struct {
	OwnerID     string          `db:"owner_id" json:"ownerId"`
	CurrentStep int             `db:"current_step" json:"currentStep"`
	DraftData   json.RawMessage `db:"draft_data" json:"draftData"`
	Revision    int64           `db:"revision" json:"revision"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}
