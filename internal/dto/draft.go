package dto

import "encoding/json"

// SaveDraftRequest overwrites the caller's draft.
type SaveDraftRequest struct {
	CurrentStep int             `json:"currentStep" validate:"required,min=1"`
	DraftData   json.RawMessage `json:"draftData" validate:"required"`
	Revision    int64           `json:"revision" validate:"min=0"`
}
