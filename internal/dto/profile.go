package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/biodata-api/internal/models"
)

// SubmitProfileRequest promotes the caller's draft. DraftData is optional; when set it is
// submitted instead of the stored draft.
type SubmitProfileRequest struct {
	DraftData json.RawMessage `json:"draftData,omitempty"`
}

// EditProfileRequest replaces the editable sections of the caller's profile.
type EditProfileRequest struct {
	Data json.RawMessage `json:"data" validate:"required"`
}

// ProfileView renders a profile to its owner or an admin.
type ProfileView struct {
	ProfileID               string               `json:"profileId"`
	UserID                  string               `json:"userId"`
	Gender                  string               `json:"gender"`
	Status                  models.ProfileStatus `json:"status"`
	EditCount               int                  `json:"editCount"`
	RejectionReason         string               `json:"rejectionReason,omitempty"`
	PreviousRejectionReason string               `json:"previousRejectionReason,omitempty"`
	Personal                json.RawMessage      `json:"personal"`
	Family                  json.RawMessage      `json:"family"`
	Education               json.RawMessage      `json:"education"`
	Lifestyle               json.RawMessage      `json:"lifestyle"`
	PartnerPreference       json.RawMessage      `json:"partnerPreference"`
	Declaration             json.RawMessage      `json:"declaration"`
	Contact                 json.RawMessage      `json:"contact,omitempty"`
	LastEditDate            *time.Time           `json:"lastEditDate,omitempty"`
	ReviewedAt              *time.Time           `json:"reviewedAt,omitempty"`
	CreatedAt               time.Time            `json:"createdAt"`
	UpdatedAt               time.Time            `json:"updatedAt"`
}

// NewProfileView exposes the rejection reason as active only while the profile is rejected.
func NewProfileView(p *models.Profile) ProfileView {
	return ProfileView{
		ProfileID:               p.ProfileID,
		UserID:                  p.UserID,
		Gender:                  p.Gender,
		Status:                  p.Status,
		EditCount:               p.EditCount,
		RejectionReason:         p.ActiveRejectionReason(),
		PreviousRejectionReason: p.PreviousRejectionReason(),
		Personal:                p.Personal,
		Family:                  p.Family,
		Education:               p.Education,
		Lifestyle:               p.Lifestyle,
		PartnerPreference:       p.PartnerPreference,
		Declaration:             p.Declaration,
		Contact:                 p.Contact,
		LastEditDate:            p.LastEditDate,
		ReviewedAt:              p.ReviewedAt,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

// PublicProfileView is what other users see; contact details and moderation fields are withheld.
type PublicProfileView struct {
	ProfileID         string          `json:"profileId"`
	Gender            string          `json:"gender"`
	Personal          json.RawMessage `json:"personal"`
	Family            json.RawMessage `json:"family"`
	Education         json.RawMessage `json:"education"`
	Lifestyle         json.RawMessage `json:"lifestyle"`
	PartnerPreference json.RawMessage `json:"partnerPreference"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// NewPublicProfileView strips owner-only data from a profile.
func NewPublicProfileView(p *models.Profile) PublicProfileView {
	return PublicProfileView{
		ProfileID:         p.ProfileID,
		Gender:            p.Gender,
		Personal:          p.Personal,
		Family:            p.Family,
		Education:         p.Education,
		Lifestyle:         p.Lifestyle,
		PartnerPreference: p.PartnerPreference,
		CreatedAt:         p.CreatedAt,
	}
}

// PublicProfileList is the cached page of the public listing.
type PublicProfileList struct {
	Items []PublicProfileView `json:"items"`
	Total int                 `json:"total"`
}

// ProfileQuery mirrors admin listing filters.
type ProfileQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// PublicProfileQuery mirrors public listing filters.
type PublicProfileQuery struct {
	Gender string `form:"gender"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}
