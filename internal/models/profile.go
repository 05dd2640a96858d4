package models

import (
	"encoding/json"
	"time"
)

// Profile is a submitted biodata tracked through moderation.
type Profile struct {
	ProfileID         string          `db:"profile_id" json:"profileId"`
	UserID            string          `db:"user_id" json:"userId"`
	Gender            string          `db:"gender" json:"gender"`
	Personal          json.RawMessage `db:"personal" json:"personal"`
	Family            json.RawMessage `db:"family" json:"family"`
	Education         json.RawMessage `db:"education" json:"education"`
	Lifestyle         json.RawMessage `db:"lifestyle" json:"lifestyle"`
	PartnerPreference json.RawMessage `db:"partner_preference" json:"partnerPreference"`
	Declaration       json.RawMessage `db:"declaration" json:"declaration"`
	Contact           json.RawMessage `db:"contact" json:"contact"`
	Status            ProfileStatus   `db:"status" json:"status"`
	EditCount         int             `db:"edit_count" json:"editCount"`
	RejectionReason   *string         `db:"rejection_reason" json:"-"`
	LastEditDate      *time.Time      `db:"last_edit_date" json:"lastEditDate,omitempty"`
	ReviewedBy        *string         `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// ActiveRejectionReason returns the reason only while the profile is rejected.
func (p *Profile) ActiveRejectionReason() string {
	if p == nil || p.Status != ProfileRejected || p.RejectionReason == nil {
		return ""
	}
	return *p.RejectionReason
}

// PreviousRejectionReason returns a retained reason from an earlier rejection.
func (p *Profile) PreviousRejectionReason() string {
	if p == nil || p.Status == ProfileRejected || p.RejectionReason == nil {
		return ""
	}
	return *p.RejectionReason
}

// ProfileSections carries the editable content of a profile.
type ProfileSections struct {
	Gender            string
	Personal          json.RawMessage
	Family            json.RawMessage
	Education         json.RawMessage
	Lifestyle         json.RawMessage
	PartnerPreference json.RawMessage
	Declaration       json.RawMessage
	Contact           json.RawMessage
}

// ProfileListItem is a profile row joined with its owner for admin listings.
type ProfileListItem struct {
	ProfileID       string        `db:"profile_id" json:"profileId"`
	UserID          string        `db:"user_id" json:"userId"`
	OwnerName       string        `db:"owner_name" json:"ownerName"`
	OwnerEmail      string        `db:"owner_email" json:"ownerEmail"`
	AccountStatus   AccountStatus `db:"account_status" json:"accountStatus"`
	Gender          string        `db:"gender" json:"gender"`
	Status          ProfileStatus `db:"status" json:"status"`
	EditCount       int           `db:"edit_count" json:"editCount"`
	RejectionReason *string       `db:"rejection_reason" json:"-"`
	LastEditDate    *time.Time    `db:"last_edit_date" json:"lastEditDate,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
}

// ActiveRejectionReason returns the reason only while the listed profile is rejected.
func (i ProfileListItem) ActiveRejectionReason() string {
	if i.Status != ProfileRejected || i.RejectionReason == nil {
		return ""
	}
	return *i.RejectionReason
}

// PreviousRejectionReason returns a reason retained from an earlier rejection.
func (i ProfileListItem) PreviousRejectionReason() string {
	if i.Status == ProfileRejected || i.RejectionReason == nil {
		return ""
	}
	return *i.RejectionReason
}

// MarshalJSON splits the stored reason into its active and previous forms.
func (i ProfileListItem) MarshalJSON() ([]byte, error) {
	type plain ProfileListItem
	return json.Marshal(struct {
		plain
		RejectionReason         string `json:"rejectionReason,omitempty"`
		PreviousRejectionReason string `json:"previousRejectionReason,omitempty"`
	}{
		plain:                   plain(i),
		RejectionReason:         i.ActiveRejectionReason(),
		PreviousRejectionReason: i.PreviousRejectionReason(),
	})
}

// ProfileFilter constrains admin listing queries.
type ProfileFilter struct {
	Status   *ProfileStatus
	Search   string
	Page     int
	PageSize int
}

// PublicProfileFilter constrains the public listing.
type PublicProfileFilter struct {
	Gender   string
	Page     int
	PageSize int
}
