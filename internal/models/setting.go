package models

import "time"

// SettingMonetizationEnabled toggles credit-gated contact reveals for clients.
const SettingMonetizationEnabled = "monetization_enabled"

// AppSetting is a persisted key/value platform setting.
type AppSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy *string   `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
