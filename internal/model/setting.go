package model

import "time"

// AppSetting represents a key-value pair for global application configuration.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys used by the local admin override verifier.
const (
	SettingAdminOverrideHash    = "admin_override_hash"
	SettingAdminOverrideTimeout = "admin_override_timeout_seconds"
	SettingAdminOverrideCombo   = "admin_override_combo"
)

// AdminOverrideRequest sets the locally verified admin override.
type AdminOverrideRequest struct {
	Password       string `json:"password" binding:"required,min=6,max=72" validate:"required,min=6,max=72"`
	TimeoutSeconds int    `json:"timeout_seconds" binding:"omitempty,min=30,max=3600" validate:"omitempty,min=30,max=3600"`
	Combo          string `json:"combo" binding:"omitempty,keycombo" validate:"omitempty,keycombo"`
}
