package models

import (
	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

// Setting is a generic key-value store. The core reads the
// "membership_enabled" flag and the membership warning thresholds from it.
type Setting struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	SettingKey   string `gorm:"uniqueIndex" json:"setting_key"`
	SettingValue string `json:"setting_value"`

	types.Timestamps
}

const (
	SETTING_MEMBERSHIP_ENABLED       = "membership_enabled"
	SETTING_MEMBERSHIP_WARNING_HOURS = "membership_warning_hours"
	SETTING_MEMBERSHIP_WARNING_DAYS  = "membership_warning_days"
)
