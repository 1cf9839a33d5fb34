package models

import (
	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

type Machine struct {
	ID             uint               `gorm:"primarykey" json:"id"`
	Name           string             `gorm:"uniqueIndex" json:"name"`
	Type           types.MachineType  `gorm:"index" json:"type"`
	Units          uint               `gorm:"default:1" json:"units"`
	HourlyRate     float64            `json:"hourly_rate"`
	HalfHourlyRate *float64           `json:"half_hourly_rate,omitempty"`
	PackageRates   types.PackageRates `gorm:"type:jsonb" json:"package_rates,omitempty"`
	IsActive       bool               `gorm:"default:true" json:"is_active"`

	Entries []Entry `json:"entries,omitempty"`

	types.Timestamps
}
