package models

import (
	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

// Customer carries only what the billing core needs: an identity for
// sessions to reference plus the scalar credit balance not tied to any
// single entry.
type Customer struct {
	ID            uint    `gorm:"primarykey" json:"id"`
	Name          string  `json:"name"`
	Phone         string  `gorm:"uniqueIndex" json:"phone"`
	Email         *string `json:"email,omitempty"`
	PendingCredit float64 `gorm:"default:0" json:"pending_credit"`
	Notes         *string `json:"notes,omitempty"`

	Entries     []Entry              `json:"entries,omitempty"`
	Memberships []CustomerMembership `json:"memberships,omitempty"`

	types.Timestamps
}
