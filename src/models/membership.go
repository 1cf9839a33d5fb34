package models

import (
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

type MembershipPlan struct {
	ID           uint              `gorm:"primarykey" json:"id"`
	Name         string            `gorm:"uniqueIndex" json:"name"`
	Price        float64           `json:"price"`
	Hours        float64           `json:"hours"`
	PricePerHour float64           `json:"price_per_hour"`
	ValidityDays int               `json:"validity_days"`
	MachineType  types.MachineType `json:"machine_type"`
	DisplayOrder int               `gorm:"default:0" json:"display_order"`
	IsActive     bool              `gorm:"default:true" json:"is_active"`

	CustomerMemberships []CustomerMembership `gorm:"foreignKey:plan_id" json:"customer_memberships,omitempty"`

	types.Timestamps
}

// CustomerMembership is a purchased block of hours against one machine type.
// Invariant: HoursRemaining + HoursUsed == HoursTotal. Exhausted, expired
// and cancelled are terminal.
type CustomerMembership struct {
	ID             uint                   `gorm:"primarykey" json:"id"`
	CustomerID     uint                   `gorm:"index" json:"customer_id"`
	PlanID         uint                   `gorm:"index" json:"plan_id"`
	PurchaseDate   time.Time              `json:"purchase_date"`
	ExpiryDate     time.Time              `gorm:"index" json:"expiry_date"`
	HoursTotal     float64                `json:"hours_total"`
	HoursRemaining float64                `json:"hours_remaining"`
	HoursUsed      float64                `json:"hours_used"`
	Status         types.MembershipStatus `gorm:"default:'active';index" json:"status"`
	PaymentAmount  float64                `json:"payment_amount"`
	PaymentMode    string                 `gorm:"default:'cash'" json:"payment_mode"`
	CancelledAt    *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason   *string                `json:"cancel_reason,omitempty"`
	Notes          *string                `json:"notes,omitempty"`

	Customer *Customer       `gorm:"foreignKey:customer_id" json:"customer,omitempty"`
	Plan     *MembershipPlan `gorm:"foreignKey:plan_id" json:"plan,omitempty"`

	types.Timestamps
}
