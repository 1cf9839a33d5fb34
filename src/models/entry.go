package models

import (
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

// Entry is a single timed usage session on a machine. It is created in the
// running state (EndTime nil) and transitions exactly once to closed, either
// manually or by the auto-end sweep. Soft deletion is an explicit flag so the
// record can be listed and restored; it never reopens a closed entry.
type Entry struct {
	ID                 uint                 `gorm:"primarykey" json:"id"`
	CustomerID         uint                 `gorm:"index" json:"customer_id"`
	MachineID          uint                 `gorm:"index" json:"machine_id"`
	PCNumber           *string              `json:"pc_number,omitempty"`
	StartTime          time.Time            `json:"start_time"`
	EndTime            *time.Time           `gorm:"index" json:"end_time,omitempty"`
	PredefinedDuration *int                 `json:"predefined_duration,omitempty"`
	Duration           *int                 `json:"duration,omitempty"`
	RoundedDuration    *int                 `json:"rounded_duration,omitempty"`
	Cost               float64              `json:"cost"`
	Discount           float64              `json:"discount"`
	BeveragesAmount    float64              `json:"beverages_amount"`
	FinalAmount        float64              `json:"final_amount"`
	CashAmount         float64              `json:"cash_amount"`
	OnlineAmount       float64              `json:"online_amount"`
	CreditAmount       float64              `json:"credit_amount"`
	PaymentStatus      *types.PaymentStatus `json:"payment_status,omitempty"`
	MembershipID       *uint                `json:"membership_id,omitempty"`
	MembershipHours    *float64             `json:"membership_hours,omitempty"`
	AutoEnded          bool                 `gorm:"default:false" json:"auto_ended"`
	IsDeleted          bool                 `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt          *time.Time           `json:"deleted_at,omitempty"`
	Notes              *string              `json:"notes,omitempty"`

	Customer   *Customer           `gorm:"foreignKey:customer_id" json:"customer,omitempty"`
	Machine    *Machine            `gorm:"foreignKey:machine_id" json:"machine,omitempty"`
	Membership *CustomerMembership `gorm:"foreignKey:membership_id" json:"membership,omitempty"`

	types.Timestamps
}
