package models

import (
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

// Booking is an advance reservation of a machine for a future window.
// EntryID is a back-reference set at check-in; the booking does not own
// the entry's lifecycle after that.
type Booking struct {
	ID             uint                `gorm:"primarykey" json:"id"`
	Reference      string              `gorm:"uniqueIndex" json:"reference"`
	CustomerID     uint                `gorm:"index" json:"customer_id"`
	MachineID      uint                `gorm:"index" json:"machine_id"`
	PCNumber       *string             `json:"pc_number,omitempty"`
	BookingDate    time.Time           `gorm:"index" json:"booking_date"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	Duration       int                 `json:"duration"`
	AdvancePayment bool                `gorm:"default:false" json:"advance_payment"`
	CashAmount     float64             `json:"cash_amount"`
	OnlineAmount   float64             `json:"online_amount"`
	CreditAmount   float64             `json:"credit_amount"`
	Discount       float64             `json:"discount"`
	Status         types.BookingStatus `gorm:"default:'CONFIRMED';index" json:"status"`
	CheckedInAt    *time.Time          `json:"checked_in_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	EntryID        *uint               `json:"entry_id,omitempty"`
	Notes          *string             `json:"notes,omitempty"`

	Customer *Customer `gorm:"foreignKey:customer_id" json:"customer,omitempty"`
	Machine  *Machine  `gorm:"foreignKey:machine_id" json:"machine,omitempty"`
	Entry    *Entry    `gorm:"foreignKey:entry_id" json:"entry,omitempty"`

	types.Timestamps
}
