package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

type Timestamps struct {
	CreatedAt time.Time `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &a)
}

// PackageRates maps a whole number of hours to a flat price for that block.
// Stored as a jsonb object keyed by the hour count.
type PackageRates map[int]float64

func (p PackageRates) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	out := make(map[string]float64, len(p))
	for hours, price := range p {
		out[strconv.Itoa(hours)] = price
	}
	valueString, err := json.Marshal(out)
	return string(valueString), err
}

func (p *PackageRates) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	rates := make(PackageRates, len(raw))
	for k, price := range raw {
		hours, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid package hours key %q", k)
		}
		rates[hours] = price
	}
	*p = rates
	return nil
}

// Validate rejects malformed rate configuration before it is persisted.
func (p PackageRates) Validate() error {
	for hours, price := range p {
		if hours < 1 {
			return fmt.Errorf("%w: package hours must be a positive integer, got %d", ErrValidation, hours)
		}
		if price < 0 {
			return fmt.Errorf("%w: package price for %dh must not be negative", ErrValidation, hours)
		}
	}
	return nil
}

// HoursDesc returns the package sizes largest first.
func (p PackageRates) HoursDesc() []int {
	hours := make([]int, 0, len(p))
	for h := range p {
		hours = append(hours, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(hours)))
	return hours
}

func jsonbBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}

type MachineType string

const (
	MACHINE_PS5 MachineType = "ps5"
	MACHINE_PC  MachineType = "pc"
)

type PaymentStatus string

const (
	PAYMENT_UNPAID  PaymentStatus = "unpaid"
	PAYMENT_PARTIAL PaymentStatus = "partial"
	PAYMENT_PAID    PaymentStatus = "paid"
)

type BookingStatus string

const (
	BOOKING_CONFIRMED  BookingStatus = "CONFIRMED"
	BOOKING_CHECKED_IN BookingStatus = "CHECKED_IN"
	BOOKING_CANCELED   BookingStatus = "CANCELLED"
	// Reserved statuses, not produced by any transition yet.
	BOOKING_PENDING   BookingStatus = "PENDING"
	BOOKING_COMPLETED BookingStatus = "COMPLETED"
)

type MembershipStatus string

const (
	MEMBERSHIP_ACTIVE    MembershipStatus = "active"
	MEMBERSHIP_EXHAUSTED MembershipStatus = "exhausted"
	MEMBERSHIP_EXPIRED   MembershipStatus = "expired"
	MEMBERSHIP_CANCELED  MembershipStatus = "cancelled"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type KeyRequestParams struct {
	Key string `uri:"key" binding:"required"`
}

type CreateMachineRequestBody struct {
	Name           string             `json:"name" binding:"required"`
	Type           MachineType        `json:"type" binding:"required,oneof=ps5 pc"`
	Units          uint               `json:"units" binding:"required,min=1"`
	HourlyRate     float64            `json:"hourly_rate" binding:"required,gt=0"`
	HalfHourlyRate *float64           `json:"half_hourly_rate,omitempty" binding:"omitempty,gt=0"`
	PackageRates   map[string]float64 `json:"package_rates,omitempty"`
}

type UpdateMachineRatesRequestBody struct {
	HourlyRate     *float64           `json:"hourly_rate,omitempty" binding:"omitempty,gt=0"`
	HalfHourlyRate *float64           `json:"half_hourly_rate,omitempty" binding:"omitempty,gt=0"`
	PackageRates   map[string]float64 `json:"package_rates,omitempty"`
}

type CreateEntryRequestBody struct {
	CustomerID         uint    `json:"customer" binding:"required"`
	MachineID          uint    `json:"machine" binding:"required"`
	StartTime          string  `json:"start_time" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	PredefinedDuration *int    `json:"predefined_duration,omitempty" binding:"omitempty,min=1"`
	PCNumber           *string `json:"pc_number,omitempty"`
	CashAmount         float64 `json:"cash_amount,omitempty" binding:"omitempty,min=0"`
	OnlineAmount       float64 `json:"online_amount,omitempty" binding:"omitempty,min=0"`
	CreditAmount       float64 `json:"credit_amount,omitempty" binding:"omitempty,min=0"`
	UseMembershipID    *uint   `json:"use_membership,omitempty"`
	Notes              *string `json:"notes,omitempty"`
}

type EndEntryRequestBody struct {
	EndTime      string   `json:"end_time,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	FinalAmount  *float64 `json:"final_amount,omitempty" binding:"omitempty,gt=0"`
	CashAmount   float64  `json:"cash_amount,omitempty" binding:"omitempty,min=0"`
	OnlineAmount float64  `json:"online_amount,omitempty" binding:"omitempty,min=0"`
	CreditAmount float64  `json:"credit_amount,omitempty" binding:"omitempty,min=0"`
	Notes        *string  `json:"notes,omitempty"`
}

type UpdateEntryRequestBody struct {
	MachineID          *uint    `json:"machine,omitempty"`
	PCNumber           *string  `json:"pc_number,omitempty"`
	PredefinedDuration *int     `json:"predefined_duration,omitempty" binding:"omitempty,min=1"`
	BeveragesAmount    *float64 `json:"beverages_amount,omitempty" binding:"omitempty,min=0"`
	FinalAmount        *float64 `json:"final_amount,omitempty" binding:"omitempty,gt=0"`
	Notes              *string  `json:"notes,omitempty"`
}

type UpdatePaymentRequestBody struct {
	CashAmount   float64 `json:"cash_amount" binding:"min=0"`
	OnlineAmount float64 `json:"online_amount" binding:"min=0"`
	CreditAmount float64 `json:"credit_amount" binding:"min=0"`
	Notes        *string `json:"notes,omitempty"`
}

type EntryQueryFilters struct {
	Date          string `form:"date"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
	CustomerID    uint   `form:"customer"`
	MachineID     uint   `form:"machine"`
	PaymentStatus string `form:"payment_status"`
	Page          int    `form:"page,default=1" binding:"omitempty,min=1"`
	Limit         int    `form:"limit,default=50" binding:"omitempty,min=1,max=200"`
}

type CreateBookingRequestBody struct {
	CustomerID     uint    `json:"customer" binding:"required"`
	MachineID      uint    `json:"machine" binding:"required"`
	PCNumber       *string `json:"pc_number,omitempty"`
	StartTime      string  `json:"start_time" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	EndTime        string  `json:"end_time" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	Duration       int     `json:"duration" binding:"required,min=1"`
	AdvancePayment bool    `json:"advance_payment,omitempty"`
	CashAmount     float64 `json:"cash_amount,omitempty" binding:"omitempty,min=0"`
	OnlineAmount   float64 `json:"online_amount,omitempty" binding:"omitempty,min=0"`
	CreditAmount   float64 `json:"credit_amount,omitempty" binding:"omitempty,min=0"`
	Discount       float64 `json:"discount,omitempty" binding:"omitempty,min=0"`
	Notes          *string `json:"notes,omitempty"`
}

type UpdateBookingRequestBody struct {
	MachineID    *uint    `json:"machine,omitempty"`
	PCNumber     *string  `json:"pc_number,omitempty"`
	StartTime    *string  `json:"start_time,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	EndTime      *string  `json:"end_time,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	Duration     *int     `json:"duration,omitempty" binding:"omitempty,min=1"`
	CashAmount   *float64 `json:"cash_amount,omitempty" binding:"omitempty,min=0"`
	OnlineAmount *float64 `json:"online_amount,omitempty" binding:"omitempty,min=0"`
	CreditAmount *float64 `json:"credit_amount,omitempty" binding:"omitempty,min=0"`
	Discount     *float64 `json:"discount,omitempty" binding:"omitempty,min=0"`
	Notes        *string  `json:"notes,omitempty"`
}

type CancelBookingRequestBody struct {
	Reason *string `json:"reason,omitempty"`
}

type BookingQueryFilters struct {
	Date       string `form:"date"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Status     string `form:"status"`
	CustomerID uint   `form:"customer"`
	MachineID  uint   `form:"machine"`
}

type AvailabilityQuery struct {
	MachineID        uint    `form:"machine" binding:"required"`
	StartTime        string  `form:"start_time" binding:"required"`
	EndTime          string  `form:"end_time" binding:"required"`
	PCNumber         *string `form:"pc_number"`
	ExcludeBookingID *uint   `form:"exclude_booking"`
}

type CreateMembershipPlanRequestBody struct {
	Name         string      `json:"name" binding:"required"`
	Price        float64     `json:"price" binding:"required,gt=0"`
	Hours        float64     `json:"hours" binding:"required,gt=0"`
	ValidityDays int         `json:"validity_days" binding:"required,min=1"`
	MachineType  MachineType `json:"machine_type" binding:"required,oneof=ps5 pc"`
	DisplayOrder int         `json:"display_order,omitempty"`
}

type UpdateMembershipPlanRequestBody struct {
	Name         *string  `json:"name,omitempty"`
	Price        *float64 `json:"price,omitempty" binding:"omitempty,gt=0"`
	Hours        *float64 `json:"hours,omitempty" binding:"omitempty,gt=0"`
	ValidityDays *int     `json:"validity_days,omitempty" binding:"omitempty,min=1"`
	DisplayOrder *int     `json:"display_order,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

type PurchaseMembershipRequestBody struct {
	CustomerID    uint     `json:"customer" binding:"required"`
	PlanID        uint     `json:"plan" binding:"required"`
	PaymentAmount *float64 `json:"payment_amount,omitempty" binding:"omitempty,gt=0"`
	PaymentMode   *string  `json:"payment_mode,omitempty" binding:"omitempty,oneof=cash online"`
	Notes         *string  `json:"notes,omitempty"`
}

type CancelMembershipRequestBody struct {
	Reason *string `json:"reason,omitempty"`
}

type DeductHoursRequestBody struct {
	Hours float64 `json:"hours" binding:"required,gt=0"`
}

type CreateCustomerRequestBody struct {
	Name          string  `json:"name" binding:"required"`
	Phone         string  `json:"phone" binding:"required"`
	Email         *string `json:"email,omitempty" binding:"omitempty,email"`
	PendingCredit float64 `json:"pending_credit,omitempty" binding:"omitempty,min=0"`
	Notes         *string `json:"notes,omitempty"`
}

type PayCreditRequestBody struct {
	CashAmount   float64 `json:"cash_amount" binding:"min=0"`
	OnlineAmount float64 `json:"online_amount" binding:"min=0"`
}

type UpdateSettingRequestBody struct {
	Value string `json:"value" binding:"required"`
}
