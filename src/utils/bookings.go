package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/billing"
	"github.com/deathmover/sgh-crm-backend-new/src/config"
	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conflict struct {
	Type      string     `json:"type"`
	ID        uint       `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type AvailabilityParams struct {
	MachineID        uint
	PCNumber         *string
	Start            time.Time
	End              time.Time
	ExcludeBookingID *uint
}

// CheckAvailability reports whether a window on a machine (optionally a
// specific unit) is free, with the colliding bookings and sessions for
// diagnostics. A CHECKED_IN booking whose session already closed is not a
// conflict. Running sessions conflict when their projected end falls after
// the window's start; with no predefined duration the end is unknowable, so
// they always conflict.
func CheckAvailability(tx *gorm.DB, p AvailabilityParams) (bool, []Conflict, error) {
	q := tx.
		Model(&models.Booking{}).
		Preload("Entry").
		Where("machine_id = ? AND status IN ?", p.MachineID,
			[]types.BookingStatus{types.BOOKING_CONFIRMED, types.BOOKING_CHECKED_IN}).
		Where("start_time < ? AND end_time > ?", p.End, p.Start)
	if p.PCNumber != nil {
		q = q.Where("pc_number = ?", *p.PCNumber)
	}
	if p.ExcludeBookingID != nil {
		q = q.Where("id <> ?", *p.ExcludeBookingID)
	}
	var bookings []models.Booking
	if err := q.Find(&bookings).Error; err != nil {
		return false, nil, err
	}

	conflicts := []Conflict{}
	for i := range bookings {
		b := &bookings[i]
		if b.Status == types.BOOKING_CHECKED_IN && b.Entry != nil && b.Entry.EndTime != nil {
			continue
		}
		end := b.EndTime
		conflicts = append(conflicts, Conflict{Type: "booking", ID: b.ID, StartTime: b.StartTime, EndTime: &end})
	}

	eq := tx.
		Model(&models.Entry{}).
		Where("machine_id = ? AND end_time IS NULL AND is_deleted = ?", p.MachineID, false)
	if p.PCNumber != nil {
		eq = eq.Where("pc_number = ?", *p.PCNumber)
	}
	var entries []models.Entry
	if err := eq.Find(&entries).Error; err != nil {
		return false, nil, err
	}
	for i := range entries {
		e := &entries[i]
		if e.PredefinedDuration != nil {
			projectedEnd := e.StartTime.Add(time.Duration(*e.PredefinedDuration) * time.Minute)
			if !projectedEnd.After(p.Start) {
				continue
			}
		}
		conflicts = append(conflicts, Conflict{Type: "entry", ID: e.ID, StartTime: e.StartTime, EndTime: e.EndTime})
	}

	return len(conflicts) == 0, conflicts, nil
}

// CreateBooking validates the advance window (future start, at most
// BOOKING_HORIZON_DAYS ahead, end after start), checks the slot and persists
// a CONFIRMED booking.
func CreateBooking(body *types.CreateBookingRequestBody) (*models.Booking, error) {
	start, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start_time: %s", types.ErrValidation, err.Error())
	}
	end, err := time.Parse(config.TIME_PARSE_FORMAT, body.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end_time: %s", types.ErrValidation, err.Error())
	}
	now := Now()
	if !start.After(now) {
		return nil, fmt.Errorf("%w: booking start time must be in the future", types.ErrValidation)
	}
	y, m, d := now.AddDate(0, 0, config.BOOKING_HORIZON_DAYS).Date()
	horizon := time.Date(y, m, d, 23, 59, 59, 0, now.Location())
	if start.After(horizon) {
		return nil, fmt.Errorf("%w: bookings can only be made up to %d days in advance",
			types.ErrValidation, config.BOOKING_HORIZON_DAYS)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", types.ErrValidation)
	}

	gdb := db.GetDb()
	var out models.Booking
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, body.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %d", types.ErrNotFound, body.CustomerID)
			}
			return err
		}
		var machine models.Machine
		if err := db.ForUpdate(tx).First(&machine, body.MachineID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: machine %d", types.ErrNotFound, body.MachineID)
			}
			return err
		}

		available, conflicts, err := CheckAvailability(tx, AvailabilityParams{
			MachineID: machine.ID,
			PCNumber:  body.PCNumber,
			Start:     start,
			End:       end,
		})
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: %d conflicting reservation(s)", types.ErrSlotUnavailable, len(conflicts))
		}

		booking := models.Booking{
			Reference:      uuid.NewString(),
			CustomerID:     body.CustomerID,
			MachineID:      machine.ID,
			PCNumber:       body.PCNumber,
			BookingDate:    time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()),
			StartTime:      start,
			EndTime:        end,
			Duration:       body.Duration,
			AdvancePayment: body.AdvancePayment,
			CashAmount:     body.CashAmount,
			OnlineAmount:   body.OnlineAmount,
			CreditAmount:   body.CreditAmount,
			Discount:       body.Discount,
			Status:         types.BOOKING_CONFIRMED,
			Notes:          body.Notes,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return tx.Preload("Customer").Preload("Machine").First(&out, booking.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBooking mutates a CONFIRMED booking; a changed window or machine is
// re-checked for conflicts with the booking itself excluded.
func UpdateBooking(id uint, body *types.UpdateBookingRequestBody) (*models.Booking, error) {
	gdb := db.GetDb()
	var out models.Booking
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := db.ForUpdate(tx).First(&booking, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking %d", types.ErrNotFound, id)
			}
			return err
		}
		if booking.Status != types.BOOKING_CONFIRMED {
			return fmt.Errorf("%w: cannot update booking with status %s", types.ErrInvalidState, booking.Status)
		}

		updates := map[string]any{}
		machineID := booking.MachineID
		pcNumber := booking.PCNumber
		start := booking.StartTime
		end := booking.EndTime
		windowChanged := false

		if body.MachineID != nil && *body.MachineID != booking.MachineID {
			var m models.Machine
			if err := tx.First(&m, *body.MachineID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: machine %d", types.ErrNotFound, *body.MachineID)
				}
				return err
			}
			machineID = m.ID
			updates["machine_id"] = m.ID
			windowChanged = true
		}
		if body.PCNumber != nil {
			pcNumber = body.PCNumber
			updates["pc_number"] = *body.PCNumber
			windowChanged = true
		}
		if body.StartTime != nil {
			t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.StartTime)
			if err != nil {
				return fmt.Errorf("%w: invalid start_time: %s", types.ErrValidation, err.Error())
			}
			start = t
			updates["start_time"] = t
			updates["booking_date"] = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
			windowChanged = true
		}
		if body.EndTime != nil {
			t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.EndTime)
			if err != nil {
				return fmt.Errorf("%w: invalid end_time: %s", types.ErrValidation, err.Error())
			}
			end = t
			updates["end_time"] = t
			windowChanged = true
		}
		if !end.After(start) {
			return fmt.Errorf("%w: end time must be after start time", types.ErrValidation)
		}
		if body.Duration != nil {
			updates["duration"] = *body.Duration
		}
		if body.CashAmount != nil {
			updates["cash_amount"] = *body.CashAmount
		}
		if body.OnlineAmount != nil {
			updates["online_amount"] = *body.OnlineAmount
		}
		if body.CreditAmount != nil {
			updates["credit_amount"] = *body.CreditAmount
		}
		if body.Discount != nil {
			updates["discount"] = *body.Discount
		}
		if body.Notes != nil {
			updates["notes"] = *body.Notes
		}

		if windowChanged {
			available, conflicts, err := CheckAvailability(tx, AvailabilityParams{
				MachineID:        machineID,
				PCNumber:         pcNumber,
				Start:            start,
				End:              end,
				ExcludeBookingID: &booking.ID,
			})
			if err != nil {
				return err
			}
			if !available {
				return fmt.Errorf("%w: %d conflicting reservation(s)", types.ErrSlotUnavailable, len(conflicts))
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Customer").Preload("Machine").First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckInBooking turns a CONFIRMED booking into a running session. The new
// entry starts now with the booked duration predefined, carries the advance
// payments, and its provisional amount is the priced booked window less the
// booking's discount (floored at zero). The booking flips to CHECKED_IN
// one-way via a compare-and-set on its status.
func CheckInBooking(id uint) (*models.Booking, *models.Entry, error) {
	gdb := db.GetDb()
	var outBooking models.Booking
	var outEntry models.Entry
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Preload("Machine").First(&booking, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking %d", types.ErrNotFound, id)
			}
			return err
		}
		if booking.Status != types.BOOKING_CONFIRMED {
			return fmt.Errorf("%w: cannot check in booking with status %s", types.ErrInvalidState, booking.Status)
		}

		var machine models.Machine
		if err := db.ForUpdate(tx).First(&machine, booking.MachineID).Error; err != nil {
			return err
		}
		var running int64
		err := tx.
			Model(&models.Entry{}).
			Where("machine_id = ? AND end_time IS NULL AND is_deleted = ?", machine.ID, false).
			Count(&running).
			Error
		if err != nil {
			return err
		}
		if running >= int64(machine.Units) {
			return fmt.Errorf("%w: machine %s", types.ErrCapacityExceeded, machine.Name)
		}

		rounded := billing.RoundDuration(booking.Duration)
		cost := billing.CalculateCost(rateScheduleOf(&machine), rounded)
		cost *= unitMultiplier(&machine, booking.PCNumber)
		finalAmount := cost - booking.Discount
		if finalAmount < 0 {
			finalAmount = 0
		}

		var paymentStatus *types.PaymentStatus
		if booking.CashAmount+booking.OnlineAmount+booking.CreditAmount > 0 {
			s := types.PAYMENT_PARTIAL
			paymentStatus = &s
		}

		now := Now()
		duration := booking.Duration
		entry := models.Entry{
			CustomerID:         booking.CustomerID,
			MachineID:          booking.MachineID,
			PCNumber:           booking.PCNumber,
			StartTime:          now,
			PredefinedDuration: &duration,
			RoundedDuration:    &rounded,
			Cost:               cost,
			Discount:           booking.Discount,
			FinalAmount:        finalAmount,
			CashAmount:         booking.CashAmount,
			OnlineAmount:       booking.OnlineAmount,
			CreditAmount:       booking.CreditAmount,
			PaymentStatus:      paymentStatus,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, types.BOOKING_CONFIRMED).
			Updates(map[string]any{
				"status":        types.BOOKING_CHECKED_IN,
				"checked_in_at": now,
				"entry_id":      entry.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: booking is no longer CONFIRMED", types.ErrInvalidState)
		}

		if err := tx.Preload("Customer").Preload("Machine").Preload("Entry").First(&outBooking, booking.ID).Error; err != nil {
			return err
		}
		return tx.Preload("Customer").Preload("Machine").First(&outEntry, entry.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &outBooking, &outEntry, nil
}

// CancelBooking moves a CONFIRMED booking to the terminal CANCELLED state.
func CancelBooking(id uint, body *types.CancelBookingRequestBody) (*models.Booking, error) {
	gdb := db.GetDb()
	var out models.Booking
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.First(&booking, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking %d", types.ErrNotFound, id)
			}
			return err
		}
		if booking.Status != types.BOOKING_CONFIRMED {
			return fmt.Errorf("%w: cannot cancel booking with status %s", types.ErrInvalidState, booking.Status)
		}
		updates := map[string]any{
			"status":       types.BOOKING_CANCELED,
			"cancelled_at": Now(),
		}
		if body != nil && body.Reason != nil {
			reason := fmt.Sprintf("Cancellation reason: %s", *body.Reason)
			if notes := joinNotes(booking.Notes, &reason); notes != nil {
				updates["notes"] = *notes
			}
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, types.BOOKING_CONFIRMED).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: booking is no longer CONFIRMED", types.ErrInvalidState)
		}
		return tx.Preload("Customer").Preload("Machine").First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
