package utils

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/billing"
	"github.com/deathmover/sgh-crm-backend-new/src/config"
	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/membership"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"gorm.io/gorm"
)

// OpenEntry starts a session. Capacity is checked under a lock on the
// machine row so two concurrent opens cannot both take the last unit. When a
// predefined duration is given a provisional cost is computed up front, and
// a referenced membership has the exact requested hours (not the rounded
// ones) deducted in the same transaction.
func OpenEntry(body *types.CreateEntryRequestBody) (*models.Entry, error) {
	startTime, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start_time: %s", types.ErrValidation, err.Error())
	}

	gdb := db.GetDb()
	var out models.Entry
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

		var member *models.CustomerMembership
		if body.UseMembershipID != nil {
			member, err = membership.ValidateForEntry(tx, *body.UseMembershipID, body.CustomerID, &machine)
			if err != nil {
				return err
			}
			if body.PredefinedDuration != nil {
				hoursNeeded := float64(*body.PredefinedDuration) / 60
				if hoursNeeded > member.HoursRemaining {
					return fmt.Errorf("%w: need %.2f hrs, available %.2f hrs",
						types.ErrInsufficientHours, hoursNeeded, member.HoursRemaining)
				}
			}
		}

		totalAdvance := body.CashAmount + body.OnlineAmount + body.CreditAmount
		var paymentStatus *types.PaymentStatus
		if totalAdvance > 0 {
			s := types.PAYMENT_PARTIAL
			paymentStatus = &s
		}
		if member != nil {
			s := types.PAYMENT_PAID
			paymentStatus = &s
		}

		entry := models.Entry{
			CustomerID:   body.CustomerID,
			MachineID:    machine.ID,
			PCNumber:     body.PCNumber,
			StartTime:    startTime,
			CashAmount:   body.CashAmount,
			OnlineAmount: body.OnlineAmount,
			CreditAmount: body.CreditAmount,
			Notes:        body.Notes,
		}
		if body.PredefinedDuration != nil {
			rounded := billing.RoundDuration(*body.PredefinedDuration)
			cost := billing.CalculateCost(rateScheduleOf(&machine), rounded)
			cost *= unitMultiplier(&machine, body.PCNumber)
			entry.PredefinedDuration = body.PredefinedDuration
			entry.RoundedDuration = &rounded
			entry.Cost = cost
			if member == nil {
				entry.FinalAmount = cost
			}
			if member != nil {
				hoursToDeduct := float64(*body.PredefinedDuration) / 60
				entry.MembershipID = &member.ID
				entry.MembershipHours = &hoursToDeduct
				if _, err := membership.DeductHoursTx(tx, member.ID, hoursToDeduct); err != nil {
					return err
				}
			}
		} else if member != nil {
			entry.MembershipID = &member.ID
		}
		entry.PaymentStatus = paymentStatus

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Preload("Customer").Preload("Machine").Preload("Membership.Plan").First(&out, entry.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseEntry ends a session exactly once. The write is a compare-and-set on
// "end_time IS NULL" so a manual close racing the sweep cannot bill twice;
// the loser fails with ErrEntryClosed. The charged play amount falls back in
// order: explicit override, the provisional amount fixed at open time when a
// predefined duration existed, then the cost of the rounded elapsed time.
// New payments are added on top of advances captured at open.
func CloseEntry(id uint, endTime time.Time, body *types.EndEntryRequestBody, autoEnded bool) (*models.Entry, error) {
	gdb := db.GetDb()
	var out models.Entry
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		err := tx.Preload("Machine").Where(&models.Entry{ID: id}).First(&entry).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: entry %d", types.ErrNotFound, id)
			}
			return err
		}
		if entry.EndTime != nil {
			return types.ErrEntryClosed
		}
		if !endTime.After(entry.StartTime) {
			return fmt.Errorf("%w: end time must be after start time", types.ErrValidation)
		}

		minutes := int(endTime.Sub(entry.StartTime).Minutes())
		rounded := billing.RoundDuration(minutes)
		cost := billing.CalculateCost(rateScheduleOf(entry.Machine), rounded)
		cost *= unitMultiplier(entry.Machine, entry.PCNumber)

		var playAmount float64
		switch {
		case body.FinalAmount != nil && *body.FinalAmount > 0:
			playAmount = *body.FinalAmount
		case entry.PredefinedDuration != nil:
			playAmount = entry.FinalAmount
		default:
			playAmount = cost
		}
		finalAmount := playAmount + entry.BeveragesAmount

		cash := entry.CashAmount + body.CashAmount
		online := entry.OnlineAmount + body.OnlineAmount
		credit := entry.CreditAmount + body.CreditAmount
		status := billing.DerivePaymentStatus(cash+online+credit, finalAmount)

		updates := map[string]any{
			"end_time":         endTime,
			"duration":         minutes,
			"rounded_duration": rounded,
			"cost":             cost,
			"final_amount":     finalAmount,
			"cash_amount":      cash,
			"online_amount":    online,
			"credit_amount":    credit,
			"payment_status":   status,
			"auto_ended":       autoEnded,
		}
		if notes := joinNotes(entry.Notes, body.Notes); notes != nil {
			updates["notes"] = *notes
		}
		res := tx.
			Model(&models.Entry{}).
			Where("id = ? AND end_time IS NULL", id).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrEntryClosed
		}
		return tx.Preload("Customer").Preload("Machine").First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEntry applies administrative corrections. Changing the predefined
// duration reprices the session; other fields pass through.
func UpdateEntry(id uint, body *types.UpdateEntryRequestBody) (*models.Entry, error) {
	gdb := db.GetDb()
	var out models.Entry
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		if err := tx.Preload("Machine").First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: entry %d", types.ErrNotFound, id)
			}
			return err
		}

		updates := map[string]any{}
		machine := entry.Machine
		if body.MachineID != nil && *body.MachineID != entry.MachineID {
			var m models.Machine
			if err := tx.First(&m, *body.MachineID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: machine %d", types.ErrNotFound, *body.MachineID)
				}
				return err
			}
			machine = &m
			updates["machine_id"] = m.ID
		}
		pcNumber := entry.PCNumber
		if body.PCNumber != nil {
			pcNumber = body.PCNumber
			updates["pc_number"] = *body.PCNumber
		}
		beverages := entry.BeveragesAmount
		if body.BeveragesAmount != nil {
			beverages = *body.BeveragesAmount
			updates["beverages_amount"] = beverages
		}
		if body.Notes != nil {
			updates["notes"] = *body.Notes
		}

		if body.PredefinedDuration != nil {
			rounded := billing.RoundDuration(*body.PredefinedDuration)
			cost := billing.CalculateCost(rateScheduleOf(machine), rounded)
			cost *= unitMultiplier(machine, pcNumber)
			updates["predefined_duration"] = *body.PredefinedDuration
			updates["rounded_duration"] = rounded
			updates["cost"] = cost
			if body.FinalAmount == nil {
				updates["final_amount"] = cost + beverages
			}
		}
		if body.FinalAmount != nil {
			updates["final_amount"] = *body.FinalAmount
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Entry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
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

// UpdateEntryPayment replaces the split payment fields and rederives the
// status against the entry's final amount.
func UpdateEntryPayment(id uint, body *types.UpdatePaymentRequestBody) (*models.Entry, error) {
	gdb := db.GetDb()
	var out models.Entry
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: entry %d", types.ErrNotFound, id)
			}
			return err
		}
		totalPaid := body.CashAmount + body.OnlineAmount + body.CreditAmount
		status := billing.DerivePaymentStatus(totalPaid, entry.FinalAmount)
		updates := map[string]any{
			"cash_amount":    body.CashAmount,
			"online_amount":  body.OnlineAmount,
			"credit_amount":  body.CreditAmount,
			"payment_status": status,
		}
		if body.Notes != nil {
			updates["notes"] = *body.Notes
		}
		if err := tx.Model(&models.Entry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Preload("Customer").Preload("Machine").First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AutoEndExpiredEntries force-closes every running session whose predefined
// duration has elapsed, using the projected end time and no new payments.
// A failure on one entry is logged and does not stop the rest; an entry
// closed by a racing manual close is simply skipped. Returns the number of
// entries ended.
func AutoEndExpiredEntries() int {
	gdb := db.GetDb()
	var entries []models.Entry
	err := gdb.
		Where("end_time IS NULL AND predefined_duration IS NOT NULL AND is_deleted = ?", false).
		Find(&entries).
		Error
	if err != nil {
		log.Printf("Error scanning for expired entries: %s\n", err.Error())
		return 0
	}
	now := Now()
	ended := 0
	for i := range entries {
		entry := &entries[i]
		expectedEnd := entry.StartTime.Add(time.Duration(*entry.PredefinedDuration) * time.Minute)
		if now.Before(expectedEnd) {
			continue
		}
		note := "Auto-ended at predefined duration"
		if _, err := CloseEntry(entry.ID, expectedEnd, &types.EndEntryRequestBody{Notes: &note}, true); err != nil {
			if !errors.Is(err, types.ErrEntryClosed) {
				log.Printf("Error auto-ending entry %d: %s\n", entry.ID, err.Error())
			}
			continue
		}
		ended++
	}
	return ended
}
