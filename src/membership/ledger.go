// Package membership owns every mutation of customer membership records:
// purchase, hour deduction, cancellation and the expiry sweep. Entry opening
// calls into ValidateForEntry/DeductHoursTx inside its own transaction so a
// deduction can never be split from the session it pays for.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/lib"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"gorm.io/gorm"
)

// Now is swapped out by tests to simulate time advancement.
var Now = time.Now

const flagCacheKey = "settings:membership_enabled"

// IsEnabled reports whether the membership system is switched on. The flag
// lives in the settings table and is cached in redis for a minute when a
// client is configured.
func IsEnabled() bool {
	if rdb := lib.GetRedisClient(); rdb != nil {
		val, err := rdb.Get(context.Background(), flagCacheKey).Result()
		if err == nil {
			return val == "true"
		}
	}
	gdb := db.GetDb()
	var setting models.Setting
	err := gdb.
		Where(&models.Setting{SettingKey: models.SETTING_MEMBERSHIP_ENABLED}).
		First(&setting).
		Error
	if err != nil {
		return false
	}
	if rdb := lib.GetRedisClient(); rdb != nil {
		if err := rdb.Set(context.Background(), flagCacheKey, setting.SettingValue, time.Minute).Err(); err != nil {
			log.Printf("Failed to cache membership flag: %s\n", err.Error())
		}
	}
	return setting.SettingValue == "true"
}

// InvalidateFlagCache drops the cached flag after a settings write.
func InvalidateFlagCache() {
	if rdb := lib.GetRedisClient(); rdb != nil {
		if err := rdb.Del(context.Background(), flagCacheKey).Err(); err != nil {
			log.Printf("Failed to invalidate membership flag cache: %s\n", err.Error())
		}
	}
}

// ValidateForEntry checks that a membership can pay for a session on the
// given machine: owned by the customer, active, unexpired, hours left and a
// matching machine type. Returns the locked membership row.
func ValidateForEntry(tx *gorm.DB, membershipID, customerID uint, machine *models.Machine) (*models.CustomerMembership, error) {
	if !IsEnabled() {
		return nil, fmt.Errorf("%w: membership system is currently disabled", types.ErrInvalidState)
	}
	var m models.CustomerMembership
	err := db.ForUpdate(tx).
		Preload("Plan").
		Where(&models.CustomerMembership{ID: membershipID}).
		First(&m).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: membership %d", types.ErrNotFound, membershipID)
		}
		return nil, err
	}
	if m.CustomerID != customerID {
		return nil, fmt.Errorf("%w: membership does not belong to this customer", types.ErrMembershipInvalid)
	}
	if m.Status != types.MEMBERSHIP_ACTIVE {
		return nil, fmt.Errorf("%w: membership is %s, not active", types.ErrMembershipInvalid, m.Status)
	}
	if m.HoursRemaining <= 0 {
		return nil, fmt.Errorf("%w: membership has no hours remaining", types.ErrMembershipInvalid)
	}
	if Now().After(m.ExpiryDate) {
		return nil, fmt.Errorf("%w: membership has expired", types.ErrMembershipInvalid)
	}
	if m.Plan != nil && m.Plan.MachineType != machine.Type {
		return nil, fmt.Errorf("%w: membership is for %s machines, but selected machine is %s",
			types.ErrMembershipInvalid, m.Plan.MachineType, machine.Type)
	}
	return &m, nil
}

// DeductHoursTx burns hours from an active membership. HoursRemaining is
// clamped at 0 and HoursUsed recomputed so the two always sum to HoursTotal;
// reaching exactly 0 flips the membership to exhausted.
func DeductHoursTx(tx *gorm.DB, membershipID uint, hours float64) (*models.CustomerMembership, error) {
	var m models.CustomerMembership
	err := db.ForUpdate(tx).
		Where(&models.CustomerMembership{ID: membershipID}).
		First(&m).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: membership %d", types.ErrNotFound, membershipID)
		}
		return nil, err
	}
	if m.Status != types.MEMBERSHIP_ACTIVE {
		return nil, fmt.Errorf("%w: membership is %s, not active", types.ErrMembershipInvalid, m.Status)
	}
	remaining := m.HoursRemaining - hours
	if remaining < 0 {
		remaining = 0
	}
	status := m.Status
	if remaining == 0 {
		status = types.MEMBERSHIP_EXHAUSTED
	}
	updates := map[string]any{
		"hours_remaining": remaining,
		"hours_used":      m.HoursTotal - remaining,
		"status":          status,
	}
	if err := tx.Model(&models.CustomerMembership{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	m.HoursRemaining = remaining
	m.HoursUsed = m.HoursTotal - remaining
	m.Status = status
	return &m, nil
}

// DeductHours is the standalone variant used by the deduct endpoint.
func DeductHours(membershipID uint, hours float64) (*models.CustomerMembership, error) {
	gdb := db.GetDb()
	var out *models.CustomerMembership
	err := gdb.Transaction(func(tx *gorm.DB) error {
		m, err := DeductHoursTx(tx, membershipID, hours)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Purchase creates an active membership from a plan; expiry is purchase
// date plus the plan's validity window.
func Purchase(body *types.PurchaseMembershipRequestBody) (*models.CustomerMembership, error) {
	if !IsEnabled() {
		return nil, fmt.Errorf("%w: membership system is currently disabled", types.ErrInvalidState)
	}
	gdb := db.GetDb()
	var out models.CustomerMembership
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, body.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %d", types.ErrNotFound, body.CustomerID)
			}
			return err
		}
		var plan models.MembershipPlan
		if err := tx.First(&plan, body.PlanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: membership plan %d", types.ErrNotFound, body.PlanID)
			}
			return err
		}
		if !plan.IsActive {
			return fmt.Errorf("%w: membership plan is not active", types.ErrInvalidState)
		}
		purchaseDate := Now()
		paymentAmount := plan.Price
		if body.PaymentAmount != nil {
			paymentAmount = *body.PaymentAmount
		}
		paymentMode := "cash"
		if body.PaymentMode != nil {
			paymentMode = *body.PaymentMode
		}
		m := models.CustomerMembership{
			CustomerID:     body.CustomerID,
			PlanID:         plan.ID,
			PurchaseDate:   purchaseDate,
			ExpiryDate:     purchaseDate.AddDate(0, 0, plan.ValidityDays),
			HoursTotal:     plan.Hours,
			HoursRemaining: plan.Hours,
			HoursUsed:      0,
			Status:         types.MEMBERSHIP_ACTIVE,
			PaymentAmount:  paymentAmount,
			PaymentMode:    paymentMode,
			Notes:          body.Notes,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Preload("Plan").Preload("Customer").First(&out, m.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel moves a membership to the terminal cancelled state.
func Cancel(membershipID uint, reason *string) (*models.CustomerMembership, error) {
	gdb := db.GetDb()
	var out models.CustomerMembership
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var m models.CustomerMembership
		if err := db.ForUpdate(tx).First(&m, membershipID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: membership %d", types.ErrNotFound, membershipID)
			}
			return err
		}
		if m.Status != types.MEMBERSHIP_ACTIVE {
			return fmt.Errorf("%w: membership is %s, not active", types.ErrMembershipInvalid, m.Status)
		}
		now := Now()
		updates := map[string]any{
			"status":       types.MEMBERSHIP_CANCELED,
			"cancelled_at": now,
		}
		if reason != nil {
			updates["cancel_reason"] = *reason
		}
		if err := tx.Model(&models.CustomerMembership{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Preload("Plan").First(&out, m.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExpireSweep transitions every active membership whose expiry date has
// passed to expired, and returns how many rows moved. Runs on the same
// cadence as the auto-end sweep.
func ExpireSweep() (int64, error) {
	gdb := db.GetDb()
	res := gdb.
		Model(&models.CustomerMembership{}).
		Where("status = ? AND expiry_date < ?", types.MEMBERSHIP_ACTIVE, Now()).
		Update("status", types.MEMBERSHIP_EXPIRED)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
