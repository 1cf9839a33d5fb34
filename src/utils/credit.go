package utils

import (
	"errors"
	"fmt"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditAllocation struct {
	EntryID       uint                `json:"entry_id"`
	Applied       float64             `json:"applied"`
	CashPortion   float64             `json:"cash_portion"`
	OnlinePortion float64             `json:"online_portion"`
	RemainingDue  float64             `json:"remaining_due"`
	PaymentStatus types.PaymentStatus `json:"payment_status"`
}

type PayCreditResult struct {
	Receipt           string             `json:"receipt"`
	CustomerID        uint               `json:"customer_id"`
	TotalPaid         float64            `json:"total_paid"`
	Allocations       []CreditAllocation `json:"allocations"`
	PendingCreditPaid float64            `json:"pending_credit_paid"`
	PendingCredit     float64            `json:"pending_credit"`
	Unallocated       float64            `json:"unallocated"`
}

// PayCredit settles a customer's outstanding credit, oldest closed session
// first. The cash/online split of each allocation follows the ratio of the
// payment itself; whatever survives the per-session ledger is applied to the
// customer's scalar pending credit, floored at zero.
func PayCredit(customerID uint, body *types.PayCreditRequestBody) (*PayCreditResult, error) {
	total := body.CashAmount + body.OnlineAmount
	if total <= 0 {
		return nil, fmt.Errorf("%w: payment must be greater than zero", types.ErrInvalidAmount)
	}
	cashRatio := body.CashAmount / total

	gdb := db.GetDb()
	var result PayCreditResult
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := db.ForUpdate(tx).First(&customer, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %d", types.ErrNotFound, customerID)
			}
			return err
		}

		var entries []models.Entry
		err := tx.
			Where("customer_id = ? AND end_time IS NOT NULL AND credit_amount > 0 AND is_deleted = ?", customerID, false).
			Order("end_time asc").
			Find(&entries).
			Error
		if err != nil {
			return err
		}
		if len(entries) == 0 && customer.PendingCredit <= 0 {
			return fmt.Errorf("%w: customer %d", types.ErrNoOutstandingCredit, customerID)
		}

		remaining := total
		allocations := []CreditAllocation{}
		for i := range entries {
			if remaining <= 0 {
				break
			}
			entry := &entries[i]
			applied := entry.CreditAmount
			if applied > remaining {
				applied = remaining
			}
			cashPortion := applied * cashRatio
			onlinePortion := applied - cashPortion

			newCredit := entry.CreditAmount - applied
			newCash := entry.CashAmount + cashPortion
			newOnline := entry.OnlineAmount + onlinePortion
			var status types.PaymentStatus
			switch {
			case newCredit == 0:
				status = types.PAYMENT_PAID
			case newCash+newOnline > 0:
				status = types.PAYMENT_PARTIAL
			default:
				status = types.PAYMENT_UNPAID
			}

			err := tx.
				Model(&models.Entry{}).
				Where("id = ?", entry.ID).
				Updates(map[string]any{
					"credit_amount":  newCredit,
					"cash_amount":    newCash,
					"online_amount":  newOnline,
					"payment_status": status,
				}).
				Error
			if err != nil {
				return err
			}

			allocations = append(allocations, CreditAllocation{
				EntryID:       entry.ID,
				Applied:       applied,
				CashPortion:   cashPortion,
				OnlinePortion: onlinePortion,
				RemainingDue:  newCredit,
				PaymentStatus: status,
			})
			remaining -= applied
		}

		pendingPaid := 0.0
		pending := customer.PendingCredit
		if remaining > 0 && pending > 0 {
			pendingPaid = remaining
			if pendingPaid > pending {
				pendingPaid = pending
			}
			pending -= pendingPaid
			remaining -= pendingPaid
			err := tx.
				Model(&models.Customer{}).
				Where("id = ?", customerID).
				Update("pending_credit", pending).
				Error
			if err != nil {
				return err
			}
		}

		result = PayCreditResult{
			Receipt:           uuid.NewString(),
			CustomerID:        customerID,
			TotalPaid:         total,
			Allocations:       allocations,
			PendingCreditPaid: pendingPaid,
			PendingCredit:     pending,
			Unallocated:       remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
