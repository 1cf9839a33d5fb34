// Package billing holds the pure pricing rules: duration rounding, tiered
// cost calculation and payment-status derivation. Nothing here touches the
// database; callers load the rate schedule and persist the results.
package billing

import (
	"math"

	"github.com/deathmover/sgh-crm-backend-new/src/types"
)

type RateSchedule struct {
	HourlyRate     float64
	HalfHourlyRate *float64
	PackageRates   types.PackageRates
}

// RoundDuration rounds raw elapsed minutes to the nearest 30-minute
// boundary: a remainder under 15 rounds down, 15 or more rounds up.
func RoundDuration(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	remainder := minutes % 30
	if remainder < 15 {
		return minutes - remainder
	}
	return minutes + (30 - remainder)
}

// CalculateCost prices a rounded duration against a machine's rate schedule.
// At most one package tier is applied: the largest package that fits is
// charged once as a flat block and only the remainder falls through to the
// hourly/half-hourly rates. Packages never stack.
func CalculateCost(rates RateSchedule, durationMinutes int) float64 {
	if durationMinutes <= 0 {
		return 0
	}
	durationHours := float64(durationMinutes) / 60
	for _, packageHours := range rates.PackageRates.HoursDesc() {
		if durationHours >= float64(packageHours) {
			remaining := durationMinutes - packageHours*60
			return rates.PackageRates[packageHours] + blockCost(rates, remaining)
		}
	}
	return blockCost(rates, durationMinutes)
}

// blockCost prices minutes with the hourly/half-hourly rates only. With a
// half-hourly rate, up to 30 minutes costs one half-hour block; beyond that,
// full hours are charged and a trailing block of exactly 30 minutes gets the
// half-hourly rate while any other nonzero leftover costs a full hour.
// Without a half-hourly rate, hours are simply rounded up.
func blockCost(rates RateSchedule, minutes int) float64 {
	if minutes <= 0 {
		return 0
	}
	if rates.HalfHourlyRate != nil {
		if minutes <= 30 {
			return *rates.HalfHourlyRate
		}
		fullHours := minutes / 60
		leftover := minutes % 60
		cost := float64(fullHours) * rates.HourlyRate
		if leftover == 30 {
			cost += *rates.HalfHourlyRate
		} else if leftover > 0 {
			cost += rates.HourlyRate
		}
		return cost
	}
	return math.Ceil(float64(minutes)/60) * rates.HourlyRate
}

// DerivePaymentStatus maps the paid total against the owed amount.
func DerivePaymentStatus(totalPaid, finalAmount float64) types.PaymentStatus {
	if totalPaid >= finalAmount {
		return types.PAYMENT_PAID
	}
	if totalPaid > 0 {
		return types.PAYMENT_PARTIAL
	}
	return types.PAYMENT_UNPAID
}
