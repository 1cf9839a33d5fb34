// Package utils holds the transactional business flows: the entry state
// machine, the booking conflict resolver, the credit payoff and the auto-end
// sweep. Handlers bind requests and delegate here.
package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/billing"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
)

// Now is swapped out by tests to simulate time advancement.
var Now = time.Now

func rateScheduleOf(machine *models.Machine) billing.RateSchedule {
	return billing.RateSchedule{
		HourlyRate:     machine.HourlyRate,
		HalfHourlyRate: machine.HalfHourlyRate,
		PackageRates:   machine.PackageRates,
	}
}

// unitMultiplier returns the number of active units a session is billed
// for. Multi-controller consoles are charged per controller; the unit label
// then carries the controller count. Applied after the base calculation,
// never before.
func unitMultiplier(machine *models.Machine, pcNumber *string) float64 {
	if machine.Type != "ps5" || pcNumber == nil {
		return 1
	}
	controllers, err := strconv.Atoi(*pcNumber)
	if err != nil || controllers < 1 {
		return 1
	}
	return float64(controllers)
}

func joinNotes(parts ...*string) *string {
	var filled []string
	for _, p := range parts {
		if p != nil && *p != "" {
			filled = append(filled, *p)
		}
	}
	if len(filled) == 0 {
		return nil
	}
	joined := strings.Join(filled, " | ")
	return &joined
}
