package main

import (
	"fmt"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func (s *TestSuite) availability(machineID uint, start, end time.Time) (bool, int64) {
	path := fmt.Sprintf("/api/v1/bookings/availability?machine=%d&start_time=%s&end_time=%s",
		machineID, urlQueryEscape(timeStr(start)), urlQueryEscape(timeStr(end)))
	w := s.do("GET", path, nil)
	s.Require().Equal(200, w.Code)
	body := readBody(w)
	return gjson.Get(body, "available").Bool(), gjson.Get(body, "conflicts.#").Int()
}

func (s *TestSuite) TestBookingWindowValidation() {
	machine := s.createMachine("PC-BookingWindow", types.MACHINE_PC, 1, 50, nil, nil)
	customer := s.createCustomer("Booking Window Customer", "9000000010")

	s.Run("Should reject a booking starting in the past", func() {
		w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(time.Now().Add(-time.Hour)),
			EndTime:    timeStr(time.Now().Add(time.Hour)),
			Duration:   60,
		})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a booking beyond the advance horizon", func() {
		start := time.Now().AddDate(0, 0, 5)
		w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(start),
			EndTime:    timeStr(start.Add(time.Hour)),
			Duration:   60,
		})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject an inverted window", func() {
		start := time.Now().Add(2 * time.Hour)
		w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(start),
			EndTime:    timeStr(start.Add(-30 * time.Minute)),
			Duration:   60,
		})
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestBookingConflicts() {
	machine := s.createMachine("PC-BookingConflict", types.MACHINE_PC, 1, 50, nil, nil)
	customer := s.createCustomer("Booking Conflict Customer", "9000000011")
	start := time.Now().Add(4 * time.Hour)
	end := start.Add(time.Hour)

	var bookingID string
	s.Run("Should confirm the first booking", func() {
		w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(start),
			EndTime:    timeStr(end),
			Duration:   60,
		})
		assert.Equal(s.T(), 201, w.Code)
		body := readBody(w)
		bookingID = gjson.Get(body, "data.id").String()
		assert.Equal(s.T(), "CONFIRMED", gjson.Get(body, "data.status").String())
		assert.NotEmpty(s.T(), gjson.Get(body, "data.reference").String())
	})

	s.Run("Should reject an overlapping booking", func() {
		w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(start.Add(30 * time.Minute)),
			EndTime:    timeStr(end.Add(30 * time.Minute)),
			Duration:   60,
		})
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should report the conflict on the availability endpoint", func() {
		available, conflicts := s.availability(machine.ID, start.Add(15*time.Minute), end.Add(15*time.Minute))
		assert.False(s.T(), available)
		assert.Equal(s.T(), int64(1), conflicts)
	})

	s.Run("Should allow a disjoint window on the same machine", func() {
		available, _ := s.availability(machine.ID, end.Add(time.Hour), end.Add(2*time.Hour))
		assert.True(s.T(), available)
	})

	s.Run("Should free the slot once the booking is cancelled", func() {
		w := s.do("PUT", "/api/v1/bookings/"+bookingID+"/cancel", types.CancelBookingRequestBody{
			Reason: strptr("customer called it off"),
		})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), "CANCELLED", gjson.Get(body, "data.status").String())
		assert.Contains(s.T(), gjson.Get(body, "data.notes").String(), "customer called it off")

		available, _ := s.availability(machine.ID, start, end)
		assert.True(s.T(), available)
	})

	s.Run("Should refuse to cancel twice", func() {
		w := s.do("PUT", "/api/v1/bookings/"+bookingID+"/cancel", nil)
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestBookingCheckIn() {
	machine := s.createMachine("PC-CheckIn", types.MACHINE_PC, 1, 50, floatptr(30), nil)
	customer := s.createCustomer("CheckIn Customer", "9000000012")
	start := time.Now().Add(2 * time.Hour)

	w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
		CustomerID:     customer.ID,
		MachineID:      machine.ID,
		StartTime:      timeStr(start),
		EndTime:        timeStr(start.Add(90 * time.Minute)),
		Duration:       90,
		AdvancePayment: true,
		OnlineAmount:   50,
		Discount:       10,
	})
	s.Require().Equal(201, w.Code)
	bookingID := gjson.Get(readBody(w), "data.id").String()

	var entryID string
	s.Run("Should open a session from the booking", func() {
		w := s.do("PUT", "/api/v1/bookings/"+bookingID+"/check-in", nil)
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), "CHECKED_IN", gjson.Get(body, "data.booking.status").String())
		entryID = gjson.Get(body, "data.entry.id").String()
		assert.NotEmpty(s.T(), entryID)
		assert.Equal(s.T(), int64(90), gjson.Get(body, "data.entry.predefined_duration").Int())
		// 90 min at 1h + half-hour, less the booking discount.
		assert.Equal(s.T(), float64(80), gjson.Get(body, "data.entry.cost").Float())
		assert.Equal(s.T(), float64(70), gjson.Get(body, "data.entry.final_amount").Float())
		assert.Equal(s.T(), float64(50), gjson.Get(body, "data.entry.online_amount").Float())
		assert.Equal(s.T(), "partial", gjson.Get(body, "data.entry.payment_status").String())
	})

	s.Run("Should refuse a second check-in", func() {
		w := s.do("PUT", "/api/v1/bookings/"+bookingID+"/check-in", nil)
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should block the machine while the session runs and free it after", func() {
		available, _ := s.availability(machine.ID, time.Now().Add(time.Minute), time.Now().Add(time.Hour))
		assert.False(s.T(), available)

		w := s.do("PUT", "/api/v1/entries/"+entryID+"/end", types.EndEntryRequestBody{
			EndTime:    timeStr(time.Now().Add(time.Minute)),
			CashAmount: 20,
		})
		assert.Equal(s.T(), 200, w.Code)

		available, _ = s.availability(machine.ID, time.Now().Add(2*time.Minute), time.Now().Add(time.Hour))
		assert.True(s.T(), available)
	})
}

func (s *TestSuite) TestBookingAgainstRunningSessions() {
	machine := s.createMachine("PC-RunningConflict", types.MACHINE_PC, 1, 50, nil, nil)
	customer := s.createCustomer("Running Conflict Customer", "9000000013")

	w := s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
		CustomerID:         customer.ID,
		MachineID:          machine.ID,
		StartTime:          timeStr(time.Now()),
		PredefinedDuration: intptr(60),
	})
	s.Require().Equal(201, w.Code)
	entryID := gjson.Get(readBody(w), "data.id").String()

	s.Run("Should conflict while the projected end overlaps the window", func() {
		available, _ := s.availability(machine.ID, time.Now().Add(30*time.Minute), time.Now().Add(90*time.Minute))
		assert.False(s.T(), available)
	})

	s.Run("Should be free after the projected end", func() {
		available, _ := s.availability(machine.ID, time.Now().Add(2*time.Hour), time.Now().Add(3*time.Hour))
		assert.True(s.T(), available)
	})

	s.Run("Should be conservative for open-ended sessions", func() {
		w := s.do("PUT", "/api/v1/entries/"+entryID+"/end", types.EndEntryRequestBody{
			EndTime: timeStr(time.Now().Add(time.Minute)),
		})
		s.Require().Equal(200, w.Code)

		w = s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
			CustomerID: customer.ID,
			MachineID:  machine.ID,
			StartTime:  timeStr(time.Now()),
		})
		s.Require().Equal(201, w.Code)

		// No predefined duration means no projected end; any window conflicts.
		available, _ := s.availability(machine.ID, time.Now().Add(24*time.Hour), time.Now().Add(25*time.Hour))
		assert.False(s.T(), available)
	})
}

func (s *TestSuite) TestBookingUpdate() {
	machine := s.createMachine("PC-BookingUpdate", types.MACHINE_PC, 1, 50, nil, nil)
	other := s.createMachine("PC-BookingUpdate2", types.MACHINE_PC, 1, 50, nil, nil)
	customer := s.createCustomer("Booking Update Customer", "9000000014")
	start := time.Now().Add(6 * time.Hour)

	w := s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
		CustomerID: customer.ID,
		MachineID:  machine.ID,
		StartTime:  timeStr(start),
		EndTime:    timeStr(start.Add(time.Hour)),
		Duration:   60,
	})
	s.Require().Equal(201, w.Code)
	bookingID := gjson.Get(readBody(w), "data.id").String()

	w = s.do("POST", "/api/v1/bookings", types.CreateBookingRequestBody{
		CustomerID: customer.ID,
		MachineID:  other.ID,
		StartTime:  timeStr(start),
		EndTime:    timeStr(start.Add(time.Hour)),
		Duration:   60,
	})
	s.Require().Equal(201, w.Code)

	s.Run("Should move a booking to a free window", func() {
		newStart := start.Add(2 * time.Hour)
		w := s.do("PATCH", "/api/v1/bookings/"+bookingID, types.UpdateBookingRequestBody{
			StartTime: strptr(timeStr(newStart)),
			EndTime:   strptr(timeStr(newStart.Add(time.Hour))),
		})
		assert.Equal(s.T(), 200, w.Code)
	})

	s.Run("Should reject moving onto an occupied machine", func() {
		w := s.do("PATCH", "/api/v1/bookings/"+bookingID, types.UpdateBookingRequestBody{
			MachineID: &other.ID,
			StartTime: strptr(timeStr(start)),
			EndTime:   strptr(timeStr(start.Add(time.Hour))),
		})
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should not conflict with itself when only amounts change", func() {
		w := s.do("PATCH", "/api/v1/bookings/"+bookingID, types.UpdateBookingRequestBody{
			CashAmount: floatptr(100),
		})
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), float64(100), gjson.Get(readBody(w), "data.cash_amount").Float())
	})
}
