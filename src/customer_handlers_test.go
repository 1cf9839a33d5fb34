package main

import (
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func (s *TestSuite) closedCreditEntry(customerID, machineID uint, endedAgo time.Duration, credit float64) models.Entry {
	end := time.Now().Add(-endedAgo)
	start := end.Add(-time.Hour)
	status := types.PAYMENT_UNPAID
	entry := models.Entry{
		CustomerID:    customerID,
		MachineID:     machineID,
		StartTime:     start,
		EndTime:       &end,
		Duration:      intptr(60),
		FinalAmount:   credit,
		CreditAmount:  credit,
		PaymentStatus: &status,
	}
	s.Require().Nil(s.DB.Create(&entry).Error)
	return entry
}

func (s *TestSuite) TestCustomers() {
	s.Run("Should create a customer", func() {
		w := s.do("POST", "/api/v1/customers", types.CreateCustomerRequestBody{
			Name:  "Walk-in One",
			Phone: "9000000030",
		})
		assert.Equal(s.T(), 201, w.Code)
	})

	s.Run("Should reject a duplicate phone", func() {
		w := s.do("POST", "/api/v1/customers", types.CreateCustomerRequestBody{
			Name:  "Walk-in Two",
			Phone: "9000000030",
		})
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should search by name or phone", func() {
		w := s.do("GET", "/api/v1/customers?search=Walk-in", nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.GreaterOrEqual(s.T(), gjson.Get(readBody(w), "count").Int(), int64(1))
	})

	s.Run("Should aggregate visit stats", func() {
		machine := s.createMachine("PC-CustomerStats", types.MACHINE_PC, 2, 50, nil, nil)
		customer := s.createCustomer("Stats Customer", "9000000031")
		s.closedCreditEntry(customer.ID, machine.ID, 3*time.Hour, 100)
		s.closedCreditEntry(customer.ID, machine.ID, 2*time.Hour, 50)

		w := s.do("GET", "/api/v1/customers/"+itoa(customer.ID)+"/stats", nil)
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), int64(2), gjson.Get(body, "data.stats.visits").Int())
		assert.Equal(s.T(), float64(150), gjson.Get(body, "data.stats.spent").Float())
		assert.Equal(s.T(), float64(150), gjson.Get(body, "data.stats.credit_due").Float())
		assert.Equal(s.T(), int64(120), gjson.Get(body, "data.stats.minutes_total").Int())
	})
}

func (s *TestSuite) TestCustomerPayCredit() {
	machine := s.createMachine("PC-Credit", types.MACHINE_PC, 4, 50, nil, nil)
	customer := s.createCustomer("Credit Customer", "9000000032")
	older := s.closedCreditEntry(customer.ID, machine.ID, 5*time.Hour, 200)
	newer := s.closedCreditEntry(customer.ID, machine.ID, 4*time.Hour, 150)

	s.Run("Should reject a zero payment", func() {
		w := s.do("POST", "/api/v1/customers/"+itoa(customer.ID)+"/pay-credit", types.PayCreditRequestBody{})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should settle oldest sessions first", func() {
		w := s.do("POST", "/api/v1/customers/"+itoa(customer.ID)+"/pay-credit", types.PayCreditRequestBody{
			CashAmount: 300,
		})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.NotEmpty(s.T(), gjson.Get(body, "data.receipt").String())
		assert.Equal(s.T(), int64(2), gjson.Get(body, "data.allocations.#").Int())
		assert.Equal(s.T(), float64(200), gjson.Get(body, "data.allocations.0.applied").Float())
		assert.Equal(s.T(), float64(100), gjson.Get(body, "data.allocations.1.applied").Float())
		assert.Equal(s.T(), float64(0), gjson.Get(body, "data.unallocated").Float())

		var first, second models.Entry
		s.Require().Nil(s.DB.First(&first, older.ID).Error)
		s.Require().Nil(s.DB.First(&second, newer.ID).Error)
		assert.Equal(s.T(), float64(0), first.CreditAmount)
		assert.Equal(s.T(), float64(200), first.CashAmount)
		assert.Equal(s.T(), types.PAYMENT_PAID, *first.PaymentStatus)
		assert.Equal(s.T(), float64(50), second.CreditAmount)
		assert.Equal(s.T(), float64(100), second.CashAmount)
		assert.Equal(s.T(), types.PAYMENT_PARTIAL, *second.PaymentStatus)
	})

	s.Run("Should split each allocation by the payment ratio", func() {
		other := s.createCustomer("Split Customer", "9000000033")
		entry := s.closedCreditEntry(other.ID, machine.ID, 3*time.Hour, 100)

		w := s.do("POST", "/api/v1/customers/"+itoa(other.ID)+"/pay-credit", types.PayCreditRequestBody{
			CashAmount:   75,
			OnlineAmount: 25,
		})
		assert.Equal(s.T(), 200, w.Code)

		var settled models.Entry
		s.Require().Nil(s.DB.First(&settled, entry.ID).Error)
		assert.Equal(s.T(), float64(0), settled.CreditAmount)
		assert.Equal(s.T(), float64(75), settled.CashAmount)
		assert.Equal(s.T(), float64(25), settled.OnlineAmount)
		assert.Equal(s.T(), types.PAYMENT_PAID, *settled.PaymentStatus)
	})

	s.Run("Should apply the leftover to the pending balance", func() {
		pending := models.Customer{Name: "Pending Customer", Phone: "9000000034", PendingCredit: 100}
		s.Require().Nil(s.DB.Create(&pending).Error)
		s.closedCreditEntry(pending.ID, machine.ID, 2*time.Hour, 50)

		w := s.do("POST", "/api/v1/customers/"+itoa(pending.ID)+"/pay-credit", types.PayCreditRequestBody{
			OnlineAmount: 120,
		})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), float64(70), gjson.Get(body, "data.pending_credit_paid").Float())
		assert.Equal(s.T(), float64(30), gjson.Get(body, "data.pending_credit").Float())
		assert.Equal(s.T(), float64(0), gjson.Get(body, "data.unallocated").Float())

		var reloaded models.Customer
		s.Require().Nil(s.DB.First(&reloaded, pending.ID).Error)
		assert.Equal(s.T(), float64(30), reloaded.PendingCredit)
	})

	s.Run("Should refuse payment with nothing outstanding", func() {
		clean := s.createCustomer("Clean Customer", "9000000035")
		w := s.do("POST", "/api/v1/customers/"+itoa(clean.ID)+"/pay-credit", types.PayCreditRequestBody{
			CashAmount: 100,
		})
		assert.Equal(s.T(), 409, w.Code)
	})
}
