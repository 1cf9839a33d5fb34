package main

import (
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func (s *TestSuite) createPlan(name string, mtype types.MachineType, price, hours float64, validityDays int) models.MembershipPlan {
	plan := models.MembershipPlan{
		Name:         name,
		Price:        price,
		Hours:        hours,
		PricePerHour: price / hours,
		ValidityDays: validityDays,
		MachineType:  mtype,
		IsActive:     true,
	}
	s.Require().Nil(s.DB.Create(&plan).Error)
	return plan
}

func (s *TestSuite) purchaseMembership(customerID, planID uint) string {
	w := s.do("POST", "/api/v1/memberships", types.PurchaseMembershipRequestBody{
		CustomerID: customerID,
		PlanID:     planID,
	})
	s.Require().Equal(201, w.Code)
	return gjson.Get(readBody(w), "data.id").String()
}

func (s *TestSuite) TestMembershipPlans() {
	s.Run("Should create a plan and derive price per hour", func() {
		w := s.do("POST", "/api/v1/membership-plans", types.CreateMembershipPlanRequestBody{
			Name:         "Gold 10",
			Price:        500,
			Hours:        10,
			ValidityDays: 30,
			MachineType:  types.MACHINE_PS5,
		})
		assert.Equal(s.T(), 201, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), float64(50), gjson.Get(body, "data.price_per_hour").Float())
	})

	s.Run("Should reject a duplicate plan name", func() {
		w := s.do("POST", "/api/v1/membership-plans", types.CreateMembershipPlanRequestBody{
			Name:         "Gold 10",
			Price:        600,
			Hours:        10,
			ValidityDays: 30,
			MachineType:  types.MACHINE_PS5,
		})
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should recompute price per hour on update", func() {
		plan := s.createPlan("Silver 5", types.MACHINE_PC, 300, 5, 30)
		w := s.do("PATCH", "/api/v1/membership-plans/"+itoa(plan.ID), types.UpdateMembershipPlanRequestBody{
			Price: floatptr(250),
		})
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), float64(50), gjson.Get(readBody(w), "data.price_per_hour").Float())
	})

	s.Run("Should block deleting a plan with active memberships", func() {
		plan := s.createPlan("Blocked Plan", types.MACHINE_PS5, 200, 4, 30)
		customer := s.createCustomer("Plan Holder", "9000000020")
		s.purchaseMembership(customer.ID, plan.ID)

		w := s.do("DELETE", "/api/v1/membership-plans/"+itoa(plan.ID), nil)
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should delete an unused plan", func() {
		plan := s.createPlan("Unused Plan", types.MACHINE_PS5, 200, 4, 30)
		w := s.do("DELETE", "/api/v1/membership-plans/"+itoa(plan.ID), nil)
		assert.Equal(s.T(), 204, w.Code)
	})
}

func (s *TestSuite) TestMembershipPurchaseAndLedger() {
	plan := s.createPlan("Ledger 10h", types.MACHINE_PS5, 500, 10, 30)
	customer := s.createCustomer("Ledger Customer", "9000000021")

	var membershipID string
	s.Run("Should purchase a membership from a plan", func() {
		w := s.do("POST", "/api/v1/memberships", types.PurchaseMembershipRequestBody{
			CustomerID: customer.ID,
			PlanID:     plan.ID,
		})
		assert.Equal(s.T(), 201, w.Code)
		body := readBody(w)
		membershipID = gjson.Get(body, "data.id").String()
		assert.Equal(s.T(), "active", gjson.Get(body, "data.status").String())
		assert.Equal(s.T(), float64(10), gjson.Get(body, "data.hours_remaining").Float())
		assert.Equal(s.T(), float64(500), gjson.Get(body, "data.payment_amount").Float())

		expiry, err := time.Parse(time.RFC3339, gjson.Get(body, "data.expiry_date").String())
		assert.Nil(s.T(), err)
		assert.WithinDuration(s.T(), time.Now().AddDate(0, 0, 30), expiry, time.Minute)
	})

	s.Run("Should deduct hours and keep the ledger balanced", func() {
		w := s.do("PUT", "/api/v1/memberships/"+membershipID+"/deduct", types.DeductHoursRequestBody{Hours: 4})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), float64(6), gjson.Get(body, "data.hours_remaining").Float())
		assert.Equal(s.T(), float64(4), gjson.Get(body, "data.hours_used").Float())
		assert.Equal(s.T(), "active", gjson.Get(body, "data.status").String())
	})

	s.Run("Should clamp an over-deduction at zero and exhaust", func() {
		w := s.do("PUT", "/api/v1/memberships/"+membershipID+"/deduct", types.DeductHoursRequestBody{Hours: 10})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), float64(0), gjson.Get(body, "data.hours_remaining").Float())
		assert.Equal(s.T(), float64(10), gjson.Get(body, "data.hours_used").Float())
		assert.Equal(s.T(), "exhausted", gjson.Get(body, "data.status").String())
	})

	s.Run("Should refuse deductions on an exhausted membership", func() {
		w := s.do("PUT", "/api/v1/memberships/"+membershipID+"/deduct", types.DeductHoursRequestBody{Hours: 1})
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestMembershipPaysForEntry() {
	plan := s.createPlan("Session 2h", types.MACHINE_PS5, 120, 2, 30)
	machine := s.createMachine("PS5-Member", types.MACHINE_PS5, 2, 50, nil, nil)
	customer := s.createCustomer("Member Customer", "9000000022")
	membershipID := s.purchaseMembership(customer.ID, plan.ID)

	s.Run("Should reject a session longer than the remaining hours", func() {
		var m models.CustomerMembership
		s.Require().Nil(s.DB.First(&m, membershipID).Error)
		w := s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
			CustomerID:         customer.ID,
			MachineID:          machine.ID,
			StartTime:          timeStr(time.Now()),
			PredefinedDuration: intptr(180),
			UseMembershipID:    &m.ID,
		})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a membership on the wrong machine type", func() {
		pc := s.createMachine("PC-WrongType", types.MACHINE_PC, 1, 40, nil, nil)
		var m models.CustomerMembership
		s.Require().Nil(s.DB.First(&m, membershipID).Error)
		w := s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
			CustomerID:         customer.ID,
			MachineID:          pc.ID,
			StartTime:          timeStr(time.Now()),
			PredefinedDuration: intptr(60),
			UseMembershipID:    &m.ID,
		})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should deduct the exact hours and mark the entry paid", func() {
		var m models.CustomerMembership
		s.Require().Nil(s.DB.First(&m, membershipID).Error)
		w := s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
			CustomerID:         customer.ID,
			MachineID:          machine.ID,
			StartTime:          timeStr(time.Now()),
			PredefinedDuration: intptr(120),
			UseMembershipID:    &m.ID,
		})
		assert.Equal(s.T(), 201, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), "paid", gjson.Get(body, "data.payment_status").String())
		assert.Equal(s.T(), float64(0), gjson.Get(body, "data.final_amount").Float())
		assert.Equal(s.T(), float64(2), gjson.Get(body, "data.membership_hours").Float())

		s.Require().Nil(s.DB.First(&m, membershipID).Error)
		assert.Equal(s.T(), float64(0), m.HoursRemaining)
		assert.Equal(s.T(), types.MEMBERSHIP_EXHAUSTED, m.Status)
	})

	s.Run("Should refuse an exhausted membership for a new session", func() {
		var m models.CustomerMembership
		s.Require().Nil(s.DB.First(&m, membershipID).Error)
		w := s.do("POST", "/api/v1/entries", types.CreateEntryRequestBody{
			CustomerID:         customer.ID,
			MachineID:          machine.ID,
			StartTime:          timeStr(time.Now()),
			PredefinedDuration: intptr(30),
			UseMembershipID:    &m.ID,
		})
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestMembershipCancelAndExpire() {
	plan := s.createPlan("Cancel 5h", types.MACHINE_PS5, 250, 5, 30)
	customer := s.createCustomer("Cancel Customer", "9000000023")

	s.Run("Should cancel an active membership", func() {
		membershipID := s.purchaseMembership(customer.ID, plan.ID)
		w := s.do("PUT", "/api/v1/memberships/"+membershipID+"/cancel", types.CancelMembershipRequestBody{
			Reason: strptr("moved away"),
		})
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.Equal(s.T(), "cancelled", gjson.Get(body, "data.status").String())
		assert.Equal(s.T(), "moved away", gjson.Get(body, "data.cancel_reason").String())

		w = s.do("PUT", "/api/v1/memberships/"+membershipID+"/cancel", nil)
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should expire lapsed memberships in the sweep", func() {
		lapsed := models.CustomerMembership{
			CustomerID:     customer.ID,
			PlanID:         plan.ID,
			PurchaseDate:   time.Now().AddDate(0, 0, -40),
			ExpiryDate:     time.Now().AddDate(0, 0, -10),
			HoursTotal:     5,
			HoursRemaining: 3,
			HoursUsed:      2,
			Status:         types.MEMBERSHIP_ACTIVE,
			PaymentAmount:  250,
			PaymentMode:    "cash",
		}
		s.Require().Nil(s.DB.Create(&lapsed).Error)

		w := s.do("POST", "/api/v1/memberships/expire-sweep", nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.GreaterOrEqual(s.T(), gjson.Get(readBody(w), "expired").Int(), int64(1))

		var m models.CustomerMembership
		s.Require().Nil(s.DB.First(&m, lapsed.ID).Error)
		assert.Equal(s.T(), types.MEMBERSHIP_EXPIRED, m.Status)
	})

	s.Run("Should report aggregate stats", func() {
		w := s.do("GET", "/api/v1/memberships/stats", nil)
		assert.Equal(s.T(), 200, w.Code)
		body := readBody(w)
		assert.GreaterOrEqual(s.T(), gjson.Get(body, "data.cancelled").Int(), int64(1))
		assert.GreaterOrEqual(s.T(), gjson.Get(body, "data.expired").Int(), int64(1))
	})
}
