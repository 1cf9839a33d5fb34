package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/membership"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func membershipHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/membership-plans", func(ctx *gin.Context) {
			var body types.CreateMembershipPlanRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			plan := models.MembershipPlan{
				Name:         body.Name,
				Price:        body.Price,
				Hours:        body.Hours,
				PricePerHour: body.Price / body.Hours,
				ValidityDays: body.ValidityDays,
				MachineType:  body.MachineType,
				DisplayOrder: body.DisplayOrder,
				IsActive:     true,
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.MembershipPlan{}).Where("name = ?", body.Name).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("%w: plan %q already exists", types.ErrConflict, body.Name)
				}
				return tx.Create(&plan).Error
			}); err != nil {
				log.Printf("Error creating membership plan: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": plan})
		}).
		GET("/membership-plans", func(ctx *gin.Context) {
			db := db.GetDb()
			var plans []models.MembershipPlan
			err := db.
				Model(&models.MembershipPlan{}).
				Order("display_order asc, name asc").
				Find(&plans).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": plans, "count": len(plans)})
		}).
		GET("/membership-plans/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var plan models.MembershipPlan
			if err := db.First(&plan, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: plan %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": plan})
		}).
		PATCH("/membership-plans/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateMembershipPlanRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var plan models.MembershipPlan
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.First(&plan, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: plan %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				updates := map[string]any{}
				price := plan.Price
				hours := plan.Hours
				if body.Name != nil {
					updates["name"] = *body.Name
				}
				if body.Price != nil {
					price = *body.Price
					updates["price"] = price
				}
				if body.Hours != nil {
					hours = *body.Hours
					updates["hours"] = hours
				}
				if body.Price != nil || body.Hours != nil {
					updates["price_per_hour"] = price / hours
				}
				if body.ValidityDays != nil {
					updates["validity_days"] = *body.ValidityDays
				}
				if body.DisplayOrder != nil {
					updates["display_order"] = *body.DisplayOrder
				}
				if body.IsActive != nil {
					updates["is_active"] = *body.IsActive
				}
				if len(updates) == 0 {
					return fmt.Errorf("%w: no fields to update", types.ErrValidation)
				}
				if err := tx.Model(&models.MembershipPlan{}).Where("id = ?", params.ID).Updates(updates).Error; err != nil {
					return err
				}
				return tx.First(&plan, params.ID).Error
			}); err != nil {
				log.Printf("Error updating membership plan: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": plan})
		}).
		DELETE("/membership-plans/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var plan models.MembershipPlan
				if err := tx.First(&plan, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: plan %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				var active int64
				err := tx.
					Model(&models.CustomerMembership{}).
					Where("plan_id = ? AND status = ?", params.ID, types.MEMBERSHIP_ACTIVE).
					Count(&active).
					Error
				if err != nil {
					return err
				}
				if active > 0 {
					return fmt.Errorf("%w: plan has %d active membership(s)", types.ErrConflict, active)
				}
				return tx.Delete(&models.MembershipPlan{}, params.ID).Error
			})
			if err != nil {
				log.Printf("Error deleting membership plan: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/memberships", func(ctx *gin.Context) {
			var body types.PurchaseMembershipRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m, err := membership.Purchase(&body)
			if err != nil {
				log.Printf("Error purchasing membership: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": m})
		}).
		PUT("/memberships/:id/deduct", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.DeductHoursRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m, err := membership.DeductHours(params.ID, body.Hours)
			if err != nil {
				log.Printf("Error deducting hours: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": m})
		}).
		PUT("/memberships/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelMembershipRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m, err := membership.Cancel(params.ID, body.Reason)
			if err != nil {
				log.Printf("Error cancelling membership: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": m})
		}).
		GET("/memberships/stats", func(ctx *gin.Context) {
			db := db.GetDb()
			var stats struct {
				Active         int64   `json:"active"`
				Exhausted      int64   `json:"exhausted"`
				Expired        int64   `json:"expired"`
				Cancelled      int64   `json:"cancelled"`
				HoursRemaining float64 `json:"hours_remaining"`
				Revenue        float64 `json:"revenue"`
			}
			counts := map[types.MembershipStatus]*int64{
				types.MEMBERSHIP_ACTIVE:    &stats.Active,
				types.MEMBERSHIP_EXHAUSTED: &stats.Exhausted,
				types.MEMBERSHIP_EXPIRED:   &stats.Expired,
				types.MEMBERSHIP_CANCELED:  &stats.Cancelled,
			}
			for status, out := range counts {
				err := db.
					Model(&models.CustomerMembership{}).
					Where("status = ?", status).
					Count(out).
					Error
				if err != nil {
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
			}
			var sums struct {
				HoursRemaining float64
				Revenue        float64
			}
			err := db.
				Model(&models.CustomerMembership{}).
				Select("COALESCE(SUM(CASE WHEN status = ? THEN hours_remaining ELSE 0 END), 0) AS hours_remaining, COALESCE(SUM(payment_amount), 0) AS revenue", types.MEMBERSHIP_ACTIVE).
				Scan(&sums).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			stats.HoursRemaining = sums.HoursRemaining
			stats.Revenue = sums.Revenue
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		}).
		POST("/memberships/expire-sweep", func(ctx *gin.Context) {
			expired, err := membership.ExpireSweep()
			if err != nil {
				log.Printf("Error expiring memberships: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"expired": expired})
		})
	return g
}
