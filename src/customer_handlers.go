package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/deathmover/sgh-crm-backend-new/src/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func customerHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/customers", func(ctx *gin.Context) {
			var body types.CreateCustomerRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			customer := models.Customer{
				Name:          body.Name,
				Phone:         body.Phone,
				Email:         body.Email,
				PendingCredit: body.PendingCredit,
				Notes:         body.Notes,
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Customer{}).Where("phone = ?", body.Phone).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("%w: a customer with phone %s already exists", types.ErrConflict, body.Phone)
				}
				return tx.Create(&customer).Error
			}); err != nil {
				log.Printf("Error creating customer: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": customer})
		}).
		GET("/customers", func(ctx *gin.Context) {
			var query struct {
				Search string `form:"search"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			q := db.Model(&models.Customer{})
			if query.Search != "" {
				needle := "%" + query.Search + "%"
				q = q.Where("name LIKE ? OR phone LIKE ?", needle, needle)
			}
			var customers []models.Customer
			if err := q.Order("name asc").Find(&customers).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": customers, "count": len(customers)})
		}).
		GET("/customers/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var customer models.Customer
			if err := db.First(&customer, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: customer %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": customer})
		}).
		GET("/customers/:id/stats", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var customer models.Customer
			if err := db.First(&customer, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: customer %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			var stats struct {
				Visits       int64   `json:"visits"`
				Spent        float64 `json:"spent"`
				MinutesTotal int64   `json:"minutes_total"`
				CreditDue    float64 `json:"credit_due"`
			}
			err := db.
				Model(&models.Entry{}).
				Select("COUNT(*) AS visits, COALESCE(SUM(final_amount), 0) AS spent, COALESCE(SUM(duration), 0) AS minutes_total, COALESCE(SUM(credit_amount), 0) AS credit_due").
				Where("customer_id = ? AND end_time IS NOT NULL AND is_deleted = ?", params.ID, false).
				Scan(&stats).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			stats.CreditDue += customer.PendingCredit
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"customer": customer,
				"stats":    stats,
			}})
		}).
		GET("/customers/:id/memberships", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var memberships []models.CustomerMembership
			err := db.
				Model(&models.CustomerMembership{}).
				Where("customer_id = ?", params.ID).
				Preload("Plan").
				Order("purchase_date desc").
				Find(&memberships).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": memberships, "count": len(memberships)})
		}).
		POST("/customers/:id/pay-credit", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.PayCreditRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := utils.PayCredit(params.ID, &body)
			if err != nil {
				log.Printf("Error paying credit: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}
