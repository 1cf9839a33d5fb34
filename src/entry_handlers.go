package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/config"
	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/deathmover/sgh-crm-backend-new/src/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dateOnlyFormat = "2006-01-02"

func entryListQuery(tx *gorm.DB, filters *types.EntryQueryFilters) (*gorm.DB, error) {
	q := tx.Model(&models.Entry{}).Where("is_deleted = ?", false)
	if filters.Date != "" {
		day, err := time.Parse(dateOnlyFormat, filters.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date: %s", types.ErrValidation, err.Error())
		}
		q = q.Where("start_time >= ? AND start_time < ?", day, day.AddDate(0, 0, 1))
	}
	if filters.StartDate != "" {
		from, err := time.Parse(dateOnlyFormat, filters.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid start_date: %s", types.ErrValidation, err.Error())
		}
		q = q.Where("start_time >= ?", from)
	}
	if filters.EndDate != "" {
		to, err := time.Parse(dateOnlyFormat, filters.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end_date: %s", types.ErrValidation, err.Error())
		}
		q = q.Where("start_time < ?", to.AddDate(0, 0, 1))
	}
	if filters.CustomerID != 0 {
		q = q.Where("customer_id = ?", filters.CustomerID)
	}
	if filters.MachineID != 0 {
		q = q.Where("machine_id = ?", filters.MachineID)
	}
	if filters.PaymentStatus != "" {
		q = q.Where("payment_status = ?", filters.PaymentStatus)
	}
	return q, nil
}

func entryHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/entries", func(ctx *gin.Context) {
			var body types.CreateEntryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			entry, err := utils.OpenEntry(&body)
			if err != nil {
				log.Printf("Error opening entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": entry})
		}).
		GET("/entries", func(ctx *gin.Context) {
			var filters types.EntryQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			q, err := entryListQuery(db, &filters)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			var total int64
			if err := q.Count(&total).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			var entries []models.Entry
			err = q.
				Preload("Customer").
				Preload("Machine").
				Order("start_time desc").
				Offset((filters.Page - 1) * filters.Limit).
				Limit(filters.Limit).
				Find(&entries).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":  entries,
				"count": len(entries),
				"total": total,
				"page":  filters.Page,
				"limit": filters.Limit,
			})
		}).
		GET("/entries/active", func(ctx *gin.Context) {
			db := db.GetDb()
			var entries []models.Entry
			err := db.
				Model(&models.Entry{}).
				Where("end_time IS NULL AND is_deleted = ?", false).
				Preload("Customer").
				Preload("Machine").
				Order("start_time asc").
				Find(&entries).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		GET("/entries/deleted", func(ctx *gin.Context) {
			db := db.GetDb()
			var entries []models.Entry
			err := db.
				Model(&models.Entry{}).
				Where("is_deleted = ?", true).
				Preload("Customer").
				Preload("Machine").
				Order("deleted_at desc").
				Find(&entries).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		GET("/entries/daily-sheet", func(ctx *gin.Context) {
			var query struct {
				Date string `form:"date"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			day := time.Now()
			if query.Date != "" {
				parsed, err := time.Parse(dateOnlyFormat, query.Date)
				if err != nil {
					abortWithError(ctx, fmt.Errorf("%w: invalid date: %s", types.ErrValidation, err.Error()))
					return
				}
				day = parsed
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
			end := start.AddDate(0, 0, 1)

			db := db.GetDb()
			var entries []models.Entry
			err := db.
				Model(&models.Entry{}).
				Where("start_time >= ? AND start_time < ? AND is_deleted = ?", start, end, false).
				Preload("Customer").
				Preload("Machine").
				Order("start_time asc").
				Find(&entries).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			var totals struct {
				Cash    float64 `json:"cash"`
				Online  float64 `json:"online"`
				Credit  float64 `json:"credit"`
				Revenue float64 `json:"revenue"`
			}
			for _, entry := range entries {
				totals.Cash += entry.CashAmount
				totals.Online += entry.OnlineAmount
				totals.Credit += entry.CreditAmount
				totals.Revenue += entry.FinalAmount
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":   entries,
				"count":  len(entries),
				"date":   start.Format(dateOnlyFormat),
				"totals": totals,
			})
		}).
		POST("/entries/auto-end", func(ctx *gin.Context) {
			ended := utils.AutoEndExpiredEntries()
			ctx.JSON(http.StatusOK, gin.H{"ended": ended})
		}).
		GET("/entries/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var entry models.Entry
			err := db.
				Preload("Customer").
				Preload("Machine").
				Preload("Membership").
				First(&entry, params.ID).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: entry %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entry})
		}).
		PATCH("/entries/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateEntryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			entry, err := utils.UpdateEntry(params.ID, &body)
			if err != nil {
				log.Printf("Error updating entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entry})
		}).
		PUT("/entries/:id/end", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.EndEntryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			endTime := time.Now()
			if body.EndTime != "" {
				parsed, err := time.Parse(config.TIME_PARSE_FORMAT, body.EndTime)
				if err != nil {
					abortWithError(ctx, fmt.Errorf("%w: invalid end_time: %s", types.ErrValidation, err.Error()))
					return
				}
				endTime = parsed
			}
			entry, err := utils.CloseEntry(params.ID, endTime, &body, false)
			if err != nil {
				log.Printf("Error closing entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entry})
		}).
		PUT("/entries/:id/payment", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			entry, err := utils.UpdateEntryPayment(params.ID, &body)
			if err != nil {
				log.Printf("Error updating payment: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entry})
		}).
		PUT("/entries/:id/restore", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var entry models.Entry
				if err := tx.First(&entry, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: entry %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				if !entry.IsDeleted {
					return fmt.Errorf("%w: entry %d is not deleted", types.ErrInvalidState, params.ID)
				}
				return tx.
					Model(&models.Entry{}).
					Where("id = ?", params.ID).
					Updates(map[string]any{"is_deleted": false, "deleted_at": nil}).
					Error
			})
			if err != nil {
				log.Printf("Error restoring entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.Status(http.StatusOK)
		}).
		DELETE("/entries/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var entry models.Entry
				if err := tx.First(&entry, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: entry %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				if entry.IsDeleted {
					return fmt.Errorf("%w: entry %d is already deleted", types.ErrInvalidState, params.ID)
				}
				now := time.Now()
				return tx.
					Model(&models.Entry{}).
					Where("id = ?", params.ID).
					Updates(map[string]any{"is_deleted": true, "deleted_at": now}).
					Error
			})
			if err != nil {
				log.Printf("Error deleting entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.Status(http.StatusOK)
		}).
		DELETE("/entries/:id/hard", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var entry models.Entry
				if err := tx.First(&entry, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: entry %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				if !entry.IsDeleted {
					return fmt.Errorf("%w: entry must be soft-deleted before permanent removal", types.ErrInvalidState)
				}
				return tx.Delete(&models.Entry{}, params.ID).Error
			})
			if err != nil {
				log.Printf("Error hard-deleting entry: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
