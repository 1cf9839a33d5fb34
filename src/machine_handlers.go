package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func packageRatesFromBody(raw map[string]float64) (types.PackageRates, error) {
	if raw == nil {
		return nil, nil
	}
	rates := make(types.PackageRates, len(raw))
	for k, price := range raw {
		hours, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid package hours key %q", types.ErrValidation, k)
		}
		rates[hours] = price
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return rates, nil
}

func machineHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/machines", func(ctx *gin.Context) {
			db := db.GetDb()
			var machines []models.Machine
			err := db.
				Model(&models.Machine{}).
				Order("name asc").
				Find(&machines).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": machines, "count": len(machines)})
		}).
		GET("/machines/available", func(ctx *gin.Context) {
			db := db.GetDb()
			var machines []models.Machine
			err := db.
				Model(&models.Machine{}).
				Where("is_active = ?", true).
				Order("name asc").
				Find(&machines).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			type machineAvailability struct {
				models.Machine
				InUse     int64 `json:"in_use"`
				Available int64 `json:"available"`
			}
			data := make([]machineAvailability, 0, len(machines))
			for _, machine := range machines {
				var running int64
				err := db.
					Model(&models.Entry{}).
					Where("machine_id = ? AND end_time IS NULL AND is_deleted = ?", machine.ID, false).
					Count(&running).
					Error
				if err != nil {
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
				free := int64(machine.Units) - running
				if free < 0 {
					free = 0
				}
				data = append(data, machineAvailability{Machine: machine, InUse: running, Available: free})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/machines/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var machine models.Machine
			if err := db.First(&machine, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: machine %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": machine})
		}).
		GET("/machines/:id/stats", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var machine models.Machine
			if err := db.First(&machine, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: machine %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			var stats struct {
				Sessions     int64   `json:"sessions"`
				Revenue      float64 `json:"revenue"`
				MinutesTotal int64   `json:"minutes_total"`
			}
			err := db.
				Model(&models.Entry{}).
				Select("COUNT(*) AS sessions, COALESCE(SUM(final_amount), 0) AS revenue, COALESCE(SUM(duration), 0) AS minutes_total").
				Where("machine_id = ? AND end_time IS NOT NULL AND is_deleted = ?", params.ID, false).
				Scan(&stats).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"machine": machine,
				"stats":   stats,
			}})
		}).
		POST("/machines", func(ctx *gin.Context) {
			var body types.CreateMachineRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			rates, err := packageRatesFromBody(body.PackageRates)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			db := db.GetDb()
			machine := models.Machine{
				Name:           body.Name,
				Type:           body.Type,
				Units:          body.Units,
				HourlyRate:     body.HourlyRate,
				HalfHourlyRate: body.HalfHourlyRate,
				PackageRates:   rates,
				IsActive:       true,
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Machine{}).Where("name = ?", body.Name).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("%w: machine %q already exists", types.ErrConflict, body.Name)
				}
				return tx.Create(&machine).Error
			}); err != nil {
				log.Printf("Error creating machine: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": machine})
		}).
		PATCH("/machines/:id/rates", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateMachineRatesRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var machine models.Machine
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.First(&machine, params.ID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: machine %d", types.ErrNotFound, params.ID)
					}
					return err
				}
				updates := map[string]any{}
				if body.HourlyRate != nil {
					updates["hourly_rate"] = *body.HourlyRate
				}
				if body.HalfHourlyRate != nil {
					updates["half_hourly_rate"] = *body.HalfHourlyRate
				}
				if body.PackageRates != nil {
					rates, err := packageRatesFromBody(body.PackageRates)
					if err != nil {
						return err
					}
					updates["package_rates"] = rates
				}
				if len(updates) == 0 {
					return fmt.Errorf("%w: no rate fields to update", types.ErrValidation)
				}
				if err := tx.Model(&models.Machine{}).Where("id = ?", params.ID).Updates(updates).Error; err != nil {
					return err
				}
				return tx.First(&machine, params.ID).Error
			}); err != nil {
				log.Printf("Error updating machine rates: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": machine})
		})
	return g
}
