package main

import (
	"errors"
	"fmt"
	"io"
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

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.CreateBooking(&body)
			if err != nil {
				log.Printf("Error creating booking: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			var filters types.BookingQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			q := db.Model(&models.Booking{})
			if filters.Date != "" {
				day, err := time.Parse(dateOnlyFormat, filters.Date)
				if err != nil {
					abortWithError(ctx, fmt.Errorf("%w: invalid date: %s", types.ErrValidation, err.Error()))
					return
				}
				q = q.Where("booking_date = ?", day)
			}
			if filters.StartDate != "" {
				from, err := time.Parse(dateOnlyFormat, filters.StartDate)
				if err != nil {
					abortWithError(ctx, fmt.Errorf("%w: invalid start_date: %s", types.ErrValidation, err.Error()))
					return
				}
				q = q.Where("booking_date >= ?", from)
			}
			if filters.EndDate != "" {
				to, err := time.Parse(dateOnlyFormat, filters.EndDate)
				if err != nil {
					abortWithError(ctx, fmt.Errorf("%w: invalid end_date: %s", types.ErrValidation, err.Error()))
					return
				}
				q = q.Where("booking_date <= ?", to)
			}
			if filters.Status != "" {
				q = q.Where("status = ?", filters.Status)
			}
			if filters.CustomerID != 0 {
				q = q.Where("customer_id = ?", filters.CustomerID)
			}
			if filters.MachineID != 0 {
				q = q.Where("machine_id = ?", filters.MachineID)
			}
			var bookings []models.Booking
			err := q.
				Preload("Customer").
				Preload("Machine").
				Order("start_time asc").
				Find(&bookings).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/availability", func(ctx *gin.Context) {
			var query types.AvailabilityQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			start, err := time.Parse(config.TIME_PARSE_FORMAT, query.StartTime)
			if err != nil {
				abortWithError(ctx, fmt.Errorf("%w: invalid start_time: %s", types.ErrValidation, err.Error()))
				return
			}
			end, err := time.Parse(config.TIME_PARSE_FORMAT, query.EndTime)
			if err != nil {
				abortWithError(ctx, fmt.Errorf("%w: invalid end_time: %s", types.ErrValidation, err.Error()))
				return
			}
			if !end.After(start) {
				abortWithError(ctx, fmt.Errorf("%w: end time must be after start time", types.ErrValidation))
				return
			}
			db := db.GetDb()
			available, conflicts, err := utils.CheckAvailability(db, utils.AvailabilityParams{
				MachineID:        query.MachineID,
				PCNumber:         query.PCNumber,
				Start:            start,
				End:              end,
				ExcludeBookingID: query.ExcludeBookingID,
			})
			if err != nil {
				log.Printf("Error checking availability: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"available": available,
				"conflicts": conflicts,
			})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var booking models.Booking
			err := db.
				Preload("Customer").
				Preload("Machine").
				Preload("Entry").
				First(&booking, params.ID).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: booking %d", types.ErrNotFound, params.ID))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PATCH("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.UpdateBooking(params.ID, &body)
			if err != nil {
				log.Printf("Error updating booking: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/check-in", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, entry, err := utils.CheckInBooking(params.ID)
			if err != nil {
				log.Printf("Error checking in booking: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"booking": booking,
				"entry":   entry,
			}})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := utils.CancelBooking(params.ID, &body)
			if err != nil {
				log.Printf("Error cancelling booking: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}
