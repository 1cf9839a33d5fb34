package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/membership"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/types"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func settingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/settings/:key", func(ctx *gin.Context) {
			var params types.KeyRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var setting models.Setting
			err := db.
				Where(&models.Setting{SettingKey: params.Key}).
				First(&setting).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					abortWithError(ctx, fmt.Errorf("%w: setting %q", types.ErrNotFound, params.Key))
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": setting})
		}).
		PUT("/settings/:key", func(ctx *gin.Context) {
			var params types.KeyRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateSettingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var setting models.Setting
			err := db.Transaction(func(tx *gorm.DB) error {
				err := tx.
					Where(&models.Setting{SettingKey: params.Key}).
					First(&setting).
					Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					setting = models.Setting{
						SettingKey:   params.Key,
						SettingValue: body.Value,
					}
					return tx.Create(&setting).Error
				}
				if err != nil {
					return err
				}
				if err := tx.
					Model(&models.Setting{}).
					Where("id = ?", setting.ID).
					Update("setting_value", body.Value).
					Error; err != nil {
					return err
				}
				return tx.First(&setting, setting.ID).Error
			})
			if err != nil {
				log.Printf("Error updating setting: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			if params.Key == models.SETTING_MEMBERSHIP_ENABLED {
				membership.InvalidateFlagCache()
			}
			ctx.JSON(http.StatusOK, gin.H{"data": setting})
		})
	return g
}
