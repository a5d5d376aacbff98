package handlers

import (
	"errors"
	"net/http"

	"github.com/fleetwatch-dev/fleetwatch/db"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// CreateComment appends a reviewer note to the alert and its timeline.
func CreateComment(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, _ := utils.GetCurrentUserID(ctx)

	alertID, err := utils.GetAlertID(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req CreateCommentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var alert models.Alert
	if err := db.DB.Where("id = ? AND company_id = ?", alertID, companyID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alert"})
		}
		return
	}

	comment := models.AlertComment{
		AlertID: alert.ID,
		UserID:  userID,
		Body:    req.Body,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}

		_, err := eventLog.Tx(tx).Emit(companyID, events.EntityAlert, alert.ID, events.EventAlertCommented, map[string]interface{}{
			"comment_id": comment.ID,
		}, events.WithActor("user", userID))
		return err
	})
	if err != nil {
		logger.Error("Failed to create comment", zap.Uint("alert_id", alert.ID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":    "Comment created",
		"comment_id": comment.ID,
	})
}

// GetComments lists the alert's comments, newest first.
func GetComments(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	alertID, err := utils.GetAlertID(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := db.DB.Model(&models.Alert{}).
		Where("id = ? AND company_id = ?", alertID, companyID).
		Count(&count).Error; err != nil || count == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	var comments []models.AlertComment
	if err := db.DB.
		Preload("User").
		Where("alert_id = ?", alertID).
		Order("created_at DESC").
		Limit(100).
		Find(&comments).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	ctx.JSON(http.StatusOK, comments)
}

// GetActivities returns the alert's timeline, a projection of its domain
// events, oldest first.
func GetActivities(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	alertID, err := utils.GetAlertID(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := db.DB.Model(&models.Alert{}).
		Where("id = ? AND company_id = ?", alertID, companyID).
		Count(&count).Error; err != nil || count == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	activities, err := eventLog.Activities(alertID, 0)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve activities"})
		return
	}

	ctx.JSON(http.StatusOK, activities)
}
