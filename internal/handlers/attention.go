package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fleetwatch-dev/fleetwatch/db"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/services"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/fleetwatch-dev/fleetwatch/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AssignAlertRequest struct {
	UserID    *uint `json:"user_id"`
	ContactID *uint `json:"contact_id"`
}

type CloseAttentionRequest struct {
	Reason string `json:"reason"`
}

// AckAlert records a UI acknowledgement. Requires the notifications-v2
// feature; repeat acks by the same user return the original ack unchanged.
func AckAlert(ctx *gin.Context) {
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

	active, err := flagSvc.Active(ctx.Request.Context(), companyID, types.FlagNotificationsV2)
	if err != nil {
		logger.Error("Feature flag check failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check feature availability"})
		return
	}
	if !active {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Acknowledgements are not enabled for this company"})
		return
	}

	result, err := correlator.RecordUIAck(ctx.Request.Context(), alertID, companyID, userID, map[string]interface{}{
		"source": "ui",
	})
	if err != nil {
		if errors.Is(err, attention.ErrAlertNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		logger.Error("Failed to record UI ack", zap.Uint("alert_id", alertID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record acknowledgement"})
		return
	}

	BroadcastAlertRefresh(companyID)

	// Same shape whether the ack was created now or found existing.
	ctx.JSON(http.StatusOK, gin.H{
		"ack_id":          result.Ack.ID,
		"attention_state": result.AttentionState,
	})
}

// AssignAlert sets the alert's owner: exactly one of user_id or contact_id.
func AssignAlert(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	assignedBy, _ := utils.GetCurrentUserID(ctx)

	alertID, err := utils.GetAlertID(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req AssignAlertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if (req.UserID == nil) == (req.ContactID == nil) {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Exactly one of user_id or contact_id is required"})
		return
	}

	var owner attention.Owner
	if req.UserID != nil {
		var count int64
		if err := db.DB.Model(&models.User{}).
			Where("id = ? AND company_id = ?", *req.UserID, companyID).
			Count(&count).Error; err != nil || count == 0 {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "User does not belong to this company"})
			return
		}
		owner = attention.UserOwner(*req.UserID)
	} else {
		var count int64
		if err := db.DB.Model(&models.Contact{}).
			Where("id = ? AND company_id = ?", *req.ContactID, companyID).
			Count(&count).Error; err != nil || count == 0 {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Contact does not belong to this company"})
			return
		}
		owner = attention.ContactOwner(*req.ContactID)
	}

	if err := engine.AssignOwner(alertID, companyID, owner, assignedBy); err != nil {
		switch {
		case errors.Is(err, attention.ErrAlertNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		case errors.Is(err, attention.ErrAlertClosed):
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Cannot assign a closed alert"})
		default:
			logger.Error("Failed to assign alert owner", zap.Uint("alert_id", alertID), zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign owner"})
		}
		return
	}

	BroadcastAlertRefresh(companyID)

	ctx.JSON(http.StatusOK, gin.H{
		"message":  "Owner assigned",
		"alert_id": alertID,
	})
}

// CloseAlertAttention closes the attention lifecycle. Requires a non-empty
// reason; closing an already closed alert is a success no-op.
func CloseAlertAttention(ctx *gin.Context) {
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

	var req CloseAttentionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Reason) == "" {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A reason is required to close attention"})
		return
	}

	closed, err := engine.CloseAttention(alertID, companyID, attention.Actor{Type: "user", ID: userID}, req.Reason)
	if err != nil {
		if errors.Is(err, attention.ErrAlertNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		logger.Error("Failed to close attention", zap.Uint("alert_id", alertID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close attention"})
		return
	}

	if closed {
		go notifyAttentionClosed(alertID, companyID, req.Reason)
		BroadcastAlertRefresh(companyID)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":         "Attention closed",
		"alert_id":        alertID,
		"attention_state": types.AttentionClosed,
	})
}

func notifyAttentionClosed(alertID, companyID uint, reason string) {
	var alert models.Alert
	if err := db.DB.First(&alert, alertID).Error; err != nil {
		return
	}

	var company models.Company
	if err := db.DB.First(&company, companyID).Error; err != nil {
		return
	}

	if err := services.SendAttentionClosedNotification(company, alert, reason); err != nil {
		logger.Warn("Ops webhook notification failed", zap.Uint("alert_id", alertID), zap.Error(err))
	}
}
