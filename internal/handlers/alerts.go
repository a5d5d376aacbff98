package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/db"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/fleetwatch-dev/fleetwatch/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateAlertRequest struct {
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description"`
	Severity       string  `json:"severity" binding:"required"`
	RiskEscalation string  `json:"risk_escalation"`
	DedupeKey      *string `json:"dedupe_key"`
}

type UpdateAlertStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AlertSummary struct {
	ID                     uint       `json:"id"`
	Title                  string     `json:"title"`
	Severity               string     `json:"severity"`
	RiskEscalation         string     `json:"risk_escalation"`
	HumanStatus            string     `json:"human_status"`
	AIStatus               string     `json:"ai_status"`
	AttentionState         string     `json:"attention_state"`
	EscalationLevel        int        `json:"escalation_level"`
	OwnerUserID            *uint      `json:"owner_user_id"`
	OwnerContactID         *uint      `json:"owner_contact_id"`
	AckDueAt               *time.Time `json:"ack_due_at"`
	AckSLARemainingSeconds *int64     `json:"ack_sla_remaining_seconds"`
	CreatedAt              time.Time  `json:"created_at"`
}

var validHumanStatuses = map[string]bool{
	types.HumanStatusPending:       true,
	types.HumanStatusReviewed:      true,
	types.HumanStatusFlagged:       true,
	types.HumanStatusResolved:      true,
	types.HumanStatusFalsePositive: true,
}

var validSeverities = map[string]bool{
	types.SeverityInfo:     true,
	types.SeverityWarning:  true,
	types.SeverityCritical: true,
}

// CreateAlert is the ingestion hand-off: the webhook front door (or a test
// harness) posts a detected event here. A dedupe key collapses duplicate
// detections onto the existing open alert.
func CreateAlert(ctx *gin.Context) {
	var req CreateAlertRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validSeverities[req.Severity] {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid severity"})
		return
	}

	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if req.DedupeKey != nil && *req.DedupeKey != "" {
		var existing models.Alert
		err := db.DB.
			Where("company_id = ? AND dedupe_key = ? AND attention_state <> ?", companyID, *req.DedupeKey, types.AttentionClosed).
			First(&existing).Error
		if err == nil {
			ctx.JSON(http.StatusOK, gin.H{
				"message":         "Duplicate detection collapsed",
				"alert_id":        existing.ID,
				"attention_state": existing.AttentionState,
			})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check dedupe key"})
			return
		}
	}

	risk := req.RiskEscalation
	if risk == "" {
		risk = types.RiskMonitor
	}

	alert := models.Alert{
		CompanyID:      companyID,
		DedupeKey:      req.DedupeKey,
		Title:          req.Title,
		Description:    req.Description,
		Severity:       req.Severity,
		RiskEscalation: risk,
		HumanStatus:    types.HumanStatusPending,
		AIStatus:       types.AIStatusPending,
		AttentionState: types.AttentionNone,
		AckStatus:      types.AckStatusPending,
	}

	if err := db.DB.Create(&alert).Error; err != nil {
		logger.Error("Failed to create alert", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	if _, err := eventLog.Emit(companyID, events.EntityAlert, alert.ID, events.EventAlertCreated, map[string]interface{}{
		"severity":        alert.Severity,
		"risk_escalation": alert.RiskEscalation,
	}, events.WithSystemActor()); err != nil {
		logger.Error("Failed to emit alert.created event", zap.Error(err))
	}

	active, err := flagSvc.Active(ctx.Request.Context(), companyID, types.FlagAttentionEngine)
	if err != nil {
		logger.Warn("Feature flag check failed at alert creation", zap.Error(err))
	}

	if active {
		var company models.Company
		if err := db.DB.First(&company, companyID).Error; err != nil {
			logger.Error("Failed to load company for initialization", zap.Error(err))
		} else {
			if err := engine.Initialize(&alert, company); err != nil {
				logger.Error("Attention initialization failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
			} else if err := dispatcher.NotifyTier(company, alert, 0); err != nil {
				logger.Error("Initial notification dispatch failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
			}
		}
	}

	BroadcastAlertRefresh(companyID)

	ctx.JSON(http.StatusCreated, gin.H{
		"message":         "Alert created",
		"alert_id":        alert.ID,
		"attention_state": alert.AttentionState,
	})
}

// ListAlerts returns the needs-attention queue, most urgent first. The
// ordering is deterministic so pagination never skips or repeats rows.
func ListAlerts(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(ctx.DefaultQuery("per_page", "25"))
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	query := attention.NeedsAttentionScope(db.DB.Model(&models.Alert{})).
		Where("company_id = ?", companyID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count alerts"})
		return
	}

	var alerts []models.Alert
	err = attention.OrderByAttentionPriority(
		attention.NeedsAttentionScope(db.DB.Where("company_id = ?", companyID)),
	).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&alerts).Error
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	now := time.Now().UTC()
	summaries := make([]AlertSummary, 0, len(alerts))
	for _, alert := range alerts {
		summaries = append(summaries, buildAlertSummary(alert, now))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"alerts":   summaries,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func buildAlertSummary(alert models.Alert, now time.Time) AlertSummary {
	summary := AlertSummary{
		ID:              alert.ID,
		Title:           alert.Title,
		Severity:        alert.Severity,
		RiskEscalation:  alert.RiskEscalation,
		HumanStatus:     alert.HumanStatus,
		AIStatus:        alert.AIStatus,
		AttentionState:  alert.AttentionState,
		EscalationLevel: alert.EscalationLevel,
		OwnerUserID:     alert.OwnerUserID,
		OwnerContactID:  alert.OwnerContactID,
		AckDueAt:        alert.AckDueAt,
		CreatedAt:       alert.CreatedAt,
	}

	if remaining, ok := attention.AckSLARemainingSeconds(alert, now); ok {
		summary.AckSLARemainingSeconds = &remaining
	}

	return summary
}

// GetAlertReview returns the full review surface for one alert: the row
// itself, its notification attempts, its acks and its timeline.
func GetAlertReview(ctx *gin.Context) {
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

	var alert models.Alert
	if err := db.DB.
		Preload("Notifications", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at DESC").Limit(50)
		}).
		Preload("Acks").
		Where("id = ? AND company_id = ?", alertID, companyID).
		First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alert"})
		}
		return
	}

	activities, err := eventLog.Activities(alert.ID, 0)
	if err != nil {
		logger.Error("Failed to load alert activities", zap.Uint("alert_id", alert.ID), zap.Error(err))
		activities = nil
	}

	ctx.JSON(http.StatusOK, gin.H{
		"alert":      alert,
		"activities": activities,
	})
}

// UpdateAlertStatus applies a human review status transition.
func UpdateAlertStatus(ctx *gin.Context) {
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

	var req UpdateAlertStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validHumanStatuses[req.Status] {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid status value"})
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

	previous := alert.HumanStatus

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Alert{}).
			Where("id = ?", alert.ID).
			Update("human_status", req.Status).Error; err != nil {
			return err
		}

		_, err := eventLog.Tx(tx).Emit(companyID, events.EntityAlert, alert.ID, events.EventAlertStatusChanged, map[string]interface{}{
			"from": previous,
			"to":   req.Status,
		}, events.WithActor("user", userID))
		return err
	})
	if err != nil {
		logger.Error("Failed to update alert status", zap.Uint("alert_id", alert.ID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	BroadcastAlertRefresh(companyID)

	ctx.JSON(http.StatusOK, gin.H{
		"message":      "Status updated",
		"alert_id":     alert.ID,
		"human_status": req.Status,
	})
}

// ReprocessAlert resets the AI fields to pending and re-enqueues the
// investigation. Attention state is deliberately untouched.
func ReprocessAlert(ctx *gin.Context) {
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

	var alert models.Alert
	if err := db.DB.Where("id = ? AND company_id = ?", alertID, companyID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alert"})
		}
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Alert{}).
			Where("id = ?", alert.ID).
			Updates(map[string]interface{}{
				"ai_status":     types.AIStatusPending,
				"verdict":       nil,
				"likelihood":    nil,
				"ai_assessment": nil,
				"ai_actions":    nil,
			}).Error; err != nil {
			return err
		}

		_, err := eventLog.Tx(tx).Emit(companyID, events.EntityAlert, alert.ID, events.EventAlertReprocessed, nil,
			events.WithActor("user", userID))
		return err
	})
	if err != nil {
		logger.Error("Failed to reset alert for reprocessing", zap.Uint("alert_id", alert.ID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reprocess alert"})
		return
	}

	if err := reprocessor.EnqueueInvestigation(ctx.Request.Context(), alert.ID); err != nil {
		logger.Error("Failed to enqueue AI investigation", zap.Uint("alert_id", alert.ID), zap.Error(err))
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"message":  "Alert queued for reprocessing",
		"alert_id": alert.ID,
	})
}

type UpdateFlagRequest struct {
	Flag    string `json:"flag" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

var knownFlags = map[string]bool{
	types.FlagNotificationsV2: true,
	types.FlagAttentionEngine: true,
}

// UpdateCompanyFlags toggles a feature flag for the caller's company.
func UpdateCompanyFlags(ctx *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req UpdateFlagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !knownFlags[req.Flag] {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown feature flag"})
		return
	}

	if err := flagSvc.Set(ctx.Request.Context(), companyID, req.Flag, *req.Enabled); err != nil {
		logger.Error("Failed to set feature flag", zap.String("flag", req.Flag), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flag"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Flag updated",
		"flag":    req.Flag,
		"enabled": *req.Enabled,
	})
}
