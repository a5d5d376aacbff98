package handlers

import (
	"net/http"
	"strconv"

	"github.com/fleetwatch-dev/fleetwatch/internal/delivery"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Provider callbacks must return 2xx no matter what happens internally:
// providers retry on non-2xx and an unmatched callback is expected traffic,
// not an error.

func formValues(ctx *gin.Context) map[string]string {
	if err := ctx.Request.ParseForm(); err != nil {
		return map[string]string{}
	}

	values := make(map[string]string, len(ctx.Request.PostForm))
	for key := range ctx.Request.PostForm {
		values[key] = ctx.Request.PostForm.Get(key)
	}
	return values
}

func optionalField(ctx *gin.Context, name string) *string {
	if value := ctx.PostForm(name); value != "" {
		return &value
	}
	return nil
}

// MessageStatusCallback ingests message delivery status callbacks.
func MessageStatusCallback(ctx *gin.Context) {
	cb := delivery.Callback{
		ProviderSID:  ctx.PostForm("MessageSid"),
		RawStatus:    ctx.PostForm("MessageStatus"),
		ErrorCode:    optionalField(ctx, "ErrorCode"),
		ErrorMessage: optionalField(ctx, "ErrorMessage"),
		RawPayload:   formValues(ctx),
	}

	if err := tracker.RecordDeliveryEvent(delivery.KindMessage, cb); err != nil {
		logger.Error("Message status callback processing failed",
			zap.String("sid", cb.ProviderSID),
			zap.Error(err),
		)
	}

	ctx.Status(http.StatusNoContent)
}

// VoiceStatusCallback ingests call progress callbacks.
func VoiceStatusCallback(ctx *gin.Context) {
	cb := delivery.Callback{
		ProviderSID:  ctx.PostForm("CallSid"),
		RawStatus:    ctx.PostForm("CallStatus"),
		ErrorCode:    optionalField(ctx, "ErrorCode"),
		ErrorMessage: optionalField(ctx, "ErrorMessage"),
		RawPayload:   formValues(ctx),
	}

	if err := tracker.RecordDeliveryEvent(delivery.KindCall, cb); err != nil {
		logger.Error("Voice status callback processing failed",
			zap.String("sid", cb.ProviderSID),
			zap.Error(err),
		)
	}

	ctx.Status(http.StatusNoContent)
}

// VoiceGatherCallback ingests an IVR keypress. The alert id rides along as
// a correlation parameter set when the call was placed.
func VoiceGatherCallback(ctx *gin.Context) {
	alertIDStr := ctx.Query("alert_id")
	if alertIDStr == "" {
		alertIDStr = ctx.PostForm("alert_id")
	}

	alertID, err := strconv.ParseUint(alertIDStr, 10, 32)
	if err != nil {
		logger.Warn("IVR callback without valid alert correlation, dropped",
			zap.String("alert_id", alertIDStr),
		)
		ctx.Data(http.StatusOK, "text/xml", []byte("<Response></Response>"))
		return
	}

	digit := ctx.PostForm("Digits")
	callSID := ctx.PostForm("CallSid")

	result, err := correlator.RecordIVRAck(ctx.Request.Context(), uint(alertID), callSID, digit)
	if err != nil {
		logger.Error("IVR ack processing failed",
			zap.Uint64("alert_id", alertID),
			zap.Error(err),
		)
	} else if result != nil {
		BroadcastAlertRefresh(result.Ack.CompanyID)
	}

	ctx.Data(http.StatusOK, "text/xml", []byte("<Response></Response>"))
}

// InboundMessageCallback ingests inbound SMS/WhatsApp messages and tries to
// correlate them as reply acks. Unmatched messages are acknowledged and
// dropped.
func InboundMessageCallback(ctx *gin.Context) {
	from := ctx.PostForm("From")
	body := ctx.PostForm("Body")

	result, err := correlator.RecordReplyAck(ctx.Request.Context(), from, body)
	if err != nil {
		logger.Error("Inbound message processing failed",
			zap.String("from", from),
			zap.Error(err),
		)
	} else if result != nil {
		BroadcastAlertRefresh(result.Ack.CompanyID)
	}

	ctx.Status(http.StatusNoContent)
}
