package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetAlertID(ctx *gin.Context) (uint, error) {
	alertIDStr := ctx.Param("alert_id")

	if alertIDStr == "" {
		return 0, errors.New("Alert ID not found")
	}

	alertID, err := strconv.ParseUint(alertIDStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid Alert ID")
	}

	return uint(alertID), nil
}
