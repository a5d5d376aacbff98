package attention

import (
	"testing"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 0, SeverityRank(types.SeverityCritical))
	assert.Equal(t, 1, SeverityRank(types.SeverityWarning))
	assert.Equal(t, 2, SeverityRank(types.SeverityInfo))
	assert.Equal(t, 3, SeverityRank("bogus"))
}

func TestRiskRank(t *testing.T) {
	assert.Equal(t, 0, RiskRank(types.RiskEmergency))
	assert.Equal(t, 1, RiskRank(types.RiskCall))
	assert.Equal(t, 2, RiskRank(types.RiskWarn))
	assert.Equal(t, 3, RiskRank(types.RiskMonitor))
	assert.Equal(t, 4, RiskRank(""))
}

func TestSortByAttentionPriority(t *testing.T) {
	now := time.Now()
	soon := now.Add(5 * time.Minute)
	later := now.Add(30 * time.Minute)

	warningEmergency := models.Alert{
		Severity:       types.SeverityWarning,
		RiskEscalation: types.RiskEmergency,
		AckDueAt:       &soon,
	}
	warningEmergency.ID = 1

	criticalMonitor := models.Alert{
		Severity:       types.SeverityCritical,
		RiskEscalation: types.RiskMonitor,
		AckDueAt:       &later,
	}
	criticalMonitor.ID = 2

	criticalCall := models.Alert{
		Severity:       types.SeverityCritical,
		RiskEscalation: types.RiskCall,
		AckDueAt:       &later,
	}
	criticalCall.ID = 3

	alerts := []models.Alert{warningEmergency, criticalMonitor, criticalCall}
	SortByAttentionPriority(alerts)

	// Severity dominates risk: both critical alerts beat the warning one
	// even though its risk tier is emergency. Within critical, call
	// outranks monitor.
	assert.Equal(t, uint(3), alerts[0].ID)
	assert.Equal(t, uint(2), alerts[1].ID)
	assert.Equal(t, uint(1), alerts[2].ID)
}

func TestCompareAttention_DeadlineAndTieBreaks(t *testing.T) {
	now := time.Now()
	soon := now.Add(time.Minute)
	later := now.Add(time.Hour)

	a := models.Alert{Severity: types.SeverityCritical, RiskEscalation: types.RiskCall, AckDueAt: &soon}
	b := models.Alert{Severity: types.SeverityCritical, RiskEscalation: types.RiskCall, AckDueAt: &later}
	assert.True(t, CompareAttention(a, b))
	assert.False(t, CompareAttention(b, a))

	// A missing deadline sorts after a present one.
	c := models.Alert{Severity: types.SeverityCritical, RiskEscalation: types.RiskCall}
	assert.True(t, CompareAttention(a, c))
	assert.False(t, CompareAttention(c, a))

	// Equal on everything else: older row first, id as the final tie-break.
	d := models.Alert{Severity: types.SeverityInfo, RiskEscalation: types.RiskMonitor}
	d.ID = 1
	d.CreatedAt = now
	e := models.Alert{Severity: types.SeverityInfo, RiskEscalation: types.RiskMonitor}
	e.ID = 2
	e.CreatedAt = now
	assert.True(t, CompareAttention(d, e))
	assert.False(t, CompareAttention(e, d))
}
