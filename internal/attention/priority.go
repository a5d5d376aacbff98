package attention

import (
	"sort"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"gorm.io/gorm"
)

// SeverityRank orders severities most-urgent-first: critical=0, warning=1,
// info=2. Unknown values sort last.
func SeverityRank(severity string) int {
	switch severity {
	case types.SeverityCritical:
		return 0
	case types.SeverityWarning:
		return 1
	case types.SeverityInfo:
		return 2
	}
	return 3
}

// RiskRank orders risk tiers most-urgent-first: emergency=0, call=1,
// warn=2, monitor=3. Unknown values sort last.
func RiskRank(risk string) int {
	switch risk {
	case types.RiskEmergency:
		return 0
	case types.RiskCall:
		return 1
	case types.RiskWarn:
		return 2
	case types.RiskMonitor:
		return 3
	}
	return 4
}

// NeedsAttentionScope selects alerts an operator should be looking at:
// not closed, still pending human review, and either the AI pipeline is
// stuck/working, the severity is critical, or the risk tier demands a call.
func NeedsAttentionScope(db *gorm.DB) *gorm.DB {
	return db.
		Where("attention_state <> ?", types.AttentionClosed).
		Where("human_status = ?", types.HumanStatusPending).
		Where("(ai_status IN ? OR severity = ? OR risk_escalation IN ?)",
			[]string{types.AIStatusFailed, types.AIStatusInvestigating},
			types.SeverityCritical,
			[]string{types.RiskCall, types.RiskEmergency})
}

// attentionOrderExpr is the deterministic, pagination-stable ordering:
// severity, then risk tier, then soonest ack deadline, then oldest alert.
// The trailing id tie-break keeps the order total.
const attentionOrderExpr = `
CASE severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 WHEN 'info' THEN 2 ELSE 3 END,
CASE risk_escalation WHEN 'emergency' THEN 0 WHEN 'call' THEN 1 WHEN 'warn' THEN 2 WHEN 'monitor' THEN 3 ELSE 4 END,
ack_due_at ASC NULLS LAST,
created_at ASC,
id ASC`

// OrderByAttentionPriority applies the attention ordering to a query.
func OrderByAttentionPriority(db *gorm.DB) *gorm.DB {
	return db.Order(attentionOrderExpr)
}

// CompareAttention reports whether a sorts before b under the attention
// ordering. Mirrors attentionOrderExpr for in-memory sorts.
func CompareAttention(a, b models.Alert) bool {
	if sa, sb := SeverityRank(a.Severity), SeverityRank(b.Severity); sa != sb {
		return sa < sb
	}
	if ra, rb := RiskRank(a.RiskEscalation), RiskRank(b.RiskEscalation); ra != rb {
		return ra < rb
	}
	switch {
	case a.AckDueAt == nil && b.AckDueAt != nil:
		return false
	case a.AckDueAt != nil && b.AckDueAt == nil:
		return true
	case a.AckDueAt != nil && b.AckDueAt != nil && !a.AckDueAt.Equal(*b.AckDueAt):
		return a.AckDueAt.Before(*b.AckDueAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortByAttentionPriority sorts alerts in place, most urgent first.
func SortByAttentionPriority(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return CompareAttention(alerts[i], alerts[j])
	})
}
