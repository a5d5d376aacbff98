package acks

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestCorrelator(t *testing.T) (*Correlator, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := zap.NewNop()
	eventLog := events.NewLog(gdb, log)
	flagSvc := flags.NewService(gdb, nil, log)
	engine := attention.NewEngine(gdb, eventLog, nil, log)

	return NewCorrelator(gdb, eventLog, flagSvc, engine, nil, log), mock
}

// expectAckRecorded covers the transactional ack insert plus the timeline
// event append.
func expectAckRecorded(mock sqlmock.Sqlmock, ackID uint) {
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ackID))
	mock.ExpectQuery(`INSERT INTO "domain_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
}

// expectFlagDisabled covers the attention-engine flag lookup when no row
// exists for the company.
func expectFlagDisabled(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

func TestRecordUIAck_CreatesThenReturnsExisting(t *testing.T) {
	correlator, mock := newTestCorrelator(t)
	ctx := context.Background()

	// First ack: no existing row, insert and record.
	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionOpen))
	mock.ExpectQuery(`SELECT \* FROM "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectAckRecorded(mock, 11)
	expectFlagDisabled(mock)

	result, err := correlator.RecordUIAck(ctx, 7, 1, 3, map[string]interface{}{"source": "review_page"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, uint(11), result.Ack.ID)
	assert.Equal(t, types.AttentionOpen, result.AttentionState)

	// Repeat from the same user: the existing row comes back unchanged.
	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionAcked))
	mock.ExpectQuery(`SELECT \* FROM "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_id", "company_id", "ack_type"}).
			AddRow(11, 7, 1, types.AckTypeUI))

	result, err = correlator.RecordUIAck(ctx, 7, 1, 3, nil)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, uint(11), result.Ack.ID)
	assert.Equal(t, types.AttentionAcked, result.AttentionState)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUIAck_ConcurrentRequestsYieldOneRow(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	// Both requests missed the lookup; the second insert hits the unique
	// (alert, type, user) index, creates nothing, and returns the
	// winner's row instead.
	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionOpen))
	mock.ExpectQuery(`SELECT \* FROM "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "notification_acks" .*ON CONFLICT .*DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_id", "company_id", "ack_type"}).
			AddRow(11, 7, 1, types.AckTypeUI))

	result, err := correlator.RecordUIAck(context.Background(), 7, 1, 3, nil)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, uint(11), result.Ack.ID)
	assert.Equal(t, types.AttentionOpen, result.AttentionState)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUIAck_AlertNotFound(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := correlator.RecordUIAck(context.Background(), 99, 1, 3, nil)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIVRAck_DenyDigitRecordedWithoutSideEffects(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionOpen))
	// The deny row is persisted, but no flag check follows: the attention
	// engine and emergency dispatch are confirm-only.
	expectAckRecorded(mock, 14)

	result, err := correlator.RecordIVRAck(context.Background(), 7, "CA123", "2")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, types.AckTypeIVR, result.Ack.AckType)
	assert.Equal(t, types.AttentionOpen, result.AttentionState)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIVRAck_UnknownDigitDropped(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionOpen))

	result, err := correlator.RecordIVRAck(context.Background(), 7, "CA123", "9")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIVRAck_ConfirmDigit(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, types.AttentionOpen))
	expectAckRecorded(mock, 12)
	expectFlagDisabled(mock)

	result, err := correlator.RecordIVRAck(context.Background(), 7, "CA123", "1")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, types.AckTypeIVR, result.Ack.AckType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// timeNear matches a bound time argument within a few seconds of expected,
// absorbing test execution time.
type timeNear struct {
	expected time.Time
}

func (m timeNear) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	if !ok {
		return false
	}
	delta := ts.Sub(m.expected)
	if delta < 0 {
		delta = -delta
	}
	return delta < 5*time.Second
}

func TestRecordReplyAck_MatchesRecentNotification(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WithArgs("%+15551234567%", true, timeNear{cutoff}, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_id", "company_id", "to_number"}).
			AddRow(5, 7, 1, "+15551234567"))
	expectAckRecorded(mock, 13)
	expectFlagDisabled(mock)

	result, err := correlator.RecordReplyAck(context.Background(), "whatsapp:+15551234567", "on my way")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, uint(7), result.Ack.AlertID)
	require.NotNil(t, result.Ack.NotificationResultID)
	assert.Equal(t, uint(5), *result.Ack.NotificationResultID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReplyAck_StaleNotificationOutsideWindow(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	// The scan is bounded to the last 24 hours; a notification older than
	// the cutoff is filtered out by the query, so the reply creates
	// nothing.
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WithArgs("%+15551234567%", true, timeNear{cutoff}, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := correlator.RecordReplyAck(context.Background(), "+15551234567", "on my way")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReplyAck_NoMatchDropped(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := correlator.RecordReplyAck(context.Background(), "+15550000000", "hello?")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReplyAck_UnparseableSenderDropped(t *testing.T) {
	correlator, mock := newTestCorrelator(t)

	result, err := correlator.RecordReplyAck(context.Background(), "not a number", "hi")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}
