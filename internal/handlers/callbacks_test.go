package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fleetwatch-dev/fleetwatch/internal/acks"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/delivery"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupCallbackRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	log := zap.NewNop()
	eventLog := events.NewLog(gdb, log)
	flagSvc := flags.NewService(gdb, nil, log)
	attentionEngine := attention.NewEngine(gdb, eventLog, nil, log)
	ackCorrelator := acks.NewCorrelator(gdb, eventLog, flagSvc, attentionEngine, nil, log)
	deliveryTracker := delivery.NewTracker(gdb, eventLog, log)

	Configure(attentionEngine, ackCorrelator, deliveryTracker, eventLog, flagSvc, nil, nil, log)

	router := gin.New()
	router.POST("/callbacks/messages/status", MessageStatusCallback)
	router.POST("/callbacks/voice/status", VoiceStatusCallback)
	router.POST("/callbacks/voice/gather", VoiceGatherCallback)
	router.POST("/callbacks/messages/inbound", InboundMessageCallback)

	return router, mock
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestMessageStatusCallback_UnknownSidStill204(t *testing.T) {
	router, mock := setupCallbackRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	recorder := postForm(router, "/callbacks/messages/status", url.Values{
		"MessageSid":    {"SM-unknown"},
		"MessageStatus": {"delivered"},
	})

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoiceStatusCallback_DatabaseErrorStill204(t *testing.T) {
	router, mock := setupCallbackRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WillReturnError(gorm.ErrInvalidDB)

	recorder := postForm(router, "/callbacks/voice/status", url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"busy"},
	})

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoiceGatherCallback_MissingAlertCorrelation(t *testing.T) {
	router, mock := setupCallbackRouter(t)

	recorder := postForm(router, "/callbacks/voice/gather", url.Values{
		"CallSid": {"CA123"},
		"Digits":  {"1"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/xml")
	assert.Equal(t, "<Response></Response>", recorder.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoiceGatherCallback_DeclinedDigit(t *testing.T) {
	router, mock := setupCallbackRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "attention_state"}).
			AddRow(7, 1, "open"))
	// The deny keypress is recorded; no emergency or attention side
	// effects follow.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "notification_acks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "domain_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	recorder := postForm(router, "/callbacks/voice/gather?alert_id=7", url.Values{
		"CallSid": {"CA123"},
		"Digits":  {"2"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "<Response></Response>", recorder.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInboundMessageCallback_UnmatchedStill204(t *testing.T) {
	router, mock := setupCallbackRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "notification_results"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	recorder := postForm(router, "/callbacks/messages/inbound", url.Values{
		"From": {"+15550000000"},
		"Body": {"what is this"},
	})

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
