package httpserver

import (
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func echoJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func TestRequestLoggerPersistsRedactedRow(t *testing.T) {
	db, mock := newMockDB(t)
	var storedBody, storedResponse string
	mock.ExpectQuery(`INSERT INTO "request_logs"`).
		WithArgs(
			"POST", "/api/auth/login", sqlmock.AnyArg(), sqlmock.AnyArg(), nil,
			201, sqlmock.AnyArg(),
			argCapture(&storedBody), argCapture(&storedResponse), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	h := RequestLogger(db, zap.NewNop().Sugar())(http.HandlerFunc(echoJSON))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ana@example.com","password":"secreta123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.NotContains(t, storedBody, "secreta123")
	assert.Contains(t, storedBody, "ana@example.com")
	assert.Equal(t, `{"ok":true}`, storedResponse)
}

func TestRequestLoggerTruncatesLongResponses(t *testing.T) {
	db, mock := newMockDB(t)
	var storedResponse string
	mock.ExpectQuery(`INSERT INTO "request_logs"`).
		WithArgs(
			"GET", "/api/facturas", sqlmock.AnyArg(), sqlmock.AnyArg(), nil,
			200, sqlmock.AnyArg(),
			"", argCapture(&storedResponse), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	big := strings.Repeat("x", 9000)
	h := RequestLogger(db, zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(big))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facturas", nil))

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, storedResponse, maxLoggedBody)
	// Full payload still reached the client.
	assert.Len(t, rec.Body.String(), 9000)
}

func TestRequestLoggerSkipsAdminSubtree(t *testing.T) {
	db, mock := newMockDB(t)
	// No INSERT expectation: any write would fail ExpectationsWereMet.

	h := RequestLogger(db, zap.NewNop().Sugar())(http.HandlerFunc(echoJSON))
	for _, path := range []string{"/api/admin/dashboard", "/healthz", "/admin/requests"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusCreated, rec.Code, path)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestLoggerWriteFailureIsNotFatal(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "request_logs"`).
		WillReturnError(gorm.ErrInvalidDB)

	h := RequestLogger(db, zap.NewNop().Sugar())(http.HandlerFunc(echoJSON))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gestiones", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptureRequestBodyRestoresReader(t *testing.T) {
	body := `{"email":"b@c.d","password":"hunter22","plan":"Plan Oro"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	captured := captureRequestBody(req)
	assert.NotContains(t, captured, "hunter22")
	assert.Contains(t, captured, "Plan Oro")

	// The handler downstream still sees the original bytes.
	buf := make([]byte, len(body))
	n, _ := req.Body.Read(buf)
	assert.Equal(t, body, string(buf[:n]))
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.7", clientIP(&http.Request{RemoteAddr: "10.0.0.7:4411"}))
	assert.Equal(t, "::1", clientIP(&http.Request{RemoteAddr: "[::1]:4411"}))
	assert.Equal(t, "203.0.113.9", clientIP(&http.Request{RemoteAddr: "203.0.113.9"}))
}

// argCapture stores the matched string argument so the test can assert on it
// after the handler ran.
func argCapture(dst *string) sqlmock.Argument {
	return captureMatcher{dst: dst}
}

type captureMatcher struct{ dst *string }

func (m captureMatcher) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	*m.dst = s
	return true
}
