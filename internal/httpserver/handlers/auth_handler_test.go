package handlers

import (
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

	"portalsalud/internal/auth"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func authedRequest(method, target, body string, userID uint) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	ctx := auth.WithClaims(r.Context(), auth.Claims{UserID: userID})
	return r.WithContext(ctx)
}

func userRow(t *testing.T, id uint, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "email", "password"}).
		AddRow(id, "socia@example.com", hash)
}

func TestUpdatePasswordRejectsWrongCurrent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(uint(4), 1).
		WillReturnRows(userRow(t, 4, "correcta1"))

	req := authedRequest(http.MethodPut, "/api/auth/password",
		`{"currentPassword":"equivocada","newPassword":"nueva123","confirmPassword":"nueva123"}`, 4)
	rec := httptest.NewRecorder()
	UpdatePassword(db, zap.NewNop().Sugar())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "La contraseña actual es incorrecta")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordRejectsReuse(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(uint(4), 1).
		WillReturnRows(userRow(t, 4, "repetida1"))

	req := authedRequest(http.MethodPut, "/api/auth/password",
		`{"currentPassword":"repetida1","newPassword":"repetida1","confirmPassword":"repetida1"}`, 4)
	rec := httptest.NewRecorder()
	UpdatePassword(db, zap.NewNop().Sugar())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "diferente a la contraseña actual")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordValidationMessages(t *testing.T) {
	db, _ := newMockDB(t)

	req := authedRequest(http.MethodPut, "/api/auth/password",
		`{"currentPassword":"","newPassword":"abc","confirmPassword":"otra"}`, 4)
	rec := httptest.NewRecorder()
	UpdatePassword(db, zap.NewNop().Sugar())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "currentPassword")
	assert.Contains(t, body, "newPassword")
	assert.Contains(t, body, "confirmPassword")
}

func TestUpdatePasswordPersistsNewHash(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(uint(4), 1).
		WillReturnRows(userRow(t, 4, "vieja1234"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "password"=\$1,"password_updated_at"=\$2,"updated_at"=\$3 WHERE id = \$4`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), uint(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := authedRequest(http.MethodPut, "/api/auth/password",
		`{"currentPassword":"vieja1234","newPassword":"nueva5678","confirmPassword":"nueva5678"}`, 4)
	rec := httptest.NewRecorder()
	UpdatePassword(db, zap.NewNop().Sugar())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidPlan(t *testing.T) {
	assert.True(t, validPlan(""))
	assert.True(t, validPlan("Plan Oro"))
	assert.True(t, validPlan("Plan Bronce"))
	assert.False(t, validPlan("Plan Diamante"))
	assert.False(t, validPlan("oro"))
}
