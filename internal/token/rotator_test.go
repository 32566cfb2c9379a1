package token

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// threeDigit matches any zero-padded 3-digit token value.
type threeDigit struct{}

func (threeDigit) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && regexp.MustCompile(`^[0-9]{3}$`).MatchString(s)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db, mock
}

func TestGenerateFormat(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{3}$`)
	for i := 0; i < 500; i++ {
		assert.Regexp(t, re, Generate())
	}
}

func TestRunCycleRotatesEachActiveUserOnce(t *testing.T) {
	db, mock := newMockDB(t)
	rt := NewRotator(db, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE digital_token_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	// Each write must touch exactly digital_token and updated_at, scoped by
	// id: anything broader risks clobbering concurrent profile writes.
	update := `UPDATE "users" SET "digital_token"=\$1,"updated_at"=\$2 WHERE id = \$3`
	mock.ExpectExec(update).
		WithArgs(threeDigit{}, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs(threeDigit{}, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := rt.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCycleNoActiveUsers(t *testing.T) {
	db, mock := newMockDB(t)
	rt := NewRotator(db, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE digital_token_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	n, err := rt.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	// No UPDATE was expected: inactive users are never written.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCycleContinuesPastPerUserFailure(t *testing.T) {
	db, mock := newMockDB(t)
	rt := NewRotator(db, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE digital_token_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7).AddRow(8))
	update := `UPDATE "users" SET "digital_token"=\$1,"updated_at"=\$2 WHERE id = \$3`
	mock.ExpectExec(update).
		WithArgs(threeDigit{}, sqlmock.AnyArg(), 7).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(update).
		WithArgs(threeDigit{}, sqlmock.AnyArg(), 8).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := rt.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCycleQueryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	rt := NewRotator(db, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE digital_token_active = \$1`).
		WithArgs(true).
		WillReturnError(errors.New("timeout"))

	n, err := rt.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestActivateAndDeactivate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE "users" SET "digital_token"=\$1,"digital_token_active"=\$2,"updated_at"=\$3 WHERE id = \$4`).
		WithArgs(threeDigit{}, true, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tok, err := Activate(db, 3)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{3}$`, tok)

	mock.ExpectExec(`UPDATE "users" SET "digital_token"=\$1,"digital_token_active"=\$2,"updated_at"=\$3 WHERE id = \$4`).
		WithArgs(nil, false, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, Deactivate(db, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
