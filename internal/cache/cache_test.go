package cache

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

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

func TestGetHit(t *testing.T) {
	db, mock := newMockDB(t)
	s := New(db)

	mock.ExpectQuery(`SELECT \* FROM "cache" WHERE key = \$1`).
		WithArgs("cartilla:provinces", 1).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "expiration"}).
			AddRow("cartilla:provinces", `[{"id":1}]`, time.Now().Add(time.Hour).Unix()))

	v, ok := s.Get("cartilla:provinces")
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(v))
}

func TestGetExpiredIsMiss(t *testing.T) {
	db, mock := newMockDB(t)
	s := New(db)

	mock.ExpectQuery(`SELECT \* FROM "cache" WHERE key = \$1`).
		WithArgs("k", 1).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "expiration"}).
			AddRow("k", "stale", time.Now().Add(-time.Minute).Unix()))

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	db, mock := newMockDB(t)
	s := New(db)

	mock.ExpectQuery(`SELECT \* FROM "cache" WHERE key = \$1`).
		WithArgs("nope", 1).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "expiration"}))

	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestPutUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	s := New(db)

	mock.ExpectExec(`INSERT INTO "cache" .*ON CONFLICT \("key"\) DO UPDATE`).
		WithArgs("k", "v", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put("k", []byte("v"), 10*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush(t *testing.T) {
	db, mock := newMockDB(t)
	s := New(db)

	mock.ExpectExec(`DELETE FROM "cache"`).WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, s.Flush())
}
