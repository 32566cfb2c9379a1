package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portalsalud/internal/storage"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func gestionRow(id, userID uint, docPath string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "estado", "fecha", "nombre", "document_path"}).
		AddRow(id, userID, "pendiente", time.Now(), "Cambio de plan", docPath)
}

func TestDeleteGestionForbiddenForNonOwner(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "gestiones" WHERE id = \$1`).
		WithArgs("12", 1).
		WillReturnRows(gestionRow(12, 9, ""))
	// No DELETE expectation: the row must stay untouched.

	req := withURLParam(authedRequest(http.MethodDelete, "/api/gestiones/12", "", 7), "id", "12")
	rec := httptest.NewRecorder()
	DeleteGestion(db, zap.NewNop().Sugar(), storage.New(t.TempDir()))(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "No tienes permiso")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGestionNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "gestiones" WHERE id = \$1`).
		WithArgs("99", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := withURLParam(authedRequest(http.MethodDelete, "/api/gestiones/99", "", 7), "id", "99")
	rec := httptest.NewRecorder()
	DeleteGestion(db, zap.NewNop().Sugar(), storage.New(t.TempDir()))(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGestionRemovesOwnedRow(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "gestiones" WHERE id = \$1`).
		WithArgs("12", 1).
		WillReturnRows(gestionRow(12, 7, ""))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "gestiones" WHERE "gestiones"\."id" = \$1`).
		WithArgs(uint(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := withURLParam(authedRequest(http.MethodDelete, "/api/gestiones/12", "", 7), "id", "12")
	rec := httptest.NewRecorder()
	DeleteGestion(db, zap.NewNop().Sugar(), storage.New(t.TempDir()))(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eliminada exitosamente")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseFecha(t *testing.T) {
	now := time.Now()

	got := parseFecha([]byte(`"2025-03-14"`))
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.March, got.Month())

	got = parseFecha([]byte(`"2025-03-14T10:30:00Z"`))
	assert.Equal(t, 14, got.Day())

	// Unix milliseconds.
	got = parseFecha([]byte(`1741948200000`))
	assert.Equal(t, 2025, got.Year())

	// Unix seconds.
	got = parseFecha([]byte(`1741948200`))
	assert.Equal(t, 2025, got.Year())

	// Absent fecha falls back to now.
	got = parseFecha(nil)
	assert.WithinDuration(t, now, got, 2*time.Second)
}
