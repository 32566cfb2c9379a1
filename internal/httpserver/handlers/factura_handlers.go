package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/models"
)

// ListFacturas lists the caller's invoices, newest period first.
// GET /api/facturas?estado=Pendiente&limit=20
func ListFacturas(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if s := r.URL.Query().Get("userId"); s != "" {
			if id, err := strconv.ParseUint(s, 10, 64); err == nil {
				userID = uint(id)
			}
		}
		if userID == 0 {
			respondError(w, http.StatusBadRequest, "userId es requerido para listar facturas")
			return
		}
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		q := db.Where("user_id = ?", userID).Order("periodo desc")
		if estado := r.URL.Query().Get("estado"); estado != "" {
			q = q.Where("estado = ?", estado)
		}
		var facturas []models.Factura
		if err := q.Limit(limit).Find(&facturas).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message":  "Facturas obtenidas correctamente",
			"count":    len(facturas),
			"facturas": facturas,
		})
	}
}
