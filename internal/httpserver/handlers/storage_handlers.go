package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/models"
)

// ListDocuments lists the caller's gestiones that carry a stored file, in
// document form.
// GET /api/storage/documents?limit=50&gestionId=...
func ListDocuments(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		q := db.Where("user_id = ?", userID).Where("document_path <> ''")
		if gid := r.URL.Query().Get("gestionId"); gid != "" {
			q = q.Where("id = ?", gid)
		}
		var gestiones []models.Gestion
		if err := q.Order("fecha desc").Order("created_at desc").Limit(limit).Find(&gestiones).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Error al obtener los documentos")
			return
		}

		documents := make([]map[string]any, 0, len(gestiones))
		for i := range gestiones {
			g := &gestiones[i]
			fileName := filepath.Base(g.DocumentPath)
			documents = append(documents, map[string]any{
				"id":           g.ID,
				"gestionId":    g.ID,
				"fileName":     fileName,
				"originalName": fileName,
				"gestionName":  g.Nombre,
				"uploadedAt":   g.CreatedAt,
				"documentUrl":  fmt.Sprintf("/api/gestiones/%d/document", g.ID),
				"estado":       g.Estado,
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"documents": documents,
			"count":     len(documents),
		})
	}
}

// DocumentURL resolves a stored file name back to its gestion's download
// URL, scoped to the caller's own documents.
// GET /api/storage/url/{fileName}
func DocumentURL(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileName := chi.URLParam(r, "fileName")
		decoded, err := url.PathUnescape(fileName)
		if err != nil {
			decoded = fileName
		}

		var g models.Gestion
		err = db.Where("user_id = ?", auth.UserID(r.Context())).
			Where("document_path LIKE ?", "%"+decoded).
			First(&g).Error
		if err != nil {
			respondError(w, http.StatusNotFound, "Documento no encontrado o no tienes permiso para accederlo")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"url": fmt.Sprintf("/api/gestiones/%d/document", g.ID),
		})
	}
}
