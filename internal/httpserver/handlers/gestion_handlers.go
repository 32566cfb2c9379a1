package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/models"
	"portalsalud/internal/storage"
)

var gestionEstados = map[string]bool{
	models.GestionPendiente:  true,
	models.GestionEnProceso:  true,
	models.GestionCompletada: true,
	models.GestionRechazada:  true,
}

type createGestionReq struct {
	Estado string          `json:"estado"`
	Nombre string          `json:"nombre"`
	Fecha  json.RawMessage `json:"fecha"`
	UserID json.RawMessage `json:"userId"`
}

// parseFecha accepts a unix timestamp (seconds or milliseconds), a date
// string, or nothing; anything unusable falls back to now.
func parseFecha(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now()
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return time.Now()
		}
		ts := int64(n)
		if ts > 1_000_000_000_000 {
			ts /= 1000
		}
		return time.Unix(ts, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" && s != "0" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

/// resolveGestionUser resolves the target user: an explicit numeric userId,
// an explicit document number, or the caller.
func resolveGestionUser(db *gorm.DB, raw json.RawMessage, callerID uint) uint {
	if len(raw) > 0 && string(raw) != "null" {
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
			return uint(n)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			if id, err := strconv.ParseUint(s, 10, 64); err == nil {
				// Numeric strings may still be a document number; prefer the
				// direct id unless a user matches the document.
				var u models.User
				if db.First(&u, "document_number = ?", s).Error == nil {
					return u.ID
				}
				return uint(id)
			}
			var u models.User
			if db.First(&u, "document_number = ?", s).Error == nil {
				return u.ID
			}
		}
	}
	return callerID
}

// CreateGestion opens a case for the caller (or an explicit user).
// POST /api/gestiones
func CreateGestion(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGestionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		nombre := strings.TrimSpace(req.Nombre)
		if nombre == "" {
			respondError(w, http.StatusBadRequest, "El nombre de la gestión es requerido")
			return
		}
		estado := req.Estado
		if estado == "" {
			estado = models.GestionPendiente
		}
		if !gestionEstados[estado] {
			respondError(w, http.StatusBadRequest,
				"El estado debe ser uno de: pendiente, en_proceso, completada, rechazada")
			return
		}
		userID := resolveGestionUser(db, req.UserID, auth.UserID(r.Context()))
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "No se pudo determinar el usuario. Debes estar autenticado.")
			return
		}

		g := models.Gestion{
			UserID: userID,
			Estado: estado,
			Nombre: nombre,
			Fecha:  parseFecha(req.Fecha),
		}
		if err := db.Create(&g).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "Gestión creada correctamente",
			"gestion": gestionView(&g),
		})
	}
}

// gestionView adds the derived document URL the frontend consumes.
func gestionView(g *models.Gestion) map[string]any {
	v := map[string]any{
		"id":        g.ID,
		"userId":    g.UserID,
		"estado":    g.Estado,
		"nombre":    g.Nombre,
		"fecha":     g.Fecha,
		"createdAt": g.CreatedAt,
		"updatedAt": g.UpdatedAt,
	}
	if g.HasDocument() {
		v["documentUrl"] = fmt.Sprintf("/api/gestiones/%d/document", g.ID)
	} else {
		v["documentUrl"] = nil
	}
	return v
}

// ListGestiones lists the caller's cases, optionally filtered by estado.
// GET /api/gestiones?estado=...&limit=20
func ListGestiones(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if s := r.URL.Query().Get("userId"); s != "" {
			if id, err := strconv.ParseUint(s, 10, 64); err == nil {
				userID = uint(id)
			}
		}
		if userID == 0 {
			respondError(w, http.StatusBadRequest, "userId es requerido para listar gestiones")
			return
		}
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		q := db.Where("user_id = ?", userID)
		if estado := r.URL.Query().Get("estado"); estado != "" {
			q = q.Where("estado = ?", estado)
		}
		var gestiones []models.Gestion
		if err := q.Order("fecha desc").Limit(limit).Find(&gestiones).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		views := make([]map[string]any, 0, len(gestiones))
		for i := range gestiones {
			views = append(views, gestionView(&gestiones[i]))
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message":   "Gestiones obtenidas correctamente",
			"count":     len(views),
			"gestiones": views,
		})
	}
}

// loadOwnedGestion fetches the gestion and enforces ownership. A non-owner
// gets 403 and the record stays untouched.
func loadOwnedGestion(db *gorm.DB, w http.ResponseWriter, r *http.Request, action string) *models.Gestion {
	var g models.Gestion
	if err := db.First(&g, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		respondError(w, http.StatusNotFound, "Gestión no encontrada")
		return nil
	}
	if auth.UserID(r.Context()) != g.UserID {
		respondError(w, http.StatusForbidden, "No tienes permiso para "+action+" esta gestión")
		return nil
	}
	return &g
}

// DeleteGestion removes a case and its stored document.
// DELETE /api/gestiones/{id}
func DeleteGestion(db *gorm.DB, lg *zap.SugaredLogger, store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := loadOwnedGestion(db, w, r, "eliminar")
		if g == nil {
			return
		}
		if g.HasDocument() {
			if err := store.Delete(g.DocumentPath); err != nil {
				lg.Errorw("gestion document cleanup failed", "gestion_id", g.ID, "error", err)
			}
		}
		if err := db.Delete(g).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Error al eliminar la gestión")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Gestión eliminada exitosamente"})
	}
}

// UploadDocument attaches (or replaces) the case's document. Images are
// recompressed; a failed compression stores the original bytes.
// POST /api/gestiones/{id}/document
func UploadDocument(db *gorm.DB, lg *zap.SugaredLogger, store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := loadOwnedGestion(db, w, r, "modificar")
		if g == nil {
			return
		}

		if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Error de validación: el documento es requerido")
			return
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Error de validación: el documento es requerido")
			return
		}
		defer file.Close()

		if header.Size > storage.MaxUploadBytes {
			respondError(w, http.StatusBadRequest, "El documento no puede superar los 10MB")
			return
		}
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !storage.AllowedExtensions[ext] {
			respondError(w, http.StatusBadRequest, "El documento debe ser jpg, jpeg, png o pdf")
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadBytes+1))
		if err != nil || len(data) > storage.MaxUploadBytes {
			respondError(w, http.StatusBadRequest, "El documento no puede superar los 10MB")
			return
		}

		if storage.IsImageUpload(ext) {
			data = storage.CompressImage(data, ext, lg)
		}

		fileName := uuid.NewString() + ext
		stored, err := store.SaveGestionDocument(fileName, data)
		if err != nil {
			lg.Errorw("document store failed", "gestion_id", g.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error al subir el documento")
			return
		}

		// Replace: remove the previous file only after the new one is safe.
		if g.HasDocument() {
			if err := store.Delete(g.DocumentPath); err != nil {
				lg.Warnw("previous document cleanup failed", "gestion_id", g.ID, "error", err)
			}
		}

		err = db.Model(&models.Gestion{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
			"document_path": stored,
			"updated_at":    time.Now(),
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al subir el documento")
			return
		}
		g.DocumentPath = stored

		respondJSON(w, http.StatusOK, map[string]any{
			"message":      "Documento subido exitosamente",
			"documentPath": stored,
			"documentUrl":  fmt.Sprintf("/api/gestiones/%d/document", g.ID),
			"originalName": header.Filename,
			"gestion":      gestionView(g),
		})
	}
}

// DownloadDocument streams the stored file inline.
// GET /api/gestiones/{id}/document
func DownloadDocument(db *gorm.DB, lg *zap.SugaredLogger, store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := loadOwnedGestion(db, w, r, "ver el documento de")
		if g == nil {
			return
		}
		if !g.HasDocument() {
			respondError(w, http.StatusNotFound, "Esta gestión no tiene documento asociado")
			return
		}
		data, err := store.Read(g.DocumentPath)
		if err != nil {
			respondError(w, http.StatusNotFound, "El archivo no existe en el servidor")
			return
		}
		fileName := filepath.Base(g.DocumentPath)
		w.Header().Set("Content-Type", storage.MIMEType(fileName))
		w.Header().Set("Content-Disposition", `inline; filename="`+fileName+`"`)
		_, _ = w.Write(data)
	}
}

// DeleteDocument detaches and removes the case's document; the case itself
// survives.
// DELETE /api/gestiones/{id}/document
func DeleteDocument(db *gorm.DB, lg *zap.SugaredLogger, store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := loadOwnedGestion(db, w, r, "eliminar el documento de")
		if g == nil {
			return
		}
		if !g.HasDocument() {
			respondError(w, http.StatusNotFound, "Esta gestión no tiene documento asociado")
			return
		}
		if err := store.Delete(g.DocumentPath); err != nil {
			lg.Errorw("document delete failed", "gestion_id", g.ID, "error", err)
		}
		err := db.Model(&models.Gestion{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
			"document_path": "",
			"updated_at":    time.Now(),
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al eliminar el documento")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Documento eliminado exitosamente"})
	}
}
