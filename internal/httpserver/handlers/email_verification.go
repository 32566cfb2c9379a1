package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/mail"
	"portalsalud/internal/models"
)

// VerifyEmail validates a signed verification link and redirects the
// browser to the frontend's success or error page.
// GET /api/email/verify/{id}/{hash}
func VerifyEmail(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	errorURL := func() string { return frontendURL() + "/verificacion/error" }
	successURL := func() string { return frontendURL() + "/verificacion/exito" }

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Redirect(w, r, errorURL(), http.StatusFound)
			return
		}
		hash := chi.URLParam(r, "hash")
		expires := r.URL.Query().Get("expires")
		signature := r.URL.Query().Get("signature")

		if !mail.CheckSignature(os.Getenv("APP_KEY"), uint(id), hash, expires, signature) {
			http.Redirect(w, r, errorURL(), http.StatusFound)
			return
		}

		var u models.User
		if err := db.First(&u, uint(id)).Error; err != nil {
			http.Redirect(w, r, errorURL(), http.StatusFound)
			return
		}
		if !mail.CheckEmailHash(hash, u.Email) {
			http.Redirect(w, r, errorURL(), http.StatusFound)
			return
		}
		if u.EmailVerifiedAt == nil {
			now := time.Now()
			if err := db.Model(&u).Update("email_verified_at", now).Error; err != nil {
				lg.Errorw("email verification persist failed", "user_id", u.ID, "error", err)
				http.Redirect(w, r, errorURL(), http.StatusFound)
				return
			}
			lg.Infow("email verified", "user_id", u.ID)
		}
		http.Redirect(w, r, successURL(), http.StatusFound)
	}
}
