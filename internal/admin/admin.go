// Package admin is the server-rendered back-office: request log browser,
// aggregate statistics and framework bookkeeping viewers, gated behind a
// cookie-carried JWT plus the is_admin flag.
package admin

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/cache"
	"portalsalud/internal/models"
)

const adminCookie = "admin_token"

// cookieTTL keeps the panel session alive for a week.
const cookieTTL = 7 * 24 * time.Hour

type Admin struct {
	db    *gorm.DB
	lg    *zap.SugaredLogger
	cache *cache.Store
	pages map[string]*template.Template
}

// Mount attaches the panel routes onto the root router.
func Mount(r chi.Router, db *gorm.DB, lg *zap.SugaredLogger, c *cache.Store) {
	a := &Admin{db: db, lg: lg, cache: c, pages: parsePages()}

	r.Get("/", a.loginForm)
	r.Post("/admin/login", a.login)
	r.Post("/admin/logout", a.logout)

	r.Route("/admin", func(panel chi.Router) {
		panel.Use(a.requireAdmin)
		panel.Get("/dashboard", a.dashboard)
		panel.Get("/requests", a.requests)
		panel.Get("/requests/{id}", a.requestDetail)
		panel.Get("/migrations", a.migrations)
		panel.Get("/cache", a.cacheEntries)
		panel.Get("/jobs", a.jobs)
		panel.Post("/cache/clear", a.clearCache)
		panel.Post("/logs/clear", a.clearOldLogs)
	})
}

// currentAdmin resolves the cookie JWT to an admin user, or nil.
func (a *Admin) currentAdmin(r *http.Request) *models.User {
	c, err := r.Cookie(adminCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	claims, err := auth.Verify(c.Value)
	if err != nil {
		return nil
	}
	var u models.User
	if err := a.db.First(&u, claims.UserID).Error; err != nil {
		return nil
	}
	if !u.IsAdmin {
		return nil
	}
	return &u
}

func (a *Admin) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.currentAdmin(r) == nil {
			http.Redirect(w, r, "/?error="+url.QueryEscape("Debes iniciar sesión para acceder al panel de administración"), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginForm renders the panel login page, skipping straight to the
// dashboard when the cookie is still good.
func (a *Admin) loginForm(w http.ResponseWriter, r *http.Request) {
	if a.currentAdmin(r) != nil {
		http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
		return
	}
	a.render(w, "login", map[string]any{
		"Error":   r.URL.Query().Get("error"),
		"Success": r.URL.Query().Get("success"),
	})
}

// login accepts the HTML form, validates credentials + is_admin and plants
// the JWT cookie.
func (a *Admin) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape("Credenciales inválidas"), http.StatusFound)
		return
	}
	identifier := r.PostFormValue("email")
	password := r.PostFormValue("password")

	var u models.User
	err := a.db.Where("email = ? OR document_number = ?", identifier, identifier).First(&u).Error
	if err != nil || auth.CheckPassword(u.PasswordHash, password) != nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape("Credenciales inválidas"), http.StatusFound)
		return
	}
	if !u.IsAdmin {
		http.Redirect(w, r, "/?error="+url.QueryEscape("No tienes permiso para acceder al panel de administración"), http.StatusFound)
		return
	}

	doc := ""
	if u.DocumentNumber != nil {
		doc = *u.DocumentNumber
	}
	tok, jti, err := auth.Sign(u.ID, doc)
	if err != nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape("Error al iniciar sesión"), http.StatusFound)
		return
	}
	// The panel session is cookie-scoped; record it like any other.
	_ = a.db.Create(&models.Session{JTI: jti, UserID: u.ID, ExpiresAt: time.Now().Add(auth.TokenTTL())}).Error

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    tok,
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
}

func (a *Admin) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/?success="+url.QueryEscape("Sesión cerrada exitosamente"), http.StatusFound)
}
