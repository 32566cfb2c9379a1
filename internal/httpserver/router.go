package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/admin"
	"portalsalud/internal/auth"
	"portalsalud/internal/cache"
	"portalsalud/internal/httpserver/handlers"
	"portalsalud/internal/jobs"
	"portalsalud/internal/storage"
)

// NewRouter wires the public JSON API and the server-rendered admin panel.
func NewRouter(db *gorm.DB, lg *zap.SugaredLogger, store *storage.Store, c *cache.Store, queue *jobs.Queue) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Use(RequestLogger(db, lg))

		api.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"Servidor funcionando correctamente 🚀"}`))
		})

		// Public auth surface.
		api.Route("/auth", func(pub chi.Router) {
			pub.Post("/signup", handlers.Signup(db, lg))
			pub.Post("/login", handlers.Login(db, lg))
			pub.Post("/verify", handlers.VerifyToken(db, lg))
			pub.Post("/recovery", handlers.Recovery(db, lg))
			pub.Post("/reset-password", handlers.ResetPassword(db, lg))
		})
		api.Get("/email/verify/{id}/{hash}", handlers.VerifyEmail(db, lg))

		// Session-bound auth surface.
		api.Group(func(protected chi.Router) {
			protected.Use(auth.JWTAuth(db))
			protected.Get("/auth/me", handlers.Me(db, lg))
			protected.Put("/auth/password", handlers.UpdatePassword(db, lg))
			protected.Post("/auth/logout", handlers.Logout(db, lg))
			protected.Get("/auth/digital-token", handlers.DigitalToken(db, lg))
			protected.Post("/auth/verify-email", handlers.SendVerificationEmail(db, lg, queue))
			protected.Get("/auth/notifications", handlers.Notifications(db, lg))

			protected.Put("/users/me", handlers.UpdateCurrentUser(db, lg))

			protected.Route("/gestiones", func(g chi.Router) {
				g.Post("/", handlers.CreateGestion(db, lg))
				g.Get("/", handlers.ListGestiones(db, lg))
				g.Delete("/{id}", handlers.DeleteGestion(db, lg, store))
				g.Post("/{id}/document", handlers.UploadDocument(db, lg, store))
				g.Get("/{id}/document", handlers.DownloadDocument(db, lg, store))
				g.Delete("/{id}/document", handlers.DeleteDocument(db, lg, store))
			})

			protected.Get("/facturas", handlers.ListFacturas(db, lg))

			protected.Route("/storage", func(s chi.Router) {
				s.Get("/documents", handlers.ListDocuments(db, lg))
				s.Get("/url/{fileName}", handlers.DocumentURL(db, lg))
			})
		})

		// Member directory (back-office tooling consumes it unauthenticated).
		api.Route("/users", func(u chi.Router) {
			u.Get("/", handlers.ListUsers(db, lg))
			u.Get("/{id}", handlers.GetUser(db, lg))
			u.Post("/", handlers.CreateUser(db, lg))
			u.Put("/{id}", handlers.UpdateUser(db, lg))
			u.Delete("/{id}", handlers.DeleteUser(db, lg))
		})

		// Cartilla is public.
		api.Route("/cartilla", func(ca chi.Router) {
			ca.Get("/provinces", handlers.Provinces(db, lg, c))
			ca.Get("/localidades", handlers.Localidades(db, lg))
			ca.Get("/specialties", handlers.Specialties(db, lg))
			ca.Get("/providers", handlers.SearchProviders(db, lg))
			ca.Get("/providers-grouped", handlers.SearchProvidersGrouped(db, lg))
			ca.Get("/professionals", handlers.SearchProfessionals(db, lg))
			ca.Get("/pharmacies", handlers.SearchPharmacies(db, lg))
			ca.Get("/vaccines", handlers.SearchVaccines(db, lg))
		})
	})

	admin.Mount(r, db, lg, c)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
