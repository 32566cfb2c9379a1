package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/cache"
	"portalsalud/internal/httpserver"
	"portalsalud/internal/jobs"
	"portalsalud/internal/logger"
	"portalsalud/internal/mail"
	"portalsalud/internal/migrate"
	"portalsalud/internal/models"
	"portalsalud/internal/storage"
	"portalsalud/internal/token"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := migrate.Run(db, lg); err != nil {
		lg.Fatalw("migrations failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	storageDir := os.Getenv("STORAGE_DIR")
	if storageDir == "" {
		storageDir = "storage"
	}
	store := storage.New(storageDir)
	c := cache.New(db)
	queue := jobs.New(db, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Work(ctx, jobHandler(db, lg))

	if os.Getenv("TOKEN_ROTATION") != "off" {
		go token.NewRotator(db, lg).Run(ctx, token.DaemonInterval)
	}

	router := httpserver.NewRouter(db, lg, store, c, queue)
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

// jobHandler sends the queued verification emails.
func jobHandler(db *gorm.DB, lg *zap.SugaredLogger) jobs.Handler {
	mailer := mail.NewFromEnv()
	return func(ctx context.Context, p jobs.Payload) error {
		switch p.Type {
		case jobs.TypeVerificationEmail:
			var u models.User
			if err := db.WithContext(ctx).First(&u, p.UserID).Error; err != nil {
				return err
			}
			if u.EmailVerifiedAt != nil {
				return nil
			}
			base := os.Getenv("APP_URL")
			if base == "" {
				base = "http://localhost:8080"
			}
			link := mail.VerificationURL(base, os.Getenv("APP_KEY"), u.ID, u.Email)
			body := mail.VerificationEmailBody(u.Name, link)
			return mailer.Send(u.Email, "Verificá tu dirección de email", body)
		default:
			return fmt.Errorf("unknown job type %q", p.Type)
		}
	}
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		return
	}
	email = strings.ToLower(email)
	var count int64
	db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count)
	if count > 0 {
		return
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		lg.Warnw("ADMIN_EMAIL set but ADMIN_PASSWORD empty, skipping admin seed")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	now := time.Now()
	u := models.User{
		Name:            "Admin",
		Email:           email,
		PasswordHash:    hash,
		IsAdmin:         true,
		EmailVerifiedAt: &now,
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", email)
}
