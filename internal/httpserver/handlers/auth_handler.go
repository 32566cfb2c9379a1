package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/jobs"
	"portalsalud/internal/models"
	"portalsalud/internal/token"
)

type addressInput struct {
	Street    string `json:"street"`
	Number    int    `json:"number"`
	Floor     string `json:"floor"`
	Apartment string `json:"apartment"`
	City      string `json:"city"`
	Province  string `json:"province"`
}

type signupReq struct {
	Email           string        `json:"email"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	DocumentNumber  string        `json:"documentNumber"`
	PhoneNumber     string        `json:"phoneNumber"`
	DateOfBirth     string        `json:"dateOfBirth"`
	AssociateNumber string        `json:"associateNumber"`
	Plan            string        `json:"plan"`
	Address         *addressInput `json:"address"`
}

func validPlan(plan string) bool {
	if plan == "" {
		return true
	}
	for _, p := range models.PlanNames {
		if p == plan {
			return true
		}
	}
	return false
}

// issueSession signs a JWT for the user and records its session row.
func issueSession(db *gorm.DB, u *models.User) (string, error) {
	doc := ""
	if u.DocumentNumber != nil {
		doc = *u.DocumentNumber
	}
	tok, jti, err := auth.Sign(u.ID, doc)
	if err != nil {
		return "", err
	}
	sess := models.Session{JTI: jti, UserID: u.ID, ExpiresAt: time.Now().Add(auth.TokenTTL())}
	if err := db.Create(&sess).Error; err != nil {
		return "", err
	}
	return tok, nil
}

// Signup registers a member, optionally with an address, and returns a JWT.
// POST /api/auth/signup
func Signup(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))

		messages := map[string]string{}
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			messages["email"] = "Email válido es requerido"
		}
		if len(req.Password) < 6 {
			messages["password"] = "La contraseña debe tener al menos 6 caracteres"
		}
		if !validPlan(req.Plan) {
			messages["plan"] = "Plan inválido"
		}
		if len(messages) > 0 {
			respondValidation(w, messages)
			return
		}

		var count int64
		db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
		if count > 0 {
			respondValidation(w, map[string]string{"email": "El email ya está registrado"})
			return
		}
		if req.DocumentNumber != "" {
			db.Model(&models.User{}).Where("document_number = ?", req.DocumentNumber).Count(&count)
			if count > 0 {
				respondValidation(w, map[string]string{"documentNumber": "El número de documento ya está registrado"})
				return
			}
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al crear usuario")
			return
		}

		now := time.Now()
		u := models.User{
			Name:              req.Name,
			Email:             req.Email,
			PasswordHash:      hash,
			PhoneNumber:       req.PhoneNumber,
			AssociateNumber:   req.AssociateNumber,
			Plan:              req.Plan,
			PasswordUpdatedAt: &now,
		}
		if u.Name == "" {
			u.Name = "Usuario"
		}
		if req.DocumentNumber != "" {
			u.DocumentNumber = &req.DocumentNumber
		}
		if req.DateOfBirth != "" {
			if dob, err := time.Parse("2006-01-02", req.DateOfBirth); err == nil {
				u.DateOfBirth = &dob
			}
		}
		if req.Address != nil {
			u.Address = &models.Address{
				Street:    req.Address.Street,
				Number:    req.Address.Number,
				Floor:     req.Address.Floor,
				Apartment: req.Address.Apartment,
				City:      req.Address.City,
				Province:  req.Address.Province,
			}
		}

		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Error al crear usuario")
			return
		}

		tok, err := issueSession(db, &u)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al generar token")
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "Usuario creado exitosamente",
			"token":   tok,
			"user":    u,
		})
	}
}

type loginReq struct {
	Identifier     string `json:"identifier"`
	Password       string `json:"password"`
	IdentifierType string `json:"identifierType"`
}

func findByIdentifier(db *gorm.DB, identifier, identifierType string) (*models.User, error) {
	var u models.User
	q := db.Preload("Address")
	var err error
	if identifierType == "documentNumber" {
		err = q.First(&u, "document_number = ?", identifier).Error
	} else {
		err = q.First(&u, "email = ?", strings.ToLower(identifier)).Error
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates by email or document number, activates the digital
// token and returns both credentials.
// POST /api/auth/login
func Login(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Identifier == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "Email/documentNumber y contraseña son requeridos")
			return
		}

		u, err := findByIdentifier(db, req.Identifier, req.IdentifierType)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}

		tok, err := issueSession(db, u)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al generar token")
			return
		}
		digital, err := token.Activate(db, u.ID)
		if err != nil {
			lg.Errorw("digital token activation failed", "user_id", u.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error al iniciar sesión")
			return
		}
		u.DigitalToken = &digital
		u.DigitalTokenActive = true

		respondJSON(w, http.StatusOK, map[string]any{
			"message":      "Login exitoso",
			"token":        tok,
			"user":         u,
			"digitalToken": digital,
		})
	}
}

// VerifyToken checks a raw JWT and returns its user.
// POST /api/auth/verify
func VerifyToken(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDToken string `json:"idToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
			respondError(w, http.StatusBadRequest, "Token requerido")
			return
		}
		claims, err := auth.Verify(req.IDToken)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Token inválido")
			return
		}
		var u models.User
		if err := db.Preload("Address").First(&u, claims.UserID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Token inválido")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Token válido", "user": u})
	}
}

// Me returns the authenticated user with their address.
// GET /api/auth/me
func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.Preload("Address").First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}

// Recovery acknowledges a password recovery request without revealing
// whether the address exists.
// POST /api/auth/recovery
func Recovery(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			respondError(w, http.StatusBadRequest, "Email requerido")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Si el email existe, se enviarán instrucciones de recuperación",
		})
	}
}

// ResetPassword sets a new password for the recovery flow.
// POST /api/auth/reset-password
func ResetPassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier     string `json:"identifier"`
			NewPassword    string `json:"newPassword"`
			IdentifierType string `json:"identifierType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" || len(req.NewPassword) < 6 {
			respondError(w, http.StatusBadRequest, "identifier y newPassword son requeridos")
			return
		}
		u, err := findByIdentifier(db, req.Identifier, req.IdentifierType)
		if err != nil {
			respondError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "No se pudo restablecer la contraseña")
			return
		}
		err = db.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
			"password":            hash,
			"password_updated_at": time.Now(),
			"updated_at":          time.Now(),
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "No se pudo restablecer la contraseña")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Contraseña restablecida exitosamente"})
	}
}

// UpdatePassword changes the caller's password. The current password must
// match and the new one must differ from it.
// PUT /api/auth/password
func UpdatePassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
			ConfirmPassword string `json:"confirmPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		messages := map[string]string{}
		if req.CurrentPassword == "" {
			messages["currentPassword"] = "La contraseña actual es requerida"
		}
		if len(req.NewPassword) < 6 {
			messages["newPassword"] = "La nueva contraseña debe tener al menos 6 caracteres"
		}
		if req.ConfirmPassword != req.NewPassword {
			messages["confirmPassword"] = "Las contraseñas no coinciden"
		}
		if len(messages) > 0 {
			respondValidation(w, messages)
			return
		}

		var u models.User
		if err := db.First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Usuario no autenticado")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
			respondError(w, http.StatusBadRequest, "La contraseña actual es incorrecta")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.NewPassword); err == nil {
			respondError(w, http.StatusBadRequest, "La nueva contraseña debe ser diferente a la contraseña actual")
			return
		}

		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al actualizar contraseña")
			return
		}
		err = db.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
			"password":            hash,
			"password_updated_at": time.Now(),
			"updated_at":          time.Now(),
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Error al actualizar contraseña")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Contraseña actualizada exitosamente"})
	}
}

// Logout revokes the current session and deactivates the digital token.
// POST /api/auth/logout
func Logout(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now()
		if err := db.Model(&models.Session{}).Where("jti = ?", claims.JWTID).
			Update("revoked_at", now).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Error al cerrar sesión")
			return
		}
		if err := token.Deactivate(db, claims.UserID); err != nil {
			lg.Errorw("digital token deactivation failed", "user_id", claims.UserID, "error", err)
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Sesión cerrada exitosamente"})
	}
}

// DigitalToken returns the freshest rotated value, re-reading the column so
// the rotation daemon's last write is never masked by a stale copy. An
// inactive token is re-activated on read.
// GET /api/auth/digital-token
func DigitalToken(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		var u models.User
		if err := db.Select("id", "digital_token", "digital_token_active").First(&u, userID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Usuario no autenticado")
			return
		}
		if !u.DigitalTokenActive {
			fresh, err := token.Activate(db, userID)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "Error al obtener token digital")
				return
			}
			u.DigitalToken = &fresh
			u.DigitalTokenActive = true
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"digitalToken": u.DigitalToken,
			"active":       u.DigitalTokenActive,
		})
	}
}

// SendVerificationEmail queues the signed verification link for delivery.
// POST /api/auth/verify-email
func SendVerificationEmail(db *gorm.DB, lg *zap.SugaredLogger, queue *jobs.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Usuario no autenticado")
			return
		}
		if u.EmailVerifiedAt != nil {
			respondJSON(w, http.StatusOK, map[string]any{"message": "Tu email ya está verificado"})
			return
		}
		if err := queue.Enqueue(jobs.Payload{Type: jobs.TypeVerificationEmail, UserID: u.ID}); err != nil {
			lg.Errorw("verification email enqueue failed", "user_id", u.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error al enviar email de verificación")
			return
		}
		lg.Infow("verification email queued", "user_id", u.ID, "email", u.Email)
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Se ha enviado un email de verificación a " + u.Email,
		})
	}
}

// Notifications lists pending account notices (currently only the
// unverified-email warning).
// GET /api/auth/notifications
func Notifications(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Usuario no autenticado")
			return
		}
		notifications := []map[string]any{}
		if u.EmailVerifiedAt == nil {
			notifications = append(notifications, map[string]any{
				"id":        "email-not-verified",
				"type":      "warning",
				"title":     "Email no verificado",
				"message":   "Por favor, verifica tu dirección de email para completar tu registro.",
				"action":    "Verificar email",
				"actionUrl": "/dashboard/perfil/seguridad",
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"notifications": notifications,
			"unreadCount":   len(notifications),
		})
	}
}

// frontendURL is where email verification redirects land.
func frontendURL() string {
	if u := os.Getenv("FRONTEND_URL"); u != "" {
		return u
	}
	return "http://localhost:5173"
}
