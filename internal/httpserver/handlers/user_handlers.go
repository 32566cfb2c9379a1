package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/models"
)

// userUpdateReq is the explicit field set a profile update may touch.
// Anything else in the payload is ignored.
type userUpdateReq struct {
	PhoneNumber     *string       `json:"phoneNumber"`
	Email           *string       `json:"email"`
	DateOfBirth     *string       `json:"dateOfBirth"`
	MaritalStatus   *string       `json:"maritalStatus"`
	CBU             *string       `json:"cbu"`
	AssociateNumber *string       `json:"associateNumber"`
	Plan            *string       `json:"plan"`
	Address         *addressInput `json:"address"`
}

// ListUsers returns every member with their address.
// GET /api/users
func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.Preload("Address").Order("id").Find(&users).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, users)
	}
}

// GetUser returns one member by id.
// GET /api/users/{id}
func GetUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.Preload("Address").First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}

// CreateUser provisions a member record directly (back-office use).
// POST /api/users
func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" {
			respondValidation(w, map[string]string{"email": "Email es requerido"})
			return
		}
		u := models.User{
			Name:            req.Name,
			Email:           req.Email,
			PhoneNumber:     req.PhoneNumber,
			AssociateNumber: req.AssociateNumber,
			Plan:            req.Plan,
		}
		if u.Name == "" {
			u.Name = "Usuario"
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "Error al crear usuario")
				return
			}
			u.PasswordHash = hash
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
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, u)
	}
}

// UpdateUser applies a profile update to the given member.
// PUT /api/users/{id}
func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		applyUserUpdate(db, lg, w, r, &u)
	}
}

// UpdateCurrentUser applies a profile update to the caller.
// PUT /api/users/me
func UpdateCurrentUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "Usuario no autenticado")
			return
		}
		applyUserUpdate(db, lg, w, r, &u)
	}
}

func applyUserUpdate(db *gorm.DB, lg *zap.SugaredLogger, w http.ResponseWriter, r *http.Request, u *models.User) {
	var req userUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Column-scoped update: profile writes must never touch the digital
	// token columns the rotation daemon owns.
	updates := map[string]interface{}{}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Email != nil && *req.Email != "" {
		updates["email"] = strings.ToLower(*req.Email)
	}
	if req.DateOfBirth != nil {
		if dob, err := time.Parse("2006-01-02", *req.DateOfBirth); err == nil {
			updates["date_of_birth"] = dob
		}
	}
	if req.MaritalStatus != nil {
		updates["marital_status"] = *req.MaritalStatus
	}
	if req.CBU != nil {
		updates["cbu"] = *req.CBU
	}
	if req.AssociateNumber != nil {
		updates["associate_number"] = *req.AssociateNumber
	}
	if req.Plan != nil {
		if !validPlan(*req.Plan) {
			respondValidation(w, map[string]string{"plan": "Plan inválido"})
			return
		}
		updates["plan"] = *req.Plan
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := db.Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if req.Address != nil {
		if err := upsertAddress(db, u.ID, req.Address); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	var fresh models.User
	if err := db.Preload("Address").First(&fresh, u.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Usuario actualizado correctamente",
		"user":    fresh,
	})
}

func upsertAddress(db *gorm.DB, userID uint, in *addressInput) error {
	var addr models.Address
	err := db.First(&addr, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return db.Create(&models.Address{
			UserID:    userID,
			Street:    in.Street,
			Number:    in.Number,
			Floor:     in.Floor,
			Apartment: in.Apartment,
			City:      in.City,
			Province:  in.Province,
		}).Error
	}
	if err != nil {
		return err
	}
	addr.Street = in.Street
	addr.Number = in.Number
	addr.Floor = in.Floor
	addr.Apartment = in.Apartment
	addr.City = in.City
	addr.Province = in.Province
	return db.Save(&addr).Error
}

// DeleteUser removes a member.
// DELETE /api/users/{id}
func DeleteUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		if err := db.Delete(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "Usuario eliminado correctamente"})
	}
}
