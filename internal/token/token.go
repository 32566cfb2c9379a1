// Package token owns the short-lived 3-digit digital token: generation,
// activation on login, deactivation on logout, and the rotation loop that
// keeps it fresh for session-active users.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"portalsalud/internal/models"
)

// Generate draws a cryptographically random zero-padded value in 000-999.
func Generate() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// there is no sane fallback for a security token.
		panic(fmt.Sprintf("token: rand failed: %v", err))
	}
	return fmt.Sprintf("%03d", n.Int64())
}

// Activate flags the user for rotation and assigns an initial token.
// Returns the token so login can include it in the response.
func Activate(db *gorm.DB, userID uint) (string, error) {
	tok := Generate()
	err := db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"digital_token":        tok,
			"digital_token_active": true,
			"updated_at":           time.Now(),
		}).Error
	return tok, err
}

// Deactivate clears both the flag and the token.
func Deactivate(db *gorm.DB, userID uint) error {
	return db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"digital_token":        nil,
			"digital_token_active": false,
			"updated_at":           time.Now(),
		}).Error
}
