package auth

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func parseTTL() time.Duration {
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 24 * time.Hour
}

// TokenTTL is the lifetime applied to newly signed tokens.
func TokenTTL() time.Duration { return parseTTL() }

// Sign issues an HS256 token for the user. The document number travels as a
// custom claim so the frontend can show it without another round trip; jti
// keys the session row that logout revokes.
func Sign(userID uint, documentNumber string) (token string, jti string, err error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	jti = uuid.NewString()
	claims := jwt.MapClaims{
		"sub":             strconv.FormatUint(uint64(userID), 10),
		"document_number": documentNumber,
		"jti":             jti,
		"exp":             time.Now().Add(parseTTL()).Unix(),
		"iat":             time.Now().Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	return token, jti, err
}

// Verify validates signature and expiry and extracts the claims.
func Verify(tokenStr string) (Claims, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Claims{}, errors.New("invalid subject")
	}
	doc, _ := mapc["document_number"].(string)
	jti, _ := mapc["jti"].(string)
	return Claims{UserID: uint(id), DocumentNumber: doc, JWTID: jti}, nil
}
