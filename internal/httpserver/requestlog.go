package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/auth"
	"portalsalud/internal/models"
)

// maxLoggedBody bounds the stored JSON response body.
const maxLoggedBody = 5000

// maxRequestCapture bounds how much of a request body is read for the log.
const maxRequestCapture = 64 << 10

var redactedFields = []string{
	"password", "passwordConfirmation", "password_confirmation",
	"currentPassword", "newPassword", "confirmPassword",
}

// responseRecorder tees status and (up to maxLoggedBody bytes of) body while
// the real response streams to the client.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if remaining := maxLoggedBody - r.body.Len(); remaining > 0 {
		if len(b) > remaining {
			r.body.Write(b[:remaining])
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// RequestLogger persists one RequestLog row per API call, excluding the
// admin subtree. The row is written after the response has been sent; a
// persistence failure is logged and never reaches the caller.
func RequestLogger(db *gorm.DB, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/api/admin/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestBody := captureRequestBody(r)
			userID := userFromBearer(r)

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			entry := models.RequestLog{
				Method:       r.Method,
				Path:         path,
				IPAddress:    clientIP(r),
				UserAgent:    r.UserAgent(),
				UserID:       userID,
				StatusCode:   rec.status,
				ResponseTime: int(time.Since(start).Milliseconds()),
				RequestBody:  requestBody,
			}
			if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
				entry.ResponseBody = rec.body.String()
			}
			if err := db.Create(&entry).Error; err != nil {
				lg.Errorw("request log write failed", "method", r.Method, "path", path, "error", err)
			}
		})
	}
}

// captureRequestBody reads and restores the body for mutating methods,
// redacting password fields. Non-JSON payloads (file uploads) are skipped.
func captureRequestBody(r *http.Request) string {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") || r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestCapture))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, f := range redactedFields {
		delete(payload, f)
	}
	redacted, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(redacted)
}

// userFromBearer extracts the caller id from the bearer token when present.
// Only the signature is checked here; session revocation is the auth
// middleware's concern and does not change who made the call.
func userFromBearer(r *http.Request) *uint {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return nil
	}
	claims, err := auth.Verify(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		return nil
	}
	id := claims.UserID
	return &id
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware already rewrote RemoteAddr from the
	// forwarding headers when present.
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i >= 0 && strings.Count(ip, ":") == 1 {
		ip = ip[:i]
	} else if strings.HasPrefix(ip, "[") {
		if j := strings.Index(ip, "]"); j > 0 {
			ip = ip[1:j]
		}
	}
	return ip
}
