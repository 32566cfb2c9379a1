package mail

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "base64:dGVzdC1hcHAta2V5"

func parseLink(t *testing.T, link string) (emailHash, expires, signature string) {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	require.GreaterOrEqual(t, len(parts), 5)
	return parts[len(parts)-1], u.Query().Get("expires"), u.Query().Get("signature")
}

func TestVerificationURLRoundTrip(t *testing.T) {
	link := VerificationURL("http://localhost:8080", testKey, 12, "socio@ospsalud.com.ar")
	emailHash, expires, signature := parseLink(t, link)

	assert.Equal(t, EmailHash("socio@ospsalud.com.ar"), emailHash)
	assert.True(t, CheckSignature(testKey, 12, emailHash, expires, signature))
	assert.True(t, CheckEmailHash(emailHash, "socio@ospsalud.com.ar"))
}

func TestCheckSignatureRejectsTampering(t *testing.T) {
	link := VerificationURL("http://localhost:8080", testKey, 12, "socio@ospsalud.com.ar")
	emailHash, expires, signature := parseLink(t, link)

	// Different user id.
	assert.False(t, CheckSignature(testKey, 13, emailHash, expires, signature))
	// Different key.
	assert.False(t, CheckSignature("other-key", 12, emailHash, expires, signature))
	// Forged signature.
	assert.False(t, CheckSignature(testKey, 12, emailHash, expires, "deadbeef"))
	// Shifted expiry invalidates the signature even if still in the future.
	later := fmt.Sprintf("%d", time.Now().Add(2*time.Hour).Unix())
	assert.False(t, CheckSignature(testKey, 12, emailHash, later, signature))
}

func TestCheckSignatureRejectsExpired(t *testing.T) {
	expired := time.Now().Add(-time.Minute).Unix()
	hash := EmailHash("socio@ospsalud.com.ar")
	payload := signaturePayload(12, hash, expired)
	sig := sign(testKey, payload)

	assert.False(t, CheckSignature(testKey, 12, hash, fmt.Sprintf("%d", expired), sig))
}

func TestCheckEmailHashMismatch(t *testing.T) {
	assert.False(t, CheckEmailHash(EmailHash("a@b.com"), "c@d.com"))
}
