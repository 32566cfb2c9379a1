package mail

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// VerificationTTL bounds how long a verification link stays valid.
const VerificationTTL = 60 * time.Minute

// EmailHash is the sha1 fingerprint of the address being verified. The link
// carries it so a user who changes email invalidates old links.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

func signaturePayload(userID uint, emailHash string, expires int64) string {
	return fmt.Sprintf("/api/email/verify/%d/%s?expires=%d", userID, emailHash, expires)
}

func sign(key, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerificationURL builds the signed, time-limited link sent to the user.
func VerificationURL(baseURL, appKey string, userID uint, email string) string {
	expires := time.Now().Add(VerificationTTL).Unix()
	hash := EmailHash(email)
	payload := signaturePayload(userID, hash, expires)
	return fmt.Sprintf("%s%s&signature=%s", baseURL, payload, sign(appKey, payload))
}

// CheckSignature validates the signature and expiry of an incoming link.
func CheckSignature(appKey string, userID uint, emailHash, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > exp {
		return false
	}
	want := sign(appKey, signaturePayload(userID, emailHash, exp))
	return hmac.Equal([]byte(want), []byte(signature))
}

// CheckEmailHash compares the link's fingerprint against the user's current
// email in constant time.
func CheckEmailHash(emailHash, email string) bool {
	return hmac.Equal([]byte(emailHash), []byte(EmailHash(email)))
}
