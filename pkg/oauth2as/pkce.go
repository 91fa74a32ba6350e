package oauth2as

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// verifyPKCE implements RFC 7636 §4.6: for S256, the presented
// code_verifier must hash (SHA-256, base64url-no-pad) to the stored
// code_challenge. For plain, they must match byte-for-byte; callers
// must reject plain unless the deployment explicitly allows it
// (config.OAuth2ASConfig.AllowPlainPKCE).
func verifyPKCE(method, challenge, verifier string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	switch method {
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case "plain", "":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
