// Package authmw is C8's tenant/auth middleware: Fiber handlers that
// populate kernel.AuthContext from either an RS256 JWT or an opaque API
// key, following the teacher's auth.TokenMiddleware shape
// (Authenticate/RequireAdmin/RequireTenant), extended with RequireScope.
package authmw

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pierre-platform/pierre/pkg/errx"
)

// nowFunc is a seam for API key expiry comparisons; the package's tests
// do not replace it.
var nowFunc = time.Now

var (
	errAPIKeyNotFound = errx.Unauthenticated("api key not found or revoked")
	errAPIKeyExpired  = errx.Unauthenticated("api key expired")
)

// apiKeyPrefixLen is how much of a generated key is stored unhashed
// (as KeyPrefix) to make FindByPrefix an index hit; the remainder is
// never persisted raw, only its hash.
const apiKeyPrefixLen = 12

// GenerateAPIKey returns a new opaque key (to hand to the caller once)
// and its prefix/hash pair for persistence.
func GenerateAPIKey() (raw, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", "", errx.Wrap(err, "generate api key", errx.TypeInternal)
	}
	raw = "pierre_" + base64.RawURLEncoding.EncodeToString(b)
	if len(raw) < apiKeyPrefixLen {
		return "", "", "", errx.Internal("generated key shorter than prefix length")
	}
	prefix = raw[:apiKeyPrefixLen]
	return raw, prefix, HashAPIKey(raw), nil
}

// HashAPIKey is the one-way digest stored for an opaque API key; the
// raw value is never persisted.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// prefixOf returns the first apiKeyPrefixLen bytes of raw, or the whole
// string if it is shorter (a malformed key can never match a real row
// anyway, but this keeps the slice from panicking).
func prefixOf(raw string) string {
	if len(raw) <= apiKeyPrefixLen {
		return raw
	}
	return raw[:apiKeyPrefixLen]
}

// secureCompareHash reports whether raw's hash equals want, in
// constant time — spec §4.8's "constant-time comparison of remainder".
func secureCompareHash(raw, want string) bool {
	got := HashAPIKey(raw)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func looksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, "pierre_")
}
