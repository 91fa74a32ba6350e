package crypto

import "github.com/pierre-platform/pierre/pkg/errx"

var cryptoErrors = errx.NewRegistry("CRYPTO")

var (
	ErrMasterKeyMissing = cryptoErrors.Register("MASTER_KEY_MISSING", errx.TypeInternal, 500, "Master key not configured")
	ErrMasterKeyInvalid = cryptoErrors.Register("MASTER_KEY_INVALID", errx.TypeInternal, 500, "Master key has the wrong length")
	ErrKeyMissing       = cryptoErrors.Register("KEY_MISSING", errx.TypeNotFound, 404, "No wrapped tenant key on record")
	ErrIntegrity        = cryptoErrors.Register("INTEGRITY", errx.TypeInternal, 500, "Ciphertext failed authentication")
	ErrCorruption       = cryptoErrors.Register("CORRUPTION", errx.TypeInternal, 500, "Wrapped key or ciphertext is malformed")
)
