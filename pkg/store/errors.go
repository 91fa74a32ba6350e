package store

import "github.com/pierre-platform/pierre/pkg/errx"

var storeErrors = errx.NewRegistry("STORE")

var (
	ErrNotFound      = storeErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Resource not found")
	ErrAlreadyExists = storeErrors.Register("ALREADY_EXISTS", errx.TypeConflict, 409, "Resource already exists")
	ErrCodeConsumed  = storeErrors.Register("CODE_CONSUMED", errx.TypeConflict, 409, "Authorization code already used")
	ErrTokenRevoked  = storeErrors.Register("TOKEN_REVOKED", errx.TypeAuthentication, 401, "Token has been revoked")
	ErrBackend       = storeErrors.Register("BACKEND_ERROR", errx.TypeInternal, 500, "Persistence backend error")
)
