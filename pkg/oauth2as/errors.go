package oauth2as

import (
	"errors"

	"github.com/pierre-platform/pierre/pkg/errx"
)

var asErrors = errx.NewRegistry("OAUTH2AS")

var (
	ErrInvalidRequest     = asErrors.Register("INVALID_REQUEST", errx.TypeValidation, 400, "The request is missing a required parameter or is otherwise malformed")
	ErrInvalidClient      = asErrors.Register("INVALID_CLIENT", errx.TypeAuthentication, 401, "Client authentication failed")
	ErrInvalidGrant       = asErrors.Register("INVALID_GRANT", errx.TypeBusiness, 400, "The provided authorization grant or refresh token is invalid, expired, or already used")
	ErrUnauthorizedClient = asErrors.Register("UNAUTHORIZED_CLIENT", errx.TypeAuthorization, 400, "The client is not authorized to use this grant type")
	ErrUnsupportedGrant   = asErrors.Register("UNSUPPORTED_GRANT_TYPE", errx.TypeValidation, 400, "The authorization grant type is not supported")
	ErrInvalidScope       = asErrors.Register("INVALID_SCOPE", errx.TypeValidation, 400, "The requested scope is invalid or exceeds the client's registered scopes")
	ErrAccessDenied       = asErrors.Register("ACCESS_DENIED", errx.TypeAuthorization, 403, "The resource owner denied the request")
	ErrServerError        = asErrors.Register("SERVER_ERROR", errx.TypeInternal, 500, "The authorization server encountered an unexpected condition")
)

// rfc6749Code maps an internal *errx.Error to the `error` string RFC 6749
// requires in token/authorize error responses. Anything not recognized
// becomes server_error — callers outside this package never see a leaked
// internal detail string.
func rfc6749Code(err error) string {
	var e *errx.Error
	if !errors.As(err, &e) {
		return "server_error"
	}
	switch e.Code {
	case ErrInvalidRequest.Code:
		return "invalid_request"
	case ErrInvalidClient.Code:
		return "invalid_client"
	case ErrInvalidGrant.Code:
		return "invalid_grant"
	case ErrUnauthorizedClient.Code:
		return "unauthorized_client"
	case ErrUnsupportedGrant.Code:
		return "unsupported_grant_type"
	case ErrInvalidScope.Code:
		return "invalid_scope"
	case ErrAccessDenied.Code:
		return "access_denied"
	default:
		return "server_error"
	}
}

func httpStatusFor(err error) int {
	var e *errx.Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return 500
}
