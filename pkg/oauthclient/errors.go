package oauthclient

import "github.com/pierre-platform/pierre/pkg/errx"

var clientErrors = errx.NewRegistry("OAUTHCLIENT")

var (
	ErrStateNotFound  = clientErrors.Register("STATE_NOT_FOUND", errx.TypeNotFound, 404, "The OAuth state is unknown, expired, or already consumed")
	ErrUnknownUser    = clientErrors.Register("UNKNOWN_USER", errx.TypeValidation, 400, "Pending connection belongs to a different user")
	ErrCredentialGone = clientErrors.Register("CREDENTIAL_GONE", errx.TypeNotFound, 404, "No upstream credential on file for this (user, provider)")
)
