package tools

import "github.com/pierre-platform/pierre/pkg/errx"

var toolErrors = errx.NewRegistry("TOOLS")

var (
	ErrToolNotFound         = toolErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Tool not found")
	ErrToolDisabled         = toolErrors.Register("DISABLED", errx.TypeAuthorization, 403, "Tool is not available for this tenant")
	ErrScopeMissing         = toolErrors.Register("SCOPE_MISSING", errx.TypeAuthorization, 403, "Caller lacks a scope required by this tool")
	ErrInvalidArguments     = toolErrors.Register("INVALID_ARGUMENTS", errx.TypeValidation, 400, "Tool arguments failed schema validation")
	ErrRateLimited          = toolErrors.Register("RATE_LIMITED", errx.TypeRateLimited, 429, "Tool call rate limit exceeded for this tenant")
	ErrProviderAuthRequired = toolErrors.Register("PROVIDER_AUTH_REQUIRED", errx.TypeProviderAuthRequired, 409, "Upstream provider connection needs to be re-established")
	ErrProviderMissing      = toolErrors.Register("PROVIDER_MISSING", errx.TypeValidation, 400, "No provider_id supplied for a provider-backed tool")
	ErrCapabilityMissing    = toolErrors.Register("CAPABILITY_MISSING", errx.TypeProviderUnavailable, 422, "Provider does not support this tool's capability")
)
