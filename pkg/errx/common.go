package errx

// Common error constructors for convenience

// Internal creates an internal server error
func Internal(message string) *Error {
	return New(message, TypeInternal)
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(message, TypeValidation)
}

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(message, TypeNotFound)
}

// Unauthenticated creates an authentication error (missing/invalid/expired
// bearer credential)
func Unauthenticated(message string) *Error {
	return New(message, TypeAuthentication)
}

// Unauthorized creates an authorization error (valid identity, insufficient
// scope/plan/tenant)
func Unauthorized(message string) *Error {
	return New(message, TypeAuthorization)
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return New(message, TypeConflict)
}

// Business creates a business logic error
func Business(message string) *Error {
	return New(message, TypeBusiness)
}

// External creates an external service error
func External(message string) *Error {
	return New(message, TypeExternal)
}

// RateLimited creates a rate-limit error
func RateLimited(message string) *Error {
	return New(message, TypeRateLimited)
}

// ProviderAuthRequired creates an error signalling that the caller must
// reconnect an upstream provider before retrying
func ProviderAuthRequired(message string) *Error {
	return New(message, TypeProviderAuthRequired)
}

// ProviderUnavailable creates a transient-upstream-outage error
func ProviderUnavailable(message string) *Error {
	return New(message, TypeProviderUnavailable)
}

// ProviderRateLimited creates an error signalling the upstream provider's
// own rate limit was hit
func ProviderRateLimited(message string) *Error {
	return New(message, TypeProviderRateLimited)
}
