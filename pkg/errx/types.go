package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents validation errors
	TypeValidation Type = "VALIDATION"

	// TypeAuthentication represents missing/invalid/expired bearer credentials
	TypeAuthentication Type = "AUTHENTICATION"

	// TypeAuthorization represents a valid identity with insufficient
	// scope, plan, or tenant access
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflict errors
	TypeConflict Type = "CONFLICT"

	// TypeBusiness represents business logic errors
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents errors from external services
	TypeExternal Type = "EXTERNAL"

	// TypeRateLimited represents a tenant or client that exhausted its quota
	TypeRateLimited Type = "RATE_LIMITED"

	// TypeProviderAuthRequired represents an upstream credential that needs
	// the user to reconnect (refresh failed with invalid_grant)
	TypeProviderAuthRequired Type = "PROVIDER_AUTH_REQUIRED"

	// TypeProviderUnavailable represents a transient upstream provider outage
	TypeProviderUnavailable Type = "PROVIDER_UNAVAILABLE"

	// TypeProviderRateLimited represents an upstream provider's own rate limit
	TypeProviderRateLimited Type = "PROVIDER_RATE_LIMITED"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}
