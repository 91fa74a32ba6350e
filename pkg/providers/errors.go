package providers

import "github.com/pierre-platform/pierre/pkg/errx"

var providerErrors = errx.NewRegistry("PROVIDERS")

var (
	ErrUnsupported       = providerErrors.Register("UNSUPPORTED", errx.TypeNotFound, 404, "Provider not supported")
	ErrCapabilityMissing = providerErrors.Register("CAPABILITY_MISSING", errx.TypeBusiness, 422, "Provider does not declare this capability")
)
