package notifx

import "github.com/pierre-platform/pierre/pkg/errx"

var notifxErrors = errx.NewRegistry("NOTIFX")

var (
	ErrBusClosed     = notifxErrors.Register("BUS_CLOSED", errx.TypeInternal, 500, "Notification bus is closed")
	ErrInvalidEvent  = notifxErrors.Register("INVALID_EVENT", errx.TypeValidation, 400, "Invalid event")
)
