package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/errx"
)

// envelope is REST's error body shape: {error:{code, message, details}}.
// This differs from errx.HTTPErrorResponse's flatter {error, code,
// details} shape, so REST gets its own small translator rather than
// reusing pkg/errx/http.go directly.
type envelope struct {
	Error envelopeError `json:"error"`
}

type envelopeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError renders err as the REST error envelope, using err's
// registered HTTP status when it's an *errx.Error and 500 otherwise.
func writeError(c *fiber.Ctx, err error) error {
	var asErr *errx.Error
	if errx.As(err, &asErr) {
		return c.Status(asErr.HTTPStatus).JSON(envelope{Error: envelopeError{
			Code:    asErr.Code,
			Message: asErr.Message,
			Details: asErr.Details,
		}})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(envelope{Error: envelopeError{
		Code:    string(errx.TypeInternal),
		Message: "internal error",
	}})
}
