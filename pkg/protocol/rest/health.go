package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler serves GET /health per spec §6: {status, checks: {db,
// providers}}. Checking providers means confirming the registry has at
// least one provider loaded, not probing every upstream — an upstream
// outage is the provider's problem to surface at call time (as
// ErrProviderUnavailable), not this process's liveness.
type HealthHandler struct {
	store     *store.Store
	providers *providers.Registry
}

func NewHealthHandler(s *store.Store, p *providers.Registry) *HealthHandler {
	return &HealthHandler{store: s, providers: p}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RegisterRoutes mounts GET /health.
func (h *HealthHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/health", h.Handle())
}

func (h *HealthHandler) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{"db": "ok", "providers": "ok"}
		status := fiber.StatusOK

		if err := h.store.DB.PingContext(ctx); err != nil {
			checks["db"] = "unavailable"
			status = fiber.StatusServiceUnavailable
		}
		if len(h.providers.ListSupported()) == 0 {
			checks["providers"] = "unavailable"
			status = fiber.StatusServiceUnavailable
		}

		overall := "ok"
		if status != fiber.StatusOK {
			overall = "degraded"
		}
		return c.Status(status).JSON(healthResponse{Status: overall, Checks: checks})
	}
}
