package a2a

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/tools"
)

// Handler serves the A2A surface over the same registry/dispatcher pair
// MCP's Handler uses — the two protocols share one tool table and one
// dispatch algorithm, differing only in envelope shape (spec §4.7).
type Handler struct {
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
}

func NewHandler(registry *tools.Registry, dispatcher *tools.Dispatcher) *Handler {
	return &Handler{registry: registry, dispatcher: dispatcher}
}

// HandleTask runs one A2A task against the dispatcher and always
// returns a TaskResponse — dispatch failures become a "failed" status
// rather than a transport-level error, mirroring MCP's envelope-level
// error placement.
func (h *Handler) HandleTask(ctx context.Context, auth kernel.AuthContext, task TaskRequest) TaskResponse {
	call := tools.Call{
		Auth:       auth,
		ToolName:   kernel.NewToolName(task.Skill),
		ProviderID: kernel.NewProviderID(task.ProviderID),
		Args:       task.Input,
	}
	result, err := h.dispatcher.Dispatch(ctx, call)
	if err != nil {
		return TaskResponse{ID: task.ID, Status: TaskStatusFailed, Error: toTaskError(err)}
	}
	return TaskResponse{ID: task.ID, Status: TaskStatusCompleted, Output: result.Data}
}

func toTaskError(err error) *TaskError {
	var asErr *errx.Error
	if errx.As(err, &asErr) {
		return &TaskError{Kind: string(asErr.Type), Message: asErr.Message, Details: asErr.Details}
	}
	return &TaskError{Kind: string(errx.TypeInternal), Message: "internal error"}
}

func authFromFiberA2A(c *fiber.Ctx) (kernel.AuthContext, bool) {
	ac, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok || ac == nil {
		return kernel.AuthContext{}, false
	}
	return *ac, true
}

// CardHandler serves the agent capability card — the A2A analogue of
// MCP's "initialize"/"tools/list", fetched once before a client sends
// any tasks.
func (h *Handler) CardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(BuildAgentCard(h.registry))
	}
}

// TaskHandler accepts one TaskRequest per call, dispatching it through
// the shared tool registry and returning a TaskResponse.
func (h *Handler) TaskHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := authFromFiberA2A(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth context"})
		}
		var task TaskRequest
		if err := c.BodyParser(&task); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid task request body"})
		}
		if task.Skill == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task requires a skill"})
		}
		resp := h.HandleTask(c.Context(), auth, task)
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}

// RegisterRoutes mounts the agent card and task-invocation endpoints.
func (h *Handler) RegisterRoutes(app fiber.Router, basePath string) {
	app.Get(basePath+"/card", h.CardHandler())
	app.Post(basePath+"/tasks", h.TaskHandler())
}
