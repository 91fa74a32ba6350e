// Package a2a implements the agent-to-agent surface (C7): a capability
// exchange (AgentCard) plus a structured task-invocation envelope over
// the same tools.Dispatcher MCP uses — per spec §4.7, "a second surface
// over the same tool registry; envelope differs, dispatch is identical."
package a2a

import (
	"encoding/json"

	"github.com/pierre-platform/pierre/pkg/tools"
)

// AgentCard is Pierre's capability advertisement: what an A2A client
// fetches before sending a task, listing every tool as a skill.
type AgentCard struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Skills      []SkillCard `json:"skills"`
}

// SkillCard mirrors one tools.Descriptor as an A2A skill: same name and
// description, input schema carried the same shape MCP advertises it
// in, since both surfaces share one tool table.
type SkillCard struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// BuildAgentCard renders the registry's catalog as an A2A capability card.
func BuildAgentCard(registry *tools.Registry) AgentCard {
	descriptors := registry.List()
	skills := make([]SkillCard, 0, len(descriptors))
	for _, d := range descriptors {
		skills = append(skills, SkillCard{
			ID:          d.Name.String(),
			Name:        d.Name.String(),
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return AgentCard{
		Name:        "pierre",
		Description: "Multi-tenant fitness-data tool dispatch plane",
		Version:     "1.0",
		Skills:      skills,
	}
}

// TaskRequest is a structured A2A task: "invoke skill X with input Y,"
// the agent-to-agent analogue of MCP's tools/call.
type TaskRequest struct {
	ID         string          `json:"id"`
	Skill      string          `json:"skill"`
	ProviderID string          `json:"provider_id,omitempty"`
	Input      json.RawMessage `json:"input"`
}

// TaskStatus is A2A's closed set of terminal/non-terminal task states.
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskResponse is the reply to a TaskRequest: exactly one of Output/Error
// is set, mirroring the same completed/failed split A2A tasks use.
type TaskResponse struct {
	ID     string          `json:"id"`
	Status TaskStatus      `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  *TaskError      `json:"error,omitempty"`
}

type TaskError struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
