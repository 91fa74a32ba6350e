package store

import (
	"context"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// ToolOverride is a tenant admin's explicit enable/disable decision for
// one tool, the third rung of the tool-availability precedence chain
// (GlobalDisabled → PlanRestriction → TenantOverride → Default).
type ToolOverride struct {
	ID        string          `db:"id"`
	TenantID  kernel.TenantID `db:"tenant_id"`
	ToolName  kernel.ToolName `db:"tool_name"`
	Enabled   bool            `db:"enabled"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type ToolOverrideRepository struct {
	store *Store
}

func NewToolOverrideRepository(s *Store) *ToolOverrideRepository {
	return &ToolOverrideRepository{store: s}
}

// Set upserts a tenant's override for a tool.
func (r *ToolOverrideRepository) Set(ctx context.Context, tenantID kernel.TenantID, toolName kernel.ToolName, enabled bool) error {
	now := nowUTC()
	query := r.store.Rebind(`
		INSERT INTO tool_overrides (id, tenant_id, tool_name, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, tool_name) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`)
	_, err := r.store.DB.ExecContext(ctx, query, NewID(), tenantID.String(), toolName.String(), enabled, now, now)
	if err != nil {
		return wrapBackendErr(err, "tool_override.set")
	}
	return nil
}

// ListByTenant returns every explicit override a tenant has set,
// indexed by tool name for O(1) lookup during dispatch.
func (r *ToolOverrideRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID) (map[kernel.ToolName]bool, error) {
	var rows []ToolOverride
	query := r.store.Rebind(`SELECT * FROM tool_overrides WHERE tenant_id = ?`)
	if err := r.store.DB.SelectContext(ctx, &rows, query, tenantID.String()); err != nil {
		return nil, wrapBackendErr(err, "tool_override.list_by_tenant")
	}
	out := make(map[kernel.ToolName]bool, len(rows))
	for _, row := range rows {
		out[row.ToolName] = row.Enabled
	}
	return out, nil
}

func (r *ToolOverrideRepository) Clear(ctx context.Context, tenantID kernel.TenantID, toolName kernel.ToolName) error {
	query := r.store.Rebind(`DELETE FROM tool_overrides WHERE tenant_id = ? AND tool_name = ?`)
	_, err := r.store.DB.ExecContext(ctx, query, tenantID.String(), toolName.String())
	if err != nil {
		return wrapBackendErr(err, "tool_override.clear")
	}
	return nil
}
