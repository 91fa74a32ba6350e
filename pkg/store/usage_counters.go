package store

import (
	"context"
	"database/sql"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// UsageCounterRepository tracks per-(tenant, tool, bucket) call counts
// backing the rate limiter's persisted view and admin usage reports.
// The in-process token bucket (pkg/tools) is the actual rate-limit
// enforcement point; this table is the durable, cross-instance tally.
type UsageCounterRepository struct {
	store *Store
}

func NewUsageCounterRepository(s *Store) *UsageCounterRepository {
	return &UsageCounterRepository{store: s}
}

// IncrementAndGet atomically adds delta to a bucket's counter and
// returns the new total. bucket is caller-defined (e.g. an hour
// truncated to RFC3339), letting callers choose their own rollup
// granularity without a schema change.
func (r *UsageCounterRepository) IncrementAndGet(ctx context.Context, tenantID kernel.TenantID, toolName kernel.ToolName, bucket string, delta int64) (int64, error) {
	query := r.store.Rebind(`
		INSERT INTO usage_counters (tenant_id, tool_name, bucket, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, tool_name, bucket) DO UPDATE SET
			count = usage_counters.count + excluded.count
		RETURNING count`)
	var total int64
	row := r.store.DB.QueryRowxContext(ctx, query, tenantID.String(), toolName.String(), bucket, delta)
	if err := row.Scan(&total); err != nil {
		return 0, wrapBackendErr(err, "usage_counter.increment")
	}
	return total, nil
}

func (r *UsageCounterRepository) Get(ctx context.Context, tenantID kernel.TenantID, toolName kernel.ToolName, bucket string) (int64, error) {
	query := r.store.Rebind(`SELECT count FROM usage_counters WHERE tenant_id = ? AND tool_name = ? AND bucket = ?`)
	var total int64
	err := r.store.DB.GetContext(ctx, &total, query, tenantID.String(), toolName.String(), bucket)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, wrapBackendErr(err, "usage_counter.get")
	}
	return total, nil
}
