package tools

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// planQuota is the per-category token bucket shape for one plan tier:
// burst tokens, refilled at ratePerMinute per minute. Nutrition is
// enterprise-only (see Catalog), so its quota only matters there.
type planQuota struct {
	ratePerMinute float64
	burst         int
}

var defaultQuotas = map[kernel.PlanTier]map[Category]planQuota{
	kernel.PlanFree: {
		CategoryActivities: {ratePerMinute: 30, burst: 10},
		CategoryProfile:    {ratePerMinute: 30, burst: 10},
		CategoryHealth:     {ratePerMinute: 10, burst: 5},
		CategoryNutrition:  {ratePerMinute: 5, burst: 2},
	},
	kernel.PlanPro: {
		CategoryActivities: {ratePerMinute: 120, burst: 30},
		CategoryProfile:    {ratePerMinute: 120, burst: 30},
		CategoryHealth:     {ratePerMinute: 60, burst: 20},
		CategoryNutrition:  {ratePerMinute: 30, burst: 10},
	},
	kernel.PlanEnterprise: {
		CategoryActivities: {ratePerMinute: 600, burst: 100},
		CategoryProfile:    {ratePerMinute: 600, burst: 100},
		CategoryHealth:     {ratePerMinute: 300, burst: 60},
		CategoryNutrition:  {ratePerMinute: 120, burst: 30},
	},
}

// RateLimiter enforces a per-(tenant, category) token bucket. Buckets
// are kept in a bounded, LRU-evicted cache rather than an
// ever-growing map, since the number of distinct tenants a long-lived
// process sees is unbounded while the working set at any moment is
// small — the same trade r3e's ratelimit.RateLimiter makes with its
// own bucket map, just with bounded memory instead of an unbounded one.
type RateLimiter struct {
	buckets *lru.Cache[string, *rate.Limiter]
	quotas  map[kernel.PlanTier]map[Category]planQuota
}

// NewRateLimiter builds a limiter with room for maxTenantBuckets
// distinct (tenant, category) pairs before the least-recently-used
// bucket is evicted and rebuilt fresh on next use.
func NewRateLimiter(maxTenantBuckets int) (*RateLimiter, error) {
	cache, err := lru.New[string, *rate.Limiter](maxTenantBuckets)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{buckets: cache, quotas: defaultQuotas}, nil
}

func bucketKey(tenantID kernel.TenantID, category Category) string {
	return fmt.Sprintf("%s/%s", tenantID.String(), category)
}

func (rl *RateLimiter) limiterFor(tenantID kernel.TenantID, plan kernel.PlanTier, category Category) *rate.Limiter {
	key := bucketKey(tenantID, category)
	if l, ok := rl.buckets.Get(key); ok {
		return l
	}
	q, ok := rl.quotas[plan][category]
	if !ok {
		q = planQuota{ratePerMinute: 30, burst: 10}
	}
	l := rate.NewLimiter(rate.Limit(q.ratePerMinute/60.0), q.burst)
	rl.buckets.Add(key, l)
	return l
}

// Allow reports whether a call is within budget for (tenantID,
// category) at the tenant's plan, consuming one token if so. When
// denied, retryAfter is an estimate of how long until one token frees
// up.
func (rl *RateLimiter) Allow(tenantID kernel.TenantID, plan kernel.PlanTier, category Category) (bool, time.Duration) {
	l := rl.limiterFor(tenantID, plan, category)
	r := l.Reserve()
	if !r.OK() {
		return false, 0
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}
