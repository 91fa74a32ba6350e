package oauthclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pierre-platform/pierre/pkg/jobx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
)

// JobTypeRefreshRetry is the background retry path for a token refresh
// that failed transiently (upstream 5xx, timeout) rather than with
// invalid_grant. A tool call that hits a transient refresh failure
// returns PROVIDER_UNAVAILABLE immediately rather than blocking on
// retries; this job gives the credential a second chance before the
// next tool call would otherwise hit the same failure.
const JobTypeRefreshRetry = "oauth.refresh_retry"

type refreshRetryPayload struct {
	TenantID   kernel.TenantID   `json:"tenant_id"`
	UserID     kernel.UserID     `json:"user_id"`
	ProviderID kernel.ProviderID `json:"provider_id"`
}

// RegisterRefreshRetryJob wires the retry handler into a jobx.Client.
// jobx's own backoff (Client.Fail/Retry) bounds the number of attempts;
// this handler only needs to run one refresh and report success/failure.
func RegisterRefreshRetryJob(jobs *jobx.Client, c *Client) {
	jobs.Register(JobTypeRefreshRetry, func(ctx context.Context, job *jobx.JobInfo) error {
		var p refreshRetryPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return err
		}
		if _, err := c.AccessToken(ctx, p.TenantID, p.UserID, p.ProviderID); err != nil {
			logx.WithError(err).Warnf("oauthclient: refresh retry failed for provider %s", p.ProviderID)
			return err
		}
		return nil
	})
}

// EnqueueRefreshRetry schedules a retry for a transiently failed
// refresh, delayed so it doesn't immediately re-hit a struggling
// upstream.
func EnqueueRefreshRetry(ctx context.Context, jobs *jobx.Client, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) error {
	payload, err := json.Marshal(refreshRetryPayload{TenantID: tenantID, UserID: userID, ProviderID: providerID})
	if err != nil {
		return err
	}
	_, err = jobs.EnqueueDelayed(ctx, jobx.Job{
		Type:       JobTypeRefreshRetry,
		Payload:    payload,
		MaxRetries: 5,
	}, 30*time.Second)
	return err
}
