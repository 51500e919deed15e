package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// NotificationWorker processes workflow notification jobs from the
// River queue. For now it logs the notification; future versions will
// fan out to e-mail, webhooks, and in-app notification feeds.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]
}

// Work processes a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	slog.InfoContext(ctx, "processing notification",
		"kind", job.Args.EventKind,
		"campaign_id", job.Args.CampaignID,
		"from", job.Args.FromPhase,
		"to", job.Args.ToPhase,
		"actor_id", job.Args.ActorID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
