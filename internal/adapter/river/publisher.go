package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/castmatch/campflow/internal/domain"
)

// Compile-time check: Publisher implements domain.NotificationSink.
var _ domain.NotificationSink = (*Publisher)(nil)

// NotificationJobArgs carries a workflow notification for async
// delivery. River serializes this as JSON into its job queue table; the
// payload is a full snapshot so the worker never needs to query the
// database.
type NotificationJobArgs struct {
	EventKind     string    `json:"kind"`
	CampaignID    string    `json:"campaign_id"`
	FromPhase     string    `json:"from_phase,omitempty"`
	ToPhase       string    `json:"to_phase,omitempty"`
	RequirementID string    `json:"requirement_id,omitempty"`
	Satisfied     bool      `json:"satisfied,omitempty"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "notification.published" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.NotificationSink by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a workflow notification as an async job in River.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) error {
	_, err := p.client.Insert(ctx, NotificationJobArgs{
		EventKind:     string(n.Kind),
		CampaignID:    n.CampaignID,
		FromPhase:     string(n.From),
		ToPhase:       string(n.To),
		RequirementID: n.RequirementID,
		Satisfied:     n.Satisfied,
		ActorID:       n.ActorID,
		ActorRole:     string(n.ActorRole),
		OccurredAt:    n.OccurredAt,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing notification job: %w", err)
	}
	return nil
}
