package domain

import (
	"context"
	"time"
)

// CampaignRepository defines the persistence contract for campaigns.
// Commit is the transactional step between "decide to transition" and
// "transition visible to other viewers": it persists the campaign only
// if expectedVersion still matches the stored row, and returns
// ErrVersionConflict otherwise.
type CampaignRepository interface {
	Create(ctx context.Context, campaign Campaign) error
	GetByID(ctx context.Context, id string) (Campaign, error)
	List(ctx context.Context, filter ListFilter) ([]Campaign, error)
	Commit(ctx context.Context, campaign Campaign, expectedVersion int64) (Campaign, error)
}

// ListFilter holds optional criteria for listing campaigns.
type ListFilter struct {
	Phase         *Phase
	ParticipantID string
	Limit         int
	Offset        int
}

// NotificationKind distinguishes the events the workflow emits.
type NotificationKind string

const (
	NotificationCampaignCreated    NotificationKind = "campaign.created"
	NotificationPhaseChanged       NotificationKind = "phase.changed"
	NotificationRequirementUpdated NotificationKind = "requirement.updated"
)

// Notification is an event emitted by the workflow for watchers.
// Delivery is best-effort: a failed publish never rolls back a
// committed transition.
type Notification struct {
	Kind          NotificationKind
	CampaignID    string
	From          Phase
	To            Phase
	RequirementID string
	Satisfied     bool
	ActorID       string
	ActorRole     Role
	OccurredAt    time.Time
}

// NotificationSink defines the contract for publishing workflow events.
type NotificationSink interface {
	Publish(ctx context.Context, n Notification) error
}

// TransitionValidator checks whether an event is legal from the current
// phase and returns the destination phase.
type TransitionValidator interface {
	Apply(ctx context.Context, current Phase, event Event) (Phase, error)
}

// MetricsSource resolves live metric values for a campaign. Values are
// keyed by metric id; missing keys mean analytics has no data yet.
type MetricsSource interface {
	Values(ctx context.Context, campaignID string) (map[string]float64, error)
}
