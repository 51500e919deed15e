package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/castmatch/campflow/internal/domain"
)

// CampaignService orchestrates the campaign lifecycle workflow: it
// loads state, authorizes the actor, validates the transition, checks
// requirement gates, commits through the repository, and emits
// notifications. Commit ordering is strict: the repository commit must
// succeed before the new state is returned and before any notification
// is published. Notification delivery is best-effort.
type CampaignService struct {
	repo      domain.CampaignRepository
	sink      domain.NotificationSink
	validator domain.TransitionValidator
	metrics   domain.MetricsSource
	logger    *slog.Logger
	now       func() time.Time
}

// NewCampaignService creates a service with the given adapters.
func NewCampaignService(repo domain.CampaignRepository, sink domain.NotificationSink, validator domain.TransitionValidator, metrics domain.MetricsSource) *CampaignService {
	return &CampaignService{
		repo:      repo,
		sink:      sink,
		validator: validator,
		metrics:   metrics,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// gatewayActorID is recorded in history for transitions triggered by
// the payment gateway rather than a participant.
const gatewayActorID = "payment-gateway"

// CreateParams are the inputs for issuing a new proposal.
type CreateParams struct {
	Title        string
	Platform     domain.Platform
	BudgetCents  int64
	Deadline     time.Time
	CreatorID    string
	AdvertiserID string
}

// TransitionOutcome is the result of a successful transition. NotifyErr
// is non-nil when the post-commit notification could not be delivered;
// the transition is committed regardless.
type TransitionOutcome struct {
	Campaign  domain.Campaign
	NotifyErr error
}

// ChecklistOutcome is the result of a requirement toggle: the updated
// campaign plus the recomputed gate state for UI enablement.
type ChecklistOutcome struct {
	Campaign      domain.Campaign
	Progress      domain.Progress
	PhaseComplete bool
	NotifyErr     error
}

// ProjectedView is the role-dependent view model for a campaign.
type ProjectedView struct {
	Phase      domain.Phase
	NextAction domain.NextActionView
	Metrics    []domain.MetricView
	Progress   domain.Progress
	Missing    []string
}

// Create issues a new proposal-phase campaign and publishes a creation
// notification.
func (s *CampaignService) Create(ctx context.Context, params CreateParams) (domain.Campaign, error) {
	if params.Title == "" {
		return domain.Campaign{}, fmt.Errorf("title is required")
	}
	if !params.Platform.Known() {
		return domain.Campaign{}, fmt.Errorf("unsupported platform %q", params.Platform)
	}
	if params.BudgetCents <= 0 {
		return domain.Campaign{}, fmt.Errorf("budget must be positive")
	}
	if params.CreatorID == "" || params.AdvertiserID == "" {
		return domain.Campaign{}, fmt.Errorf("creator and advertiser are required")
	}
	if params.CreatorID == params.AdvertiserID {
		return domain.Campaign{}, fmt.Errorf("creator and advertiser must be different users")
	}

	campaign := domain.NewCampaign(newID(), params.Title, params.Platform,
		params.BudgetCents, params.Deadline, params.CreatorID, params.AdvertiserID)

	if err := s.repo.Create(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("creating campaign: %w", err)
	}

	s.publish(ctx, domain.Notification{
		Kind:       domain.NotificationCampaignCreated,
		CampaignID: campaign.ID,
		To:         campaign.Phase,
		ActorID:    campaign.CreatorID,
		ActorRole:  domain.RoleCreator,
		OccurredAt: campaign.CreatedAt,
	})

	return campaign, nil
}

// GetByID returns a campaign by its unique identifier.
func (s *CampaignService) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns campaigns matching the given filter.
func (s *CampaignService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Campaign, error) {
	return s.repo.List(ctx, filter)
}

// AcceptProposal moves a proposal into production. Advertiser only.
func (s *CampaignService) AcceptProposal(ctx context.Context, id, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:   id,
		event:        domain.EventAccept,
		actorID:      actorID,
		requiredRole: domain.RoleAdvertiser,
	})
}

// RejectProposal rejects a campaign still in the proposal phase.
// Either participant may walk away from an unaccepted proposal.
func (s *CampaignService) RejectProposal(ctx context.Context, id, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:  id,
		event:       domain.EventReject,
		actorID:     actorID,
		participant: true,
		fromPhase:   domain.PhaseProposal,
	})
}

// Cancel rejects a campaign from any non-terminal phase, no guard.
func (s *CampaignService) Cancel(ctx context.Context, id, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:  id,
		event:       domain.EventReject,
		actorID:     actorID,
		participant: true,
	})
}

// SubmitForDelivery records the given task completions and moves the
// campaign from production to pre-payment. Creator only; gated on the
// production requirement checklist.
func (s *CampaignService) SubmitForDelivery(ctx context.Context, id string, taskIDs []string, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:        id,
		event:             domain.EventSubmitForDelivery,
		actorID:           actorID,
		requiredRole:      domain.RoleCreator,
		checkRequirements: true,
		prepare: func(c *domain.Campaign) error {
			for _, taskID := range taskIDs {
				domain.CompleteTask(c, taskID)
			}
			return nil
		},
	})
}

// ConfirmPrepayment confirms the escrow deposit and opens the delivery
// phase. Advertiser only; gated on the pre-payment checklist.
func (s *CampaignService) ConfirmPrepayment(ctx context.Context, id, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:        id,
		event:             domain.EventConfirmPrepayment,
		actorID:           actorID,
		requiredRole:      domain.RoleAdvertiser,
		checkRequirements: true,
	})
}

// SubmitDeliveryLink records the published content link and moves the
// campaign into validation. Creator only; gated on the delivery
// checklist and on the link matching the campaign platform's domain.
func (s *CampaignService) SubmitDeliveryLink(ctx context.Context, id, rawURL, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:        id,
		event:             domain.EventSubmitLink,
		actorID:           actorID,
		requiredRole:      domain.RoleCreator,
		checkRequirements: true,
		prepare: func(c *domain.Campaign) error {
			if err := domain.ValidateDeliveryLink(rawURL, c.Platform); err != nil {
				return err
			}
			c.DeliveryURL = rawURL
			return nil
		},
	})
}

// ApproveValidation records the advertiser's verdict and releases the
// campaign into payment. Advertiser only; requires a 1-5 rating and
// written feedback.
func (s *CampaignService) ApproveValidation(ctx context.Context, id string, rating int, feedback, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:        id,
		event:             domain.EventApprove,
		actorID:           actorID,
		requiredRole:      domain.RoleAdvertiser,
		checkRequirements: true,
		prepare: func(c *domain.Campaign) error {
			if rating < 1 || rating > 5 {
				return &domain.ValidationVerdictError{Reason: "rating must be between 1 and 5"}
			}
			if feedback == "" {
				return &domain.ValidationVerdictError{Reason: "feedback is required"}
			}
			c.Rating = rating
			c.Feedback = feedback
			return nil
		},
	})
}

// RejectValidation rejects the delivered content. Advertiser only;
// requires written feedback so the creator knows why.
func (s *CampaignService) RejectValidation(ctx context.Context, id, feedback, actorID string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID:   id,
		event:        domain.EventReject,
		actorID:      actorID,
		requiredRole: domain.RoleAdvertiser,
		fromPhase:    domain.PhaseValidation,
		prepare: func(c *domain.Campaign) error {
			if feedback == "" {
				return &domain.ValidationVerdictError{Reason: "feedback is required"}
			}
			c.Feedback = feedback
			return nil
		},
	})
}

// CompletePayment applies the gateway's processing-complete
// confirmation, closing the campaign. Triggered by the payment webhook,
// not by a participant.
func (s *CampaignService) CompletePayment(ctx context.Context, id string) (TransitionOutcome, error) {
	return s.transition(ctx, transitionRequest{
		campaignID: id,
		event:      domain.EventProcessingComplete,
		actorID:    gatewayActorID,
	})
}

// ToggleRequirement marks a requirement of the current phase satisfied
// or not, without transitioning. The write is version-checked like any
// other commit, and the recomputed gate state is returned for UI
// enablement.
func (s *CampaignService) ToggleRequirement(ctx context.Context, id, requirementID string, satisfied bool, actorID string) (ChecklistOutcome, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ChecklistOutcome{}, err
	}

	role, ok := campaign.RoleOf(actorID)
	if !ok {
		return ChecklistOutcome{}, &domain.ForbiddenError{Event: "toggle_requirement", Required: domain.RoleCreator}
	}

	if err := domain.SetRequirement(&campaign, requirementID, satisfied); err != nil {
		return ChecklistOutcome{}, err
	}
	campaign.UpdatedAt = s.now().UTC()

	expected := campaign.Version
	committed, err := s.repo.Commit(ctx, campaign, expected)
	if err != nil {
		return ChecklistOutcome{}, fmt.Errorf("committing checklist update: %w", err)
	}

	notifyErr := s.publish(ctx, domain.Notification{
		Kind:          domain.NotificationRequirementUpdated,
		CampaignID:    committed.ID,
		RequirementID: requirementID,
		Satisfied:     satisfied,
		ActorID:       actorID,
		ActorRole:     role,
		OccurredAt:    committed.UpdatedAt,
	})

	return ChecklistOutcome{
		Campaign:      committed,
		Progress:      domain.ChecklistProgress(&committed),
		PhaseComplete: domain.PhaseComplete(&committed),
		NotifyErr:     notifyErr,
	}, nil
}

// View projects the role-dependent view model: next action, phase
// metrics resolved against analytics, and requirement progress. A
// missing analytics value degrades to an unknown metric, never an
// error.
func (s *CampaignService) View(ctx context.Context, id string, role domain.Role) (ProjectedView, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ProjectedView{}, err
	}

	values, err := s.metrics.Values(ctx, campaign.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "resolving campaign metrics",
			"campaign_id", campaign.ID, "error", err)
		values = nil
	}

	specs := domain.MetricSpecs(campaign.Phase, role)
	metrics := make([]domain.MetricView, 0, len(specs))
	for _, spec := range specs {
		value, known := values[spec.ID]
		metrics = append(metrics, domain.MetricView{
			ID:    spec.ID,
			Label: spec.Label,
			Unit:  spec.Unit,
			Value: value,
			Known: known,
		})
	}

	return ProjectedView{
		Phase:      campaign.Phase,
		NextAction: domain.NextAction(&campaign, role),
		Metrics:    metrics,
		Progress:   domain.ChecklistProgress(&campaign),
		Missing:    domain.MissingRequirements(&campaign),
	}, nil
}

// transitionRequest bundles what one workflow transition needs:
// authorization, an optional phase precondition, the requirement gate,
// and a prepare hook for event-specific guards and mutations.
type transitionRequest struct {
	campaignID        string
	event             domain.Event
	actorID           string
	requiredRole      domain.Role // exactly this participant
	participant       bool        // any participant
	fromPhase         domain.Phase
	checkRequirements bool
	prepare           func(c *domain.Campaign) error
}

func (s *CampaignService) transition(ctx context.Context, req transitionRequest) (TransitionOutcome, error) {
	campaign, err := s.repo.GetByID(ctx, req.campaignID)
	if err != nil {
		return TransitionOutcome{}, err
	}

	actorRole, err := s.authorize(&campaign, req)
	if err != nil {
		return TransitionOutcome{}, err
	}

	if req.fromPhase != "" && campaign.Phase != req.fromPhase {
		return TransitionOutcome{}, &domain.IllegalTransitionError{Event: req.event, Current: campaign.Phase}
	}

	next, err := s.validator.Apply(ctx, campaign.Phase, req.event)
	if err != nil {
		return TransitionOutcome{}, err
	}

	if req.checkRequirements {
		if missing := domain.MissingRequirements(&campaign); len(missing) > 0 {
			return TransitionOutcome{}, &domain.RequirementsNotMetError{Phase: campaign.Phase, Missing: missing}
		}
	}

	if req.prepare != nil {
		if err := req.prepare(&campaign); err != nil {
			return TransitionOutcome{}, err
		}
	}

	from := campaign.Phase
	expected := campaign.Version
	campaign.Advance(next, req.actorID, s.now().UTC())

	committed, err := s.repo.Commit(ctx, campaign, expected)
	if err != nil {
		return TransitionOutcome{}, fmt.Errorf("committing transition %s -> %s: %w", from, next, err)
	}

	notifyErr := s.publish(ctx, domain.Notification{
		Kind:       domain.NotificationPhaseChanged,
		CampaignID: committed.ID,
		From:       from,
		To:         committed.Phase,
		ActorID:    req.actorID,
		ActorRole:  actorRole,
		OccurredAt: committed.UpdatedAt,
	})

	return TransitionOutcome{Campaign: committed, NotifyErr: notifyErr}, nil
}

// authorize checks the actor against the campaign's participants and
// returns the actor's role. System-triggered events (no role, no
// participant flag) skip the check.
func (s *CampaignService) authorize(c *domain.Campaign, req transitionRequest) (domain.Role, error) {
	if req.requiredRole == "" && !req.participant {
		return "", nil
	}

	role, ok := c.RoleOf(req.actorID)
	if !ok {
		required := req.requiredRole
		if required == "" {
			required = domain.RoleCreator
		}
		return "", &domain.ForbiddenError{Event: req.event, Required: required}
	}
	if req.requiredRole != "" && role != req.requiredRole {
		return "", &domain.ForbiddenError{Event: req.event, Role: role, Required: req.requiredRole}
	}
	return role, nil
}

// publish delivers a notification best-effort: failures are logged and
// returned for the caller's outcome, never propagated as the operation
// result.
func (s *CampaignService) publish(ctx context.Context, n domain.Notification) error {
	if err := s.sink.Publish(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			"kind", string(n.Kind), "campaign_id", n.CampaignID, "error", err)
		return err
	}
	return nil
}
