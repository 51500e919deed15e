package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/castmatch/campflow/internal/app"
	"github.com/castmatch/campflow/internal/domain"
)

const timeFormat = time.RFC3339

// CampaignResponse is the API representation of a campaign.
type CampaignResponse struct {
	ID                    string            `json:"id" doc:"Unique identifier"`
	Title                 string            `json:"title" doc:"Campaign title"`
	Platform              string            `json:"platform" doc:"Target social platform"`
	BudgetCents           int64             `json:"budget_cents" doc:"Campaign budget in cents"`
	Deadline              string            `json:"deadline" doc:"Delivery deadline (ISO 8601)"`
	CreatorID             string            `json:"creator_id" doc:"Creator participant"`
	AdvertiserID          string            `json:"advertiser_id" doc:"Advertiser participant"`
	Phase                 string            `json:"phase" doc:"Current lifecycle phase"`
	SatisfiedRequirements []string          `json:"satisfied_requirements" doc:"Requirement ids satisfied in the current phase"`
	CompletedTasks        []string          `json:"completed_tasks" doc:"Task ids completed in the current phase"`
	History               []HistoryResponse `json:"history" doc:"Applied phase transitions, oldest first"`
	DeliveryURL           string            `json:"delivery_url,omitempty" doc:"Submitted delivery link"`
	Rating                int               `json:"rating,omitempty" doc:"Advertiser rating (1-5)"`
	Feedback              string            `json:"feedback,omitempty" doc:"Advertiser feedback"`
	Archived              bool              `json:"archived" doc:"True once a terminal phase is reached"`
	Version               int64             `json:"version" doc:"Optimistic concurrency version"`
	CreatedAt             string            `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt             string            `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

// HistoryResponse is one applied phase transition.
type HistoryResponse struct {
	From        string `json:"from" doc:"Phase before the transition"`
	To          string `json:"to" doc:"Phase after the transition"`
	At          string `json:"at" doc:"Transition timestamp (ISO 8601)"`
	TriggeredBy string `json:"triggered_by" doc:"User who triggered the transition"`
}

// NextActionResponse is the role-projected next action for a campaign.
type NextActionResponse struct {
	Title       string `json:"title" doc:"Next-action headline"`
	Description string `json:"description" doc:"Next-action detail"`
	ActionLabel string `json:"action_label,omitempty" doc:"Primary action label, empty when the viewer is waiting"`
	Enabled     bool   `json:"enabled" doc:"Whether the primary action is currently enabled"`
}

// MetricResponse is one phase metric resolved for display.
type MetricResponse struct {
	ID    string  `json:"id" doc:"Metric id"`
	Label string  `json:"label" doc:"Display label"`
	Unit  string  `json:"unit" doc:"Unit of measure"`
	Value float64 `json:"value" doc:"Latest recorded value"`
	Known bool    `json:"known" doc:"False when analytics has no value yet"`
}

// ProgressResponse summarizes requirement completion for the current phase.
type ProgressResponse struct {
	Completed int `json:"completed" doc:"Satisfied requirements"`
	Total     int `json:"total" doc:"Total requirements in the current phase"`
}

// ViewResponse is the role-dependent view model of a campaign.
type ViewResponse struct {
	Phase               string             `json:"phase" doc:"Current lifecycle phase"`
	NextAction          NextActionResponse `json:"next_action"`
	Metrics             []MetricResponse   `json:"metrics"`
	Progress            ProgressResponse   `json:"progress"`
	MissingRequirements []string           `json:"missing_requirements" doc:"Unsatisfied requirement ids, catalog order"`
}

// ChecklistResponse is returned by the requirement toggle: the updated
// gate state the UI needs for enablement.
type ChecklistResponse struct {
	Campaign      CampaignResponse `json:"campaign"`
	Progress      ProgressResponse `json:"progress"`
	PhaseComplete bool             `json:"phase_complete" doc:"True when every requirement of the phase is satisfied"`
}

func toCampaignResponse(c domain.Campaign) CampaignResponse {
	history := make([]HistoryResponse, len(c.History))
	for i, tr := range c.History {
		history[i] = HistoryResponse{
			From:        string(tr.From),
			To:          string(tr.To),
			At:          tr.At.Format(timeFormat),
			TriggeredBy: tr.TriggeredBy,
		}
	}
	return CampaignResponse{
		ID:                    c.ID,
		Title:                 c.Title,
		Platform:              string(c.Platform),
		BudgetCents:           c.BudgetCents,
		Deadline:              c.Deadline.Format(timeFormat),
		CreatorID:             c.CreatorID,
		AdvertiserID:          c.AdvertiserID,
		Phase:                 string(c.Phase),
		SatisfiedRequirements: sortedKeys(c.SatisfiedRequirements),
		CompletedTasks:        sortedKeys(c.CompletedTasks),
		History:               history,
		DeliveryURL:           c.DeliveryURL,
		Rating:                c.Rating,
		Feedback:              c.Feedback,
		Archived:              c.Archived,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt.Format(timeFormat),
		UpdatedAt:             c.UpdatedAt.Format(timeFormat),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- Inputs ---

type CreateCampaignInput struct {
	Body struct {
		Title        string `json:"title" minLength:"1" maxLength:"255" doc:"Campaign title"`
		Platform     string `json:"platform" enum:"instagram,tiktok,youtube,twitch" doc:"Target social platform"`
		BudgetCents  int64  `json:"budget_cents" minimum:"1" doc:"Campaign budget in cents"`
		Deadline     string `json:"deadline" format:"date-time" doc:"Delivery deadline (ISO 8601)"`
		CreatorID    string `json:"creator_id" minLength:"1" doc:"Creator participant"`
		AdvertiserID string `json:"advertiser_id" minLength:"1" doc:"Advertiser participant"`
	}
}

type CampaignOutput struct {
	Body CampaignResponse
}

type GetCampaignInput struct {
	ID string `path:"id" doc:"Campaign ID"`
}

type ListCampaignsInput struct {
	Phase       string `query:"phase" required:"false" doc:"Filter by phase"`
	Participant string `query:"participant" required:"false" doc:"Filter by participant user id"`
	Limit       int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset      int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListCampaignsOutput struct {
	Body []CampaignResponse
}

type actorInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Body struct {
		ActorID string `json:"actor_id" minLength:"1" doc:"Acting user"`
	}
}

type SubmitForDeliveryInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Body struct {
		ActorID string   `json:"actor_id" minLength:"1" doc:"Acting user"`
		TaskIDs []string `json:"task_ids,omitempty" doc:"Production tasks completed with this submission"`
	}
}

type DeliveryLinkInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Body struct {
		ActorID string `json:"actor_id" minLength:"1" doc:"Acting user"`
		URL     string `json:"url" minLength:"1" doc:"Live content link"`
	}
}

type ToggleRequirementInput struct {
	ID            string `path:"id" doc:"Campaign ID"`
	RequirementID string `path:"requirementId" doc:"Requirement id from the current phase"`
	Body          struct {
		ActorID   string `json:"actor_id" minLength:"1" doc:"Acting user"`
		Satisfied bool   `json:"satisfied" doc:"New checked state"`
	}
}

type ChecklistOutput struct {
	Body ChecklistResponse
}

type ApproveValidationInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Body struct {
		ActorID  string `json:"actor_id" minLength:"1" doc:"Acting user"`
		Rating   int    `json:"rating" minimum:"1" maximum:"5" doc:"Collaboration rating"`
		Feedback string `json:"feedback" minLength:"1" doc:"Written feedback"`
	}
}

type RejectValidationInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Body struct {
		ActorID  string `json:"actor_id" minLength:"1" doc:"Acting user"`
		Feedback string `json:"feedback" minLength:"1" doc:"Why the delivery was rejected"`
	}
}

type CompletePaymentInput struct {
	ID string `path:"id" doc:"Campaign ID"`
}

type ViewInput struct {
	ID   string `path:"id" doc:"Campaign ID"`
	Role string `query:"role" enum:"creator,advertiser" doc:"Viewer role to project for"`
}

type ViewOutput struct {
	Body ViewResponse
}

type RecordMetricInput struct {
	ID       string `path:"id" doc:"Campaign ID"`
	MetricID string `path:"metricId" doc:"Metric id"`
	Body     struct {
		Value float64 `json:"value" doc:"Latest metric value"`
	}
}

type RecordMetricOutput struct {
	Body struct {
		Recorded bool `json:"recorded"`
	}
}

// MetricsRecorder ingests analytics values. Satisfied by the analytics adapter.
type MetricsRecorder interface {
	Record(ctx context.Context, campaignID, metricID string, value float64) error
}

// Register adds all campaign API routes to the Huma API.
func Register(api huma.API, svc *app.CampaignService, recorder MetricsRecorder) {
	huma.Register(api, huma.Operation{
		OperationID: "create-campaign",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns",
		Summary:     "Create a campaign proposal",
		Tags:        []string{"Campaigns"},
	}, func(ctx context.Context, input *CreateCampaignInput) (*CampaignOutput, error) {
		deadline, err := time.Parse(timeFormat, input.Body.Deadline)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("deadline must be an ISO 8601 timestamp")
		}
		campaign, err := svc.Create(ctx, app.CreateParams{
			Title:        input.Body.Title,
			Platform:     domain.Platform(input.Body.Platform),
			BudgetCents:  input.Body.BudgetCents,
			Deadline:     deadline,
			CreatorID:    input.Body.CreatorID,
			AdvertiserID: input.Body.AdvertiserID,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-campaign",
		Method:      http.MethodGet,
		Path:        "/api/v1/campaigns/{id}",
		Summary:     "Get a campaign by ID",
		Tags:        []string{"Campaigns"},
	}, func(ctx context.Context, input *GetCampaignInput) (*CampaignOutput, error) {
		campaign, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaigns",
		Method:      http.MethodGet,
		Path:        "/api/v1/campaigns",
		Summary:     "List campaigns",
		Tags:        []string{"Campaigns"},
	}, func(ctx context.Context, input *ListCampaignsInput) (*ListCampaignsOutput, error) {
		filter := domain.ListFilter{
			ParticipantID: input.Participant,
			Limit:         input.Limit,
			Offset:        input.Offset,
		}
		if input.Phase != "" {
			p := domain.Phase(input.Phase)
			filter.Phase = &p
		}

		campaigns, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]CampaignResponse, len(campaigns))
		for i, c := range campaigns {
			resp[i] = toCampaignResponse(c)
		}
		return &ListCampaignsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-proposal",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/accept",
		Summary:     "Accept a proposal (advertiser)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *actorInput) (*CampaignOutput, error) {
		outcome, err := svc.AcceptProposal(ctx, input.ID, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-proposal",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/reject",
		Summary:     "Reject a proposal",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *actorInput) (*CampaignOutput, error) {
		outcome, err := svc.RejectProposal(ctx, input.ID, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-campaign",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/cancel",
		Summary:     "Cancel a campaign from any non-terminal phase",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *actorInput) (*CampaignOutput, error) {
		outcome, err := svc.Cancel(ctx, input.ID, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-requirement",
		Method:      http.MethodPut,
		Path:        "/api/v1/campaigns/{id}/requirements/{requirementId}",
		Summary:     "Toggle a requirement of the current phase",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *ToggleRequirementInput) (*ChecklistOutput, error) {
		outcome, err := svc.ToggleRequirement(ctx, input.ID, input.RequirementID, input.Body.Satisfied, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ChecklistOutput{Body: ChecklistResponse{
			Campaign:      toCampaignResponse(outcome.Campaign),
			Progress:      ProgressResponse{Completed: outcome.Progress.Completed, Total: outcome.Progress.Total},
			PhaseComplete: outcome.PhaseComplete,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-for-delivery",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/submit-for-delivery",
		Summary:     "Submit produced content for delivery (creator)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *SubmitForDeliveryInput) (*CampaignOutput, error) {
		outcome, err := svc.SubmitForDelivery(ctx, input.ID, input.Body.TaskIDs, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-prepayment",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/prepayment/confirm",
		Summary:     "Confirm the escrow deposit (advertiser)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *actorInput) (*CampaignOutput, error) {
		outcome, err := svc.ConfirmPrepayment(ctx, input.ID, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-delivery-link",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/delivery-link",
		Summary:     "Submit the live content link (creator)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *DeliveryLinkInput) (*CampaignOutput, error) {
		outcome, err := svc.SubmitDeliveryLink(ctx, input.ID, input.Body.URL, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-validation",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/validation/approve",
		Summary:     "Approve the delivered content (advertiser)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *ApproveValidationInput) (*CampaignOutput, error) {
		outcome, err := svc.ApproveValidation(ctx, input.ID, input.Body.Rating, input.Body.Feedback, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-validation",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/validation/reject",
		Summary:     "Reject the delivered content (advertiser)",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *RejectValidationInput) (*CampaignOutput, error) {
		outcome, err := svc.RejectValidation(ctx, input.ID, input.Body.Feedback, input.Body.ActorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/campaigns/{id}/payment/complete",
		Summary:     "Payment gateway confirmation webhook",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *CompletePaymentInput) (*CampaignOutput, error) {
		outcome, err := svc.CompletePayment(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CampaignOutput{Body: toCampaignResponse(outcome.Campaign)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-view",
		Method:      http.MethodGet,
		Path:        "/api/v1/campaigns/{id}/view",
		Summary:     "Role-projected next action and metrics",
		Tags:        []string{"Campaigns"},
	}, func(ctx context.Context, input *ViewInput) (*ViewOutput, error) {
		view, err := svc.View(ctx, input.ID, domain.Role(input.Role))
		if err != nil {
			return nil, toHumaError(err)
		}

		metrics := make([]MetricResponse, len(view.Metrics))
		for i, m := range view.Metrics {
			metrics[i] = MetricResponse{ID: m.ID, Label: m.Label, Unit: m.Unit, Value: m.Value, Known: m.Known}
		}
		missing := view.Missing
		if missing == nil {
			missing = []string{}
		}

		return &ViewOutput{Body: ViewResponse{
			Phase: string(view.Phase),
			NextAction: NextActionResponse{
				Title:       view.NextAction.Title,
				Description: view.NextAction.Description,
				ActionLabel: view.NextAction.ActionLabel,
				Enabled:     view.NextAction.Enabled,
			},
			Metrics:             metrics,
			Progress:            ProgressResponse{Completed: view.Progress.Completed, Total: view.Progress.Total},
			MissingRequirements: missing,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-metric",
		Method:      http.MethodPut,
		Path:        "/api/v1/campaigns/{id}/metrics/{metricId}",
		Summary:     "Ingest an analytics metric value",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *RecordMetricInput) (*RecordMetricOutput, error) {
		if _, err := svc.GetByID(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		if err := recorder.Record(ctx, input.ID, input.MetricID, input.Body.Value); err != nil {
			return nil, toHumaError(err)
		}
		out := &RecordMetricOutput{}
		out.Body.Recorded = true
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors. Every
// recoverable error keeps its structured message so the UI can show
// something actionable.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrCampaignNotFound) {
		return huma.Error404NotFound("campaign not found")
	}
	if errors.Is(err, domain.ErrVersionConflict) {
		return huma.Error409Conflict("campaign was modified concurrently, reload and retry")
	}

	var forbidden *domain.ForbiddenError
	if errors.As(err, &forbidden) {
		return huma.Error403Forbidden(forbidden.Error())
	}

	var illegal *domain.IllegalTransitionError
	if errors.As(err, &illegal) {
		return huma.Error409Conflict(illegal.Error())
	}

	var notMet *domain.RequirementsNotMetError
	if errors.As(err, &notMet) {
		return huma.Error422UnprocessableEntity(notMet.Error())
	}

	var badLink *domain.InvalidDeliveryLinkError
	if errors.As(err, &badLink) {
		return huma.Error422UnprocessableEntity(badLink.Error())
	}

	var verdict *domain.ValidationVerdictError
	if errors.As(err, &verdict) {
		return huma.Error422UnprocessableEntity(verdict.Error())
	}

	var unknownReq *domain.UnknownRequirementError
	if errors.As(err, &unknownReq) {
		return huma.Error422UnprocessableEntity(unknownReq.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
