package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/castmatch/campflow/internal/app"
	"github.com/castmatch/campflow/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	campaigns map[string]domain.Campaign
	commitErr error
	commits   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{campaigns: make(map[string]domain.Campaign)}
}

// clone deep-copies the mutable parts so callers cannot reach into the
// stored state through shared maps, mirroring a real store.
func clone(c domain.Campaign) domain.Campaign {
	out := c
	out.SatisfiedRequirements = make(map[string]bool, len(c.SatisfiedRequirements))
	for k, v := range c.SatisfiedRequirements {
		out.SatisfiedRequirements[k] = v
	}
	out.CompletedTasks = make(map[string]bool, len(c.CompletedTasks))
	for k, v := range c.CompletedTasks {
		out.CompletedTasks[k] = v
	}
	out.History = append([]domain.PhaseTransition(nil), c.History...)
	return out
}

func (m *mockRepo) Create(_ context.Context, c domain.Campaign) error {
	m.campaigns[c.ID] = clone(c)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return clone(c), nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Campaign, error) {
	out := make([]domain.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, clone(c))
	}
	return out, nil
}

func (m *mockRepo) Commit(_ context.Context, c domain.Campaign, expectedVersion int64) (domain.Campaign, error) {
	m.commits++
	if m.commitErr != nil {
		return domain.Campaign{}, m.commitErr
	}
	stored, ok := m.campaigns[c.ID]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	if stored.Version != expectedVersion {
		return domain.Campaign{}, domain.ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	m.campaigns[c.ID] = clone(c)
	return clone(c), nil
}

type mockSink struct {
	notifications []domain.Notification
	err           error
}

func (m *mockSink) Publish(_ context.Context, n domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockSink) lastKind(kind domain.NotificationKind) (domain.Notification, bool) {
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].Kind == kind {
			return m.notifications[i], true
		}
	}
	return domain.Notification{}, false
}

// tableValidator applies domain.Transitions directly; the looplab/fsm
// adapter has its own tests.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.Phase, event domain.Event) (domain.Phase, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.IllegalTransitionError{Event: event, Current: current}
}

type mockMetrics struct {
	values map[string]float64
	err    error
}

func (m *mockMetrics) Values(_ context.Context, _ string) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.values, nil
}

// --- Helpers ---

const (
	creatorID    = "creator-1"
	advertiserID = "adv-1"
)

func newService(repo *mockRepo, sink *mockSink, metrics *mockMetrics) *app.CampaignService {
	if metrics == nil {
		metrics = &mockMetrics{}
	}
	return app.NewCampaignService(repo, sink, tableValidator{}, metrics)
}

func createParams() app.CreateParams {
	return app.CreateParams{
		Title:        "Fall launch",
		Platform:     domain.PlatformInstagram,
		BudgetCents:  250_000,
		Deadline:     time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CreatorID:    creatorID,
		AdvertiserID: advertiserID,
	}
}

func mustCreate(t *testing.T, svc *app.CampaignService) domain.Campaign {
	t.Helper()
	c, err := svc.Create(context.Background(), createParams())
	if err != nil {
		t.Fatalf("creating campaign: %v", err)
	}
	return c
}

// seedPhase forces a campaign directly into the given phase.
func seedPhase(repo *mockRepo, id string, phase domain.Phase) {
	c := repo.campaigns[id]
	c.Phase = phase
	c.SatisfiedRequirements = map[string]bool{}
	c.CompletedTasks = map[string]bool{}
	repo.campaigns[id] = c
}

func satisfyPhase(t *testing.T, svc *app.CampaignService, id, actorID string, phase domain.Phase) {
	t.Helper()
	for _, req := range domain.DefinitionFor(phase).Requirements {
		if _, err := svc.ToggleRequirement(context.Background(), id, req.ID, true, actorID); err != nil {
			t.Fatalf("toggling %q: %v", req.ID, err)
		}
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)

	c := mustCreate(t, svc)

	if c.Phase != domain.PhaseProposal {
		t.Errorf("Phase = %q, want %q", c.Phase, domain.PhaseProposal)
	}
	if c.ID == "" {
		t.Error("ID should not be empty")
	}
	if c.Version != 1 {
		t.Errorf("Version = %d, want 1", c.Version)
	}

	// Verify it was persisted.
	if _, err := repo.GetByID(context.Background(), c.ID); err != nil {
		t.Fatalf("campaign not found in repo: %v", err)
	}

	// Verify the creation notification.
	n, ok := sink.lastKind(domain.NotificationCampaignCreated)
	if !ok {
		t.Fatal("expected a campaign.created notification")
	}
	if n.CampaignID != c.ID {
		t.Errorf("notification campaign = %q, want %q", n.CampaignID, c.ID)
	}
}

func TestCreate_Invalid(t *testing.T) {
	svc := newService(newMockRepo(), &mockSink{}, nil)
	ctx := context.Background()

	bad := createParams()
	bad.Platform = "myspace"
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("expected error for unsupported platform")
	}

	bad = createParams()
	bad.AdvertiserID = bad.CreatorID
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("expected error for identical participants")
	}

	bad = createParams()
	bad.BudgetCents = 0
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("expected error for zero budget")
	}
}

// --- Proposal ---

func TestAcceptProposal(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	c := mustCreate(t, svc)

	outcome, err := svc.AcceptProposal(context.Background(), c.ID, advertiserID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	got := outcome.Campaign
	if got.Phase != domain.PhaseProduction {
		t.Errorf("Phase = %q, want %q", got.Phase, domain.PhaseProduction)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if len(got.History) != 1 {
		t.Fatalf("History length = %d, want 1", len(got.History))
	}
	if got.History[0].From != domain.PhaseProposal || got.History[0].To != domain.PhaseProduction {
		t.Errorf("history = %q → %q, want proposal → production", got.History[0].From, got.History[0].To)
	}
	if got.History[0].TriggeredBy != advertiserID {
		t.Errorf("TriggeredBy = %q, want %q", got.History[0].TriggeredBy, advertiserID)
	}

	n, ok := sink.lastKind(domain.NotificationPhaseChanged)
	if !ok {
		t.Fatal("expected a phase.changed notification")
	}
	if n.From != domain.PhaseProposal || n.To != domain.PhaseProduction {
		t.Errorf("notification = %q → %q, want proposal → production", n.From, n.To)
	}
	if n.ActorRole != domain.RoleAdvertiser {
		t.Errorf("ActorRole = %q, want advertiser", n.ActorRole)
	}
}

func TestAcceptProposal_ByCreator_Forbidden(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)

	_, err := svc.AcceptProposal(context.Background(), c.ID, creatorID)
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if forbidden.Role != domain.RoleCreator {
		t.Errorf("Role = %q, want creator", forbidden.Role)
	}
	if forbidden.Required != domain.RoleAdvertiser {
		t.Errorf("Required = %q, want advertiser", forbidden.Required)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseProposal {
		t.Errorf("stored phase = %q, want proposal (unchanged)", stored.Phase)
	}
}

func TestAcceptProposal_ByStranger_Forbidden(t *testing.T) {
	svc := newService(newMockRepo(), &mockSink{}, nil)
	c := mustCreate(t, svc)

	_, err := svc.AcceptProposal(context.Background(), c.ID, "stranger")
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestRejectProposal(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)

	// Either participant may walk away from an unaccepted proposal.
	outcome, err := svc.RejectProposal(context.Background(), c.ID, creatorID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhaseRejected {
		t.Errorf("Phase = %q, want rejected", outcome.Campaign.Phase)
	}
	if !outcome.Campaign.Archived {
		t.Error("rejected campaign should be archived")
	}
}

func TestRejectProposal_WrongPhase(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	_, err := svc.RejectProposal(context.Background(), c.ID, creatorID)
	var trErr *domain.IllegalTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

// --- Cancel ---

func TestCancel_AlwaysSucceedsFromNonTerminalPhases(t *testing.T) {
	for _, phase := range []domain.Phase{
		domain.PhaseProposal,
		domain.PhaseProduction,
		domain.PhasePrepayment,
		domain.PhaseDelivery,
		domain.PhaseValidation,
	} {
		repo := newMockRepo()
		svc := newService(repo, &mockSink{}, nil)
		c := mustCreate(t, svc)
		seedPhase(repo, c.ID, phase)

		// No checklist state: reject needs no requirements.
		outcome, err := svc.Cancel(context.Background(), c.ID, advertiserID)
		if err != nil {
			t.Errorf("cancel from %q failed: %v", phase, err)
			continue
		}
		if outcome.Campaign.Phase != domain.PhaseRejected {
			t.Errorf("cancel from %q = %q, want rejected", phase, outcome.Campaign.Phase)
		}
	}
}

func TestCancel_FromPaymentAndTerminalPhases_Illegal(t *testing.T) {
	for _, phase := range []domain.Phase{
		domain.PhasePayment,
		domain.PhaseCompleted,
		domain.PhaseRejected,
	} {
		repo := newMockRepo()
		svc := newService(repo, &mockSink{}, nil)
		c := mustCreate(t, svc)
		seedPhase(repo, c.ID, phase)

		_, err := svc.Cancel(context.Background(), c.ID, advertiserID)
		var trErr *domain.IllegalTransitionError
		if !errors.As(err, &trErr) {
			t.Errorf("cancel from %q: expected IllegalTransitionError, got %v", phase, err)
		}
	}
}

// --- Production ---

func TestSubmitForDelivery_RequirementsNotMet(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseProduction)

	_, err := svc.SubmitForDelivery(context.Background(), c.ID, nil, creatorID)
	var notMet *domain.RequirementsNotMetError
	if !errors.As(err, &notMet) {
		t.Fatalf("expected RequirementsNotMetError, got %v", err)
	}
	if len(notMet.Missing) != 2 {
		t.Errorf("missing = %v, want both production requirements", notMet.Missing)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseProduction {
		t.Errorf("stored phase = %q, want production (unchanged)", stored.Phase)
	}
}

func TestSubmitForDelivery_Succeeds(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseProduction)
	satisfyPhase(t, svc, c.ID, creatorID, domain.PhaseProduction)

	outcome, err := svc.SubmitForDelivery(context.Background(), c.ID,
		[]string{"draft-script", "record-content"}, creatorID)
	if err != nil {
		t.Fatalf("submit for delivery failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhasePrepayment {
		t.Errorf("Phase = %q, want prepayment", outcome.Campaign.Phase)
	}
	if len(outcome.Campaign.SatisfiedRequirements) != 0 {
		t.Error("checklist should be reset for the new phase")
	}
}

func TestSubmitForDelivery_ByAdvertiser_Forbidden(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseProduction)

	_, err := svc.SubmitForDelivery(context.Background(), c.ID, nil, advertiserID)
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

// --- Delivery ---

func TestSubmitDeliveryLink_WrongPhase(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseProduction)

	// Delivery requirements cannot even be marked while still in
	// production; the checklist is phase-scoped.
	_, err := svc.ToggleRequirement(context.Background(), c.ID, "content-published", true, creatorID)
	var unknownReq *domain.UnknownRequirementError
	if !errors.As(err, &unknownReq) {
		t.Fatalf("expected UnknownRequirementError, got %v", err)
	}

	// And the submit event itself is illegal from production.
	_, err = svc.SubmitDeliveryLink(context.Background(), c.ID, "https://instagram.com/p/abc", creatorID)
	var trErr *domain.IllegalTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseProduction {
		t.Errorf("stored phase = %q, want production (unchanged)", stored.Phase)
	}
}

func TestSubmitDeliveryLink_RequirementsNotMet(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	// Check 4 of 5 delivery requirements.
	reqs := domain.DefinitionFor(domain.PhaseDelivery).Requirements
	for _, req := range reqs[:4] {
		if _, err := svc.ToggleRequirement(context.Background(), c.ID, req.ID, true, creatorID); err != nil {
			t.Fatalf("toggling %q: %v", req.ID, err)
		}
	}

	_, err := svc.SubmitDeliveryLink(context.Background(), c.ID, "https://instagram.com/p/abc", creatorID)
	var notMet *domain.RequirementsNotMetError
	if !errors.As(err, &notMet) {
		t.Fatalf("expected RequirementsNotMetError, got %v", err)
	}
	if len(notMet.Missing) != 1 || notMet.Missing[0] != reqs[4].ID {
		t.Errorf("missing = %v, want [%q]", notMet.Missing, reqs[4].ID)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseDelivery {
		t.Errorf("stored phase = %q, want delivery (unchanged)", stored.Phase)
	}
}

func TestSubmitDeliveryLink_PlatformMismatch(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc) // instagram campaign
	seedPhase(repo, c.ID, domain.PhaseDelivery)
	satisfyPhase(t, svc, c.ID, creatorID, domain.PhaseDelivery)

	_, err := svc.SubmitDeliveryLink(context.Background(), c.ID, "https://tiktok.com/@x/video/1", creatorID)
	var linkErr *domain.InvalidDeliveryLinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("expected InvalidDeliveryLinkError, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseDelivery {
		t.Errorf("stored phase = %q, want delivery (unchanged)", stored.Phase)
	}
}

func TestSubmitDeliveryLink_Succeeds(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)
	satisfyPhase(t, svc, c.ID, creatorID, domain.PhaseDelivery)

	outcome, err := svc.SubmitDeliveryLink(context.Background(), c.ID, "https://www.instagram.com/p/abc", creatorID)
	if err != nil {
		t.Fatalf("submit link failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhaseValidation {
		t.Errorf("Phase = %q, want validation", outcome.Campaign.Phase)
	}
	if outcome.Campaign.DeliveryURL != "https://www.instagram.com/p/abc" {
		t.Errorf("DeliveryURL = %q", outcome.Campaign.DeliveryURL)
	}
	if len(outcome.Campaign.SatisfiedRequirements) != 0 {
		t.Error("checklist should be reset for the validation phase")
	}
}

// --- Validation ---

func TestApproveValidation_ByCreator_Forbidden(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseValidation)

	_, err := svc.ApproveValidation(context.Background(), c.ID, 5, "great work", creatorID)
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if forbidden.Required != domain.RoleAdvertiser {
		t.Errorf("Required = %q, want advertiser", forbidden.Required)
	}
}

func TestApproveValidation_Succeeds(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseValidation)
	satisfyPhase(t, svc, c.ID, advertiserID, domain.PhaseValidation)

	outcome, err := svc.ApproveValidation(context.Background(), c.ID, 4, "solid delivery", advertiserID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhasePayment {
		t.Errorf("Phase = %q, want payment", outcome.Campaign.Phase)
	}
	if outcome.Campaign.Rating != 4 {
		t.Errorf("Rating = %d, want 4", outcome.Campaign.Rating)
	}
	if outcome.Campaign.Feedback != "solid delivery" {
		t.Errorf("Feedback = %q", outcome.Campaign.Feedback)
	}
}

func TestApproveValidation_IncompleteVerdict(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseValidation)
	satisfyPhase(t, svc, c.ID, advertiserID, domain.PhaseValidation)

	_, err := svc.ApproveValidation(context.Background(), c.ID, 0, "fine", advertiserID)
	var verdictErr *domain.ValidationVerdictError
	if !errors.As(err, &verdictErr) {
		t.Fatalf("expected ValidationVerdictError for rating 0, got %v", err)
	}

	_, err = svc.ApproveValidation(context.Background(), c.ID, 3, "", advertiserID)
	if !errors.As(err, &verdictErr) {
		t.Fatalf("expected ValidationVerdictError for empty feedback, got %v", err)
	}
}

func TestRejectValidation(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseValidation)

	// Feedback is mandatory so the creator knows why.
	_, err := svc.RejectValidation(context.Background(), c.ID, "", advertiserID)
	var verdictErr *domain.ValidationVerdictError
	if !errors.As(err, &verdictErr) {
		t.Fatalf("expected ValidationVerdictError, got %v", err)
	}

	// Creators cannot reject their own delivery review.
	_, err = svc.RejectValidation(context.Background(), c.ID, "not as briefed", creatorID)
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	outcome, err := svc.RejectValidation(context.Background(), c.ID, "not as briefed", advertiserID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhaseRejected {
		t.Errorf("Phase = %q, want rejected", outcome.Campaign.Phase)
	}
	if outcome.Campaign.Feedback != "not as briefed" {
		t.Errorf("Feedback = %q", outcome.Campaign.Feedback)
	}
}

// --- Payment ---

func TestCompletePayment(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhasePayment)

	outcome, err := svc.CompletePayment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if outcome.Campaign.Phase != domain.PhaseCompleted {
		t.Errorf("Phase = %q, want completed", outcome.Campaign.Phase)
	}
	if !outcome.Campaign.Archived {
		t.Error("completed campaign should be archived")
	}
	last := outcome.Campaign.History[len(outcome.Campaign.History)-1]
	if last.TriggeredBy != "payment-gateway" {
		t.Errorf("TriggeredBy = %q, want payment-gateway", last.TriggeredBy)
	}
}

func TestCompletePayment_WrongPhase(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)

	_, err := svc.CompletePayment(context.Background(), c.ID)
	var trErr *domain.IllegalTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

// --- Persistence and notification contracts ---

func TestTransition_VersionConflict(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	c := mustCreate(t, svc)
	repo.commitErr = domain.ErrVersionConflict

	notificationsBefore := len(sink.notifications)

	_, err := svc.AcceptProposal(context.Background(), c.ID, advertiserID)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected wrapped ErrVersionConflict, got %v", err)
	}

	// The stored state is untouched and no notification leaked out.
	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseProposal {
		t.Errorf("stored phase = %q, want proposal (unchanged)", stored.Phase)
	}
	if len(sink.notifications) != notificationsBefore {
		t.Error("no notification should be published when commit fails")
	}
}

func TestTransition_NotificationFailureIsNonFatal(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	c := mustCreate(t, svc)
	sink.err = fmt.Errorf("broker down")

	outcome, err := svc.AcceptProposal(context.Background(), c.ID, advertiserID)
	if err != nil {
		t.Fatalf("transition should commit despite notification failure: %v", err)
	}
	if outcome.NotifyErr == nil {
		t.Error("outcome should surface the notification failure")
	}
	if outcome.Campaign.Phase != domain.PhaseProduction {
		t.Errorf("Phase = %q, want production", outcome.Campaign.Phase)
	}

	// Committed: a reload observes the new phase.
	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Phase != domain.PhaseProduction {
		t.Errorf("stored phase = %q, want production", stored.Phase)
	}
}

func TestTransition_ExactlyOnePhaseChangedNotification(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	c := mustCreate(t, svc)

	if _, err := svc.AcceptProposal(context.Background(), c.ID, advertiserID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	count := 0
	for _, n := range sink.notifications {
		if n.Kind == domain.NotificationPhaseChanged {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d phase.changed notifications, want 1", count)
	}
}

// --- Checklist ---

func TestToggleRequirement(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	outcome, err := svc.ToggleRequirement(context.Background(), c.ID, "content-published", true, creatorID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if outcome.Progress.Completed != 1 || outcome.Progress.Total != 5 {
		t.Errorf("progress = %+v, want 1/5", outcome.Progress)
	}
	if outcome.PhaseComplete {
		t.Error("phase should not be complete at 1/5")
	}
	if outcome.Campaign.Phase != domain.PhaseDelivery {
		t.Errorf("toggle must not transition; phase = %q", outcome.Campaign.Phase)
	}

	n, ok := sink.lastKind(domain.NotificationRequirementUpdated)
	if !ok {
		t.Fatal("expected a requirement.updated notification")
	}
	if n.RequirementID != "content-published" || !n.Satisfied {
		t.Errorf("notification = %+v", n)
	}
}

func TestToggleRequirement_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	first, err := svc.ToggleRequirement(context.Background(), c.ID, "brand-mention", true, creatorID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	second, err := svc.ToggleRequirement(context.Background(), c.ID, "brand-mention", true, creatorID)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}

	if first.Progress != second.Progress {
		t.Errorf("progress diverged: %+v vs %+v", first.Progress, second.Progress)
	}
	if len(second.Campaign.SatisfiedRequirements) != 1 {
		t.Errorf("satisfied = %v, want exactly one entry", second.Campaign.SatisfiedRequirements)
	}
}

func TestToggleRequirement_NonParticipant(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	_, err := svc.ToggleRequirement(context.Background(), c.ID, "content-published", true, "stranger")
	var forbidden *domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

// --- Projection ---

func TestView_RoleAsymmetry(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockSink{}, nil)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseProduction)

	creatorView, err := svc.View(context.Background(), c.ID, domain.RoleCreator)
	if err != nil {
		t.Fatalf("creator view failed: %v", err)
	}
	advertiserView, err := svc.View(context.Background(), c.ID, domain.RoleAdvertiser)
	if err != nil {
		t.Fatalf("advertiser view failed: %v", err)
	}

	if creatorView.NextAction.ActionLabel == "" {
		t.Error("creator should have an action in production")
	}
	if advertiserView.NextAction.ActionLabel != "" {
		t.Error("advertiser should be waiting in production")
	}
}

func TestView_ResolvesMetrics(t *testing.T) {
	repo := newMockRepo()
	metrics := &mockMetrics{values: map[string]float64{"impressions": 120_000}}
	svc := newService(repo, &mockSink{}, metrics)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	view, err := svc.View(context.Background(), c.ID, domain.RoleAdvertiser)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}

	var impressions, clicks *domain.MetricView
	for i := range view.Metrics {
		switch view.Metrics[i].ID {
		case "impressions":
			impressions = &view.Metrics[i]
		case "clicks":
			clicks = &view.Metrics[i]
		}
	}
	if impressions == nil || !impressions.Known || impressions.Value != 120_000 {
		t.Errorf("impressions = %+v, want known 120000", impressions)
	}
	if clicks == nil || clicks.Known {
		t.Errorf("clicks = %+v, want present but unknown", clicks)
	}
}

func TestView_MetricsFailureDegrades(t *testing.T) {
	repo := newMockRepo()
	metrics := &mockMetrics{err: fmt.Errorf("analytics down")}
	svc := newService(repo, &mockSink{}, metrics)
	c := mustCreate(t, svc)
	seedPhase(repo, c.ID, domain.PhaseDelivery)

	view, err := svc.View(context.Background(), c.ID, domain.RoleCreator)
	if err != nil {
		t.Fatalf("view should degrade, not fail: %v", err)
	}
	for _, m := range view.Metrics {
		if m.Known {
			t.Errorf("metric %q should be unknown when analytics is down", m.ID)
		}
	}
}

// --- End to end ---

func TestFullLifecycle(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	svc := newService(repo, sink, nil)
	ctx := context.Background()
	c := mustCreate(t, svc)

	if _, err := svc.AcceptProposal(ctx, c.ID, advertiserID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	satisfyPhase(t, svc, c.ID, creatorID, domain.PhaseProduction)
	if _, err := svc.SubmitForDelivery(ctx, c.ID, []string{"draft-script"}, creatorID); err != nil {
		t.Fatalf("submit for delivery: %v", err)
	}
	satisfyPhase(t, svc, c.ID, advertiserID, domain.PhasePrepayment)
	if _, err := svc.ConfirmPrepayment(ctx, c.ID, advertiserID); err != nil {
		t.Fatalf("confirm prepayment: %v", err)
	}
	satisfyPhase(t, svc, c.ID, creatorID, domain.PhaseDelivery)
	if _, err := svc.SubmitDeliveryLink(ctx, c.ID, "https://instagram.com/p/final", creatorID); err != nil {
		t.Fatalf("submit link: %v", err)
	}
	satisfyPhase(t, svc, c.ID, advertiserID, domain.PhaseValidation)
	if _, err := svc.ApproveValidation(ctx, c.ID, 5, "flawless", advertiserID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	outcome, err := svc.CompletePayment(ctx, c.ID)
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}

	final := outcome.Campaign
	if final.Phase != domain.PhaseCompleted {
		t.Errorf("final phase = %q, want completed", final.Phase)
	}
	if len(final.History) != 6 {
		t.Errorf("history length = %d, want 6", len(final.History))
	}
	if !final.Archived {
		t.Error("completed campaign should be archived")
	}

	if len(final.SatisfiedRequirements) != 0 {
		t.Error("terminal checklist should be empty")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newService(newMockRepo(), &mockSink{}, nil)

	_, err := svc.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Errorf("expected ErrCampaignNotFound, got %v", err)
	}
}
