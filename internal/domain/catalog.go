package domain

import "fmt"

// Task is a non-gating checklist item: a progress hint shown to the
// user, never a precondition for leaving the phase.
type Task struct {
	ID          string
	Label       string
	Description string
}

// Requirement is a phase-scoped precondition. Every requirement of the
// current phase must be satisfied before the phase can advance.
type Requirement struct {
	ID          string
	Label       string
	Description string
}

// MetricAudience restricts a metric to one viewer role, or shows it to both.
type MetricAudience string

const (
	AudienceCreator    MetricAudience = "creator"
	AudienceAdvertiser MetricAudience = "advertiser"
	AudienceBoth       MetricAudience = "both"
)

// MetricSpec describes a metric that matters during a phase. Live
// values come from the analytics collaborator; the catalog only names
// which metrics apply.
type MetricSpec struct {
	ID       string
	Label    string
	Unit     string
	Audience MetricAudience
}

// Visible reports whether the metric should be shown to the given role.
func (m MetricSpec) Visible(role Role) bool {
	switch m.Audience {
	case AudienceBoth:
		return true
	case AudienceCreator:
		return role == RoleCreator
	case AudienceAdvertiser:
		return role == RoleAdvertiser
	}
	return false
}

// PhaseDefinition is the static description of one phase: copy, task
// list, requirement gate, and metric descriptors. Immutable for the
// lifetime of the process.
type PhaseDefinition struct {
	ID           Phase
	Title        string
	Description  string
	Tasks        []Task
	Requirements []Requirement
	Metrics      []MetricSpec
}

// orderedPhases is the happy-path phase sequence. Rejected sits outside
// the order; it is reachable from every non-terminal phase.
var orderedPhases = []Phase{
	PhaseProposal,
	PhaseProduction,
	PhasePrepayment,
	PhaseDelivery,
	PhaseValidation,
	PhasePayment,
	PhaseCompleted,
}

// catalog is the single source of truth for phase metadata. Every view
// of "what should happen next" derives from these definitions; there
// are deliberately no per-view copies.
var catalog = map[Phase]PhaseDefinition{
	PhaseProposal: {
		ID:          PhaseProposal,
		Title:       "Proposal",
		Description: "The advertiser reviews the campaign terms and decides whether to collaborate.",
		Tasks: []Task{
			{ID: "review-brief", Label: "Review the campaign brief"},
			{ID: "review-budget", Label: "Review budget and deadline"},
		},
		Metrics: []MetricSpec{
			{ID: "follower-count", Label: "Creator followers", Unit: "followers", Audience: AudienceAdvertiser},
			{ID: "avg-engagement", Label: "Average engagement rate", Unit: "%", Audience: AudienceAdvertiser},
		},
	},
	PhaseProduction: {
		ID:          PhaseProduction,
		Title:       "Production",
		Description: "The creator produces the sponsored content according to the brief.",
		Tasks: []Task{
			{ID: "draft-script", Label: "Draft the content script"},
			{ID: "record-content", Label: "Record the content"},
			{ID: "edit-content", Label: "Edit and finalize"},
		},
		Requirements: []Requirement{
			{ID: "brief-confirmed", Label: "Brief understood and confirmed"},
			{ID: "draft-shared", Label: "Draft shared with the advertiser"},
		},
	},
	PhasePrepayment: {
		ID:          PhasePrepayment,
		Title:       "Pre-payment",
		Description: "The advertiser funds the escrow before the content goes live.",
		Requirements: []Requirement{
			{ID: "escrow-funded", Label: "Escrow deposit received"},
		},
		Metrics: []MetricSpec{
			{ID: "escrow-amount", Label: "Escrow amount", Unit: "cents", Audience: AudienceBoth},
		},
	},
	PhaseDelivery: {
		ID:          PhaseDelivery,
		Title:       "Delivery",
		Description: "The creator publishes the content and submits the live link.",
		Tasks: []Task{
			{ID: "schedule-post", Label: "Schedule the post"},
		},
		Requirements: []Requirement{
			{ID: "content-published", Label: "Content is live on the platform"},
			{ID: "caption-approved", Label: "Caption matches the approved copy"},
			{ID: "disclosure-tag", Label: "Sponsorship disclosure tag present"},
			{ID: "brand-mention", Label: "Brand account mentioned"},
			{ID: "tracking-link", Label: "Tracking link included"},
		},
		Metrics: []MetricSpec{
			{ID: "impressions", Label: "Impressions", Unit: "views", Audience: AudienceBoth},
			{ID: "clicks", Label: "Link clicks", Unit: "clicks", Audience: AudienceAdvertiser},
		},
	},
	PhaseValidation: {
		ID:          PhaseValidation,
		Title:       "Validation",
		Description: "The advertiser reviews the published content and rates the collaboration.",
		Requirements: []Requirement{
			{ID: "content-reviewed", Label: "Published content reviewed"},
		},
		Metrics: []MetricSpec{
			{ID: "impressions", Label: "Impressions", Unit: "views", Audience: AudienceBoth},
			{ID: "engagement", Label: "Engagement rate", Unit: "%", Audience: AudienceBoth},
			{ID: "clicks", Label: "Link clicks", Unit: "clicks", Audience: AudienceAdvertiser},
		},
	},
	PhasePayment: {
		ID:          PhasePayment,
		Title:       "Payment",
		Description: "The escrowed budget is released to the creator.",
		Metrics: []MetricSpec{
			{ID: "payout-amount", Label: "Payout amount", Unit: "cents", Audience: AudienceCreator},
		},
	},
	PhaseCompleted: {
		ID:          PhaseCompleted,
		Title:       "Completed",
		Description: "The campaign finished successfully.",
		Metrics: []MetricSpec{
			{ID: "impressions", Label: "Impressions", Unit: "views", Audience: AudienceBoth},
			{ID: "engagement", Label: "Engagement rate", Unit: "%", Audience: AudienceBoth},
		},
	},
	PhaseRejected: {
		ID:          PhaseRejected,
		Title:       "Rejected",
		Description: "The campaign was rejected and will not proceed.",
	},
}

// DefinitionFor returns the static definition of a phase. Asking for a
// phase outside the catalog is a programming error, not a runtime
// condition, so it panics rather than returning an error.
func DefinitionFor(phase Phase) PhaseDefinition {
	def, ok := catalog[phase]
	if !ok {
		panic(fmt.Sprintf("domain: phase %q is not in the step catalog", phase))
	}
	return def
}

// OrderedPhases returns the happy-path phase sequence, proposal first.
func OrderedPhases() []Phase {
	out := make([]Phase, len(orderedPhases))
	copy(out, orderedPhases)
	return out
}

// NextPhase returns the phase that follows p on the happy path.
// ok is false for terminal phases and for rejected.
func NextPhase(p Phase) (Phase, bool) {
	for i, phase := range orderedPhases {
		if phase == p && i+1 < len(orderedPhases) {
			return orderedPhases[i+1], true
		}
	}
	return "", false
}
