package domain

import "time"

// Phase represents the lifecycle stage of a campaign.
type Phase string

const (
	PhaseProposal   Phase = "proposal"
	PhaseProduction Phase = "production"
	PhasePrepayment Phase = "prepayment"
	PhaseDelivery   Phase = "delivery"
	PhaseValidation Phase = "validation"
	PhasePayment    Phase = "payment"
	PhaseCompleted  Phase = "completed"
	PhaseRejected   Phase = "rejected"
)

// Terminal reports whether a phase has no outgoing transitions at all.
// Payment is not terminal: the gateway-delivered ProcessingComplete
// event still leaves it, even though participants cannot act on it.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseRejected
}

// Event represents an action that triggers a phase transition.
type Event string

const (
	EventAccept             Event = "accept"
	EventReject             Event = "reject"
	EventSubmitForDelivery  Event = "submit_for_delivery"
	EventConfirmPrepayment  Event = "confirm_prepayment"
	EventSubmitLink         Event = "submit_link"
	EventApprove            Event = "approve"
	EventProcessingComplete Event = "processing_complete"
)

// Role identifies which side of a campaign an actor is on.
type Role string

const (
	RoleCreator    Role = "creator"
	RoleAdvertiser Role = "advertiser"
)

// Actor is the authenticated user attempting an operation. Identity is
// resolved by the calling layer; the workflow only checks it against
// the campaign's participants.
type Actor struct {
	UserID string
	Role   Role
}

// Transition defines a valid phase change: an event moves a campaign from Src to Dst.
type Transition struct {
	Event Event
	Src   Phase
	Dst   Phase
}

// Transitions defines all valid phase changes in the campaign lifecycle.
// This is domain knowledge consumed by the FSM adapter. Reject is legal
// from every non-terminal phase except payment, which is already funded.
var Transitions = []Transition{
	{Event: EventAccept, Src: PhaseProposal, Dst: PhaseProduction},
	{Event: EventSubmitForDelivery, Src: PhaseProduction, Dst: PhasePrepayment},
	{Event: EventConfirmPrepayment, Src: PhasePrepayment, Dst: PhaseDelivery},
	{Event: EventSubmitLink, Src: PhaseDelivery, Dst: PhaseValidation},
	{Event: EventApprove, Src: PhaseValidation, Dst: PhasePayment},
	{Event: EventProcessingComplete, Src: PhasePayment, Dst: PhaseCompleted},
	{Event: EventReject, Src: PhaseProposal, Dst: PhaseRejected},
	{Event: EventReject, Src: PhaseProduction, Dst: PhaseRejected},
	{Event: EventReject, Src: PhasePrepayment, Dst: PhaseRejected},
	{Event: EventReject, Src: PhaseDelivery, Dst: PhaseRejected},
	{Event: EventReject, Src: PhaseValidation, Dst: PhaseRejected},
}

// PhaseTransition is one append-only history record of an applied transition.
type PhaseTransition struct {
	From        Phase
	To          Phase
	At          time.Time
	TriggeredBy string
}

// Campaign is the core domain entity: a sponsored-content collaboration
// between an advertiser and a creator. Checklist state (satisfied
// requirements, completed tasks) is scoped to the current phase only.
type Campaign struct {
	ID           string
	Title        string
	Platform     Platform
	BudgetCents  int64
	Deadline     time.Time
	CreatorID    string
	AdvertiserID string

	Phase                 Phase
	SatisfiedRequirements map[string]bool
	CompletedTasks        map[string]bool
	History               []PhaseTransition

	DeliveryURL string
	Rating      int
	Feedback    string

	Archived  bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCampaign creates a campaign in the initial proposal phase.
func NewCampaign(id, title string, platform Platform, budgetCents int64, deadline time.Time, creatorID, advertiserID string) Campaign {
	now := time.Now().UTC()
	return Campaign{
		ID:                    id,
		Title:                 title,
		Platform:              platform,
		BudgetCents:           budgetCents,
		Deadline:              deadline,
		CreatorID:             creatorID,
		AdvertiserID:          advertiserID,
		Phase:                 PhaseProposal,
		SatisfiedRequirements: map[string]bool{},
		CompletedTasks:        map[string]bool{},
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// RoleOf returns the role the given user plays on this campaign.
// ok is false for users who are not participants.
func (c Campaign) RoleOf(userID string) (Role, bool) {
	switch userID {
	case c.CreatorID:
		return RoleCreator, true
	case c.AdvertiserID:
		return RoleAdvertiser, true
	}
	return "", false
}

// ParticipantID returns the user id holding the given role.
func (c Campaign) ParticipantID(role Role) string {
	if role == RoleCreator {
		return c.CreatorID
	}
	return c.AdvertiserID
}

// Advance moves the campaign to the next phase, appends the history
// record, and resets checklist state for the new phase. Requirements
// are scoped per-phase, never cumulative: a fresh phase always starts
// with an empty checklist. Reaching a terminal phase archives the
// campaign.
func (c *Campaign) Advance(to Phase, triggeredBy string, at time.Time) {
	c.History = append(c.History, PhaseTransition{
		From:        c.Phase,
		To:          to,
		At:          at,
		TriggeredBy: triggeredBy,
	})
	c.Phase = to
	c.SatisfiedRequirements = map[string]bool{}
	c.CompletedTasks = map[string]bool{}
	if to.Terminal() {
		c.Archived = true
	}
	c.UpdatedAt = at
}
