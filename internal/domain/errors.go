package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrVersionConflict is returned by the repository when a commit
	// carries a stale version: another transition won the race and the
	// caller must reload.
	ErrVersionConflict = errors.New("campaign version conflict")
)

// IllegalTransitionError is returned when an event is not defined for
// the campaign's current phase.
type IllegalTransitionError struct {
	Event   Event
	Current Phase
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from phase %q", e.Event, e.Current)
}

// RequirementsNotMetError is returned when a guarded transition is
// attempted before every requirement of the current phase is satisfied.
// Missing lists the unsatisfied requirement ids so the UI can point the
// user at what's left.
type RequirementsNotMetError struct {
	Phase   Phase
	Missing []string
}

func (e *RequirementsNotMetError) Error() string {
	return fmt.Sprintf("%d requirement(s) still pending in phase %q: %s",
		len(e.Missing), e.Phase, strings.Join(e.Missing, ", "))
}

// ForbiddenError is returned when the actor's role is not authorized
// for the attempted event.
type ForbiddenError struct {
	Event    Event
	Role     Role
	Required Role
}

func (e *ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("event %q requires the %s participant", e.Event, e.Required)
	}
	return fmt.Sprintf("event %q requires the %s participant, actor is %s", e.Event, e.Required, e.Role)
}

// UnknownRequirementError is returned when a requirement id does not
// belong to the current phase's definition. This usually means the UI
// and the step catalog have drifted apart.
type UnknownRequirementError struct {
	Phase         Phase
	RequirementID string
}

func (e *UnknownRequirementError) Error() string {
	return fmt.Sprintf("requirement %q is not part of phase %q", e.RequirementID, e.Phase)
}

// InvalidDeliveryLinkError is returned when a submitted delivery link
// fails platform validation.
type InvalidDeliveryLinkError struct {
	URL      string
	Platform Platform
	Reason   string
}

func (e *InvalidDeliveryLinkError) Error() string {
	return fmt.Sprintf("delivery link %q rejected for platform %q: %s", e.URL, e.Platform, e.Reason)
}

// ValidationVerdictError is returned when an approve/reject at the
// validation phase is missing its required rating or feedback.
type ValidationVerdictError struct {
	Reason string
}

func (e *ValidationVerdictError) Error() string {
	return "validation verdict incomplete: " + e.Reason
}
