package domain

import "fmt"

// NextActionView is the role-projected "what should happen next" for a
// campaign. The same phase projects differently per role: one side is
// usually doing, the other waiting.
type NextActionView struct {
	Title       string
	Description string
	ActionLabel string
	Enabled     bool
}

// MetricView is a metric descriptor resolved for display. Known is
// false when analytics has no value yet for the metric.
type MetricView struct {
	ID    string
	Label string
	Unit  string
	Value float64
	Known bool
}

// NextAction projects the next-action view for a campaign and viewer
// role. It is a pure function of (phase, role); checklist completeness
// is consulted only to decide whether the primary action is enabled.
func NextAction(c *Campaign, role Role) NextActionView {
	complete := PhaseComplete(c)

	switch c.Phase {
	case PhaseProposal:
		if role == RoleAdvertiser {
			return NextActionView{
				Title:       "Review the proposal",
				Description: "Accept to start production, or reject to end the collaboration.",
				ActionLabel: "Accept proposal",
				Enabled:     true,
			}
		}
		return NextActionView{
			Title:       "Proposal sent",
			Description: "Waiting for the advertiser to accept the proposal.",
		}

	case PhaseProduction:
		// Intentional asymmetry: the creator is doing, the advertiser
		// gets a non-actionable waiting view.
		if role == RoleCreator {
			return NextActionView{
				Title:       "Produce the content",
				Description: "Work through the production checklist, then submit for delivery.",
				ActionLabel: "Submit for delivery",
				Enabled:     complete,
			}
		}
		return NextActionView{
			Title:       "Content in production",
			Description: "The creator is producing the content. You will be notified when it is ready.",
		}

	case PhasePrepayment:
		if role == RoleAdvertiser {
			return NextActionView{
				Title:       "Fund the escrow",
				Description: "Deposit the campaign budget so the creator can publish.",
				ActionLabel: "Confirm pre-payment",
				Enabled:     complete,
			}
		}
		return NextActionView{
			Title:       "Awaiting pre-payment",
			Description: "Waiting for the advertiser to fund the escrow.",
		}

	case PhaseDelivery:
		if role == RoleCreator {
			return NextActionView{
				Title:       "Publish and submit the link",
				Description: "Publish the content, complete the delivery checklist, and submit the live link.",
				ActionLabel: "Submit delivery link",
				Enabled:     complete,
			}
		}
		return NextActionView{
			Title:       "Awaiting delivery",
			Description: "The creator is publishing the content.",
		}

	case PhaseValidation:
		if role == RoleAdvertiser {
			return NextActionView{
				Title:       "Validate the delivery",
				Description: "Review the published content, rate the collaboration, and approve or reject.",
				ActionLabel: "Approve",
				Enabled:     complete,
			}
		}
		return NextActionView{
			Title:       "Under review",
			Description: "The advertiser is reviewing the published content.",
		}

	case PhasePayment:
		if role == RoleCreator {
			return NextActionView{
				Title:       "Payment processing",
				Description: "The escrowed budget is being released to your account.",
			}
		}
		return NextActionView{
			Title:       "Payment processing",
			Description: "The payment is being released to the creator.",
		}

	case PhaseCompleted:
		return NextActionView{
			Title:       "Campaign completed",
			Description: "The collaboration finished successfully.",
		}

	case PhaseRejected:
		return NextActionView{
			Title:       "Campaign rejected",
			Description: "The collaboration ended without completing.",
		}
	}

	panic(fmt.Sprintf("domain: no projection for phase %q", c.Phase))
}

// MetricSpecs selects which of the current phase's metrics apply to the
// given viewer role. Resolving live values is the analytics
// collaborator's job, not the projector's.
func MetricSpecs(phase Phase, role Role) []MetricSpec {
	var out []MetricSpec
	for _, spec := range DefinitionFor(phase).Metrics {
		if spec.Visible(role) {
			out = append(out, spec)
		}
	}
	return out
}
