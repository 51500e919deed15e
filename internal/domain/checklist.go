package domain

// Checklist operations work on the campaign's current phase only.
// Marks are rebuilt fresh on every phase change, so stale checked state
// can never leak from one phase into the next.

// Progress summarizes requirement completion for UI progress bars.
type Progress struct {
	Completed int
	Total     int
}

// SetRequirement marks a requirement of the current phase as satisfied
// or not. Setting an already-satisfied requirement is a no-op. An id
// outside the current phase's definition is rejected, which prevents
// cross-phase leakage of satisfied state.
func SetRequirement(c *Campaign, requirementID string, satisfied bool) error {
	if !requirementInPhase(c.Phase, requirementID) {
		return &UnknownRequirementError{Phase: c.Phase, RequirementID: requirementID}
	}
	if c.SatisfiedRequirements == nil {
		c.SatisfiedRequirements = map[string]bool{}
	}
	if satisfied {
		c.SatisfiedRequirements[requirementID] = true
	} else {
		delete(c.SatisfiedRequirements, requirementID)
	}
	return nil
}

// CompleteTask marks a non-gating task of the current phase as done.
// Unknown task ids are ignored: tasks are progress hints, and a drifted
// UI must not be able to fail a transition over one.
func CompleteTask(c *Campaign, taskID string) {
	for _, task := range DefinitionFor(c.Phase).Tasks {
		if task.ID == taskID {
			if c.CompletedTasks == nil {
				c.CompletedTasks = map[string]bool{}
			}
			c.CompletedTasks[taskID] = true
			return
		}
	}
}

// PhaseComplete reports whether every requirement of the current phase
// is satisfied. Phases without requirements are trivially complete.
func PhaseComplete(c *Campaign) bool {
	return len(MissingRequirements(c)) == 0
}

// MissingRequirements returns the ids of unsatisfied requirements in
// the current phase, in catalog order.
func MissingRequirements(c *Campaign) []string {
	var missing []string
	for _, req := range DefinitionFor(c.Phase).Requirements {
		if !c.SatisfiedRequirements[req.ID] {
			missing = append(missing, req.ID)
		}
	}
	return missing
}

// ChecklistProgress returns requirement completion counts for the
// current phase. Pure; no side effects.
func ChecklistProgress(c *Campaign) Progress {
	total := len(DefinitionFor(c.Phase).Requirements)
	return Progress{
		Completed: total - len(MissingRequirements(c)),
		Total:     total,
	}
}

func requirementInPhase(phase Phase, requirementID string) bool {
	for _, req := range DefinitionFor(phase).Requirements {
		if req.ID == requirementID {
			return true
		}
	}
	return false
}
