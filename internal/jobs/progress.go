package jobs

// ApplyTransition records a step transition on the record and recomputes the
// derived percent. Callers must hold the store's exclusive lock (use it via
// Store.Mutate).
//
// Steps are reported in increasing order by convention, but the transition is
// clamped both ways so skipped or out-of-order reports cannot corrupt the
// record: every earlier step still pending or active is closed as done, and
// any later step marked active is reset to pending. Applying the same
// transition twice yields an identical record.
func ApplyTransition(rec *Record, stepID int, state StepState) {
	for i := range rec.Steps {
		step := &rec.Steps[i]
		switch {
		case step.ID < stepID:
			if step.State == StepPending || step.State == StepActive {
				step.State = StepDone
			}
		case step.ID == stepID:
			step.State = state
		case step.State == StepActive:
			step.State = StepPending
		}
	}

	rec.CurrentStepID = stepID
	rec.Percent = percentFor(len(rec.Steps), stepID, state)
}

// percentFor derives the progress percent from the latest reported step.
// While a step is merely reached, percent reflects its position among the
// steps; once a step is done, percent credits its full completion. Only the
// final step reported done yields exactly 100.
func percentFor(total, stepID int, state StepState) int {
	if total == 0 {
		return 0
	}

	maxIndex := total - 1
	percent := 100
	if maxIndex > 0 {
		progressIndex := min(stepID-1, maxIndex)
		percent = progressIndex * 100 / maxIndex
	}
	if state == StepDone {
		percent = min(stepID, total) * 100 / total
	}

	return max(0, min(percent, 100))
}
