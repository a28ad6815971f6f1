package caseflow

import (
	"fmt"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

var stage = map[models.CaseStatus]int{
	models.StatusIntake:           0,
	models.StatusRiskClassified:   1,
	models.StatusFollowupSent:     2,
	models.StatusResponseReceived: 3,
	models.StatusReadyForReview:   4,
	models.StatusClosed:           5,
}

// CanTransition reports whether moving from one status to another goes
// forward along the lifecycle. Re-entering the current status is not a
// transition. closed is terminal.
func CanTransition(from, to models.CaseStatus) bool {
	fromStage, ok := stage[from]
	if !ok {
		return false
	}
	toStage, ok := stage[to]
	if !ok {
		return false
	}
	return toStage > fromStage
}

// CanRestartNarrative reports whether a case still accepts a new narrative.
// Once follow-up has gone out the reporter's answers refer to the old one.
func CanRestartNarrative(status models.CaseStatus) bool {
	st, ok := stage[status]
	return ok && st <= stage[models.StatusRiskClassified]
}

// CheckTransition is CanTransition as an error for call sites.
func CheckTransition(from, to models.CaseStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateResponses rejects answers addressed to fields that neither the
// extraction record nor the posed questions know about.
func ValidateResponses(responses []models.ReporterResponse, posed []models.FollowUpQuestion) error {
	asked := make(map[string]struct{}, len(posed))
	for _, q := range posed {
		asked[q.Field] = struct{}{}
	}
	for _, r := range responses {
		if models.IsKnownField(r.Field) {
			continue
		}
		if _, ok := asked[r.Field]; ok {
			continue
		}
		return fmt.Errorf("unknown response field %q", r.Field)
	}
	return nil
}
