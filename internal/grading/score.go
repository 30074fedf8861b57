package grading

import (
	"fmt"
)

// ComputeTotalScore normalises each criterion score by its scale maximum,
// weights it, and maps the weighted mean onto the rubric's overall scale.
func ComputeTotalScore(evaluations []CriterionEvaluation, rubric Rubric) (float64, error) {
	totalWeight := rubric.TotalWeight()
	if totalWeight <= 0 {
		return 0, &ValidationError{Field: "criteria", Reason: "sum of weights must be positive"}
	}

	var weightedSum float64
	for _, ev := range evaluations {
		criterion, ok := rubric.Criterion(ev.ID)
		if !ok {
			return 0, &CriterionMismatchError{CriterionID: ev.ID, Field: "id", Cause: ErrUnknownCriterion}
		}
		bounds, ok := ev.Scale.Range()
		if !ok || bounds.Max <= 0 {
			return 0, fmt.Errorf("%w: %q for id %q", ErrUnknownScale, ev.Scale, ev.ID)
		}
		normalized := float64(ev.Score) / float64(bounds.Max)
		weightedSum += normalized * criterion.Weight
	}

	return weightedSum / totalWeight * rubric.OverallMaxScore, nil
}
