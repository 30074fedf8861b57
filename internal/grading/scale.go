package grading

import (
	"fmt"
	"strings"
)

// ScoreScale names the integer range a criterion is scored on.
type ScoreScale string

const (
	ScaleBinary     ScoreScale = "0-1"
	ScaleFive       ScoreScale = "0-5"
	ScaleTen        ScoreScale = "0-10"
	ScalePercentage ScoreScale = "percentage"
)

// ScaleRange is an inclusive integer score range.
type ScaleRange struct {
	Min int
	Max int
}

// Contains reports whether score lies inside the range.
func (r ScaleRange) Contains(score int) bool {
	return score >= r.Min && score <= r.Max
}

var scaleRanges = map[ScoreScale]ScaleRange{
	ScaleBinary:     {Min: 0, Max: 1},
	ScaleFive:       {Min: 0, Max: 5},
	ScaleTen:        {Min: 0, Max: 10},
	ScalePercentage: {Min: 0, Max: 100},
}

// ScoreScales returns the closed set of scales in prompt order.
func ScoreScales() []ScoreScale {
	return []ScoreScale{ScaleBinary, ScaleFive, ScaleTen, ScalePercentage}
}

// ParseScoreScale converts raw text into a known scale.
func ParseScoreScale(value string) (ScoreScale, error) {
	scale := ScoreScale(strings.TrimSpace(value))
	if !scale.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScale, value)
	}
	return scale, nil
}

// Valid reports whether the scale belongs to the closed set.
func (s ScoreScale) Valid() bool {
	_, ok := scaleRanges[s]
	return ok
}

// Range returns the inclusive numeric range of the scale.
func (s ScoreScale) Range() (ScaleRange, bool) {
	r, ok := scaleRanges[s]
	return r, ok
}

// Description is the usage line shown to the model. It is derived from the
// numeric range so the prompt and the validator agree.
func (s ScoreScale) Description() string {
	r, ok := scaleRanges[s]
	if !ok {
		return ""
	}
	if r.Max-r.Min == 1 {
		return fmt.Sprintf("use an integer score of %d or %d", r.Min, r.Max)
	}
	return fmt.Sprintf("use an integer score from %d to %d", r.Min, r.Max)
}

func (s ScoreScale) String() string {
	return string(s)
}

// ScaleDescriptions maps every known scale to its prompt description.
func ScaleDescriptions() map[ScoreScale]string {
	descriptions := make(map[ScoreScale]string, len(scaleRanges))
	for _, scale := range ScoreScales() {
		descriptions[scale] = scale.Description()
	}
	return descriptions
}
