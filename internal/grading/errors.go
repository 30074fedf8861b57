package grading

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRubric indicates a rubric violates one of its invariants.
	ErrInvalidRubric = errors.New("invalid rubric")
	// ErrUnknownScale indicates a score scale outside the closed set.
	ErrUnknownScale = errors.New("unknown score scale")
	// ErrMissingScaleDescription indicates a declared scale has no prompt description.
	ErrMissingScaleDescription = errors.New("missing descriptions for score scales")
	// ErrUnresolvedPlaceholder indicates a prompt placeholder was left without a value.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholders in grading prompt")

	// ErrMalformedReply indicates the model reply does not have the expected shape.
	ErrMalformedReply = errors.New("malformed grading reply")
	// ErrCriterionMismatch indicates the reply disagrees with the rubric.
	ErrCriterionMismatch = errors.New("criterion mismatch")

	ErrUnknownCriterion   = errors.New("criterion not found in rubric")
	ErrNameMismatch       = errors.New("criterion name mismatch")
	ErrScaleMismatch      = errors.New("criterion scale mismatch")
	ErrScoreType          = errors.New("score must be an integer")
	ErrScoreOutOfRange    = errors.New("score out of range")
	ErrJustificationType  = errors.New("justification must be a string")
	ErrDuplicateCriterion = errors.New("duplicate criterion")
	ErrMissingCriteria    = errors.New("missing evaluations for rubric criteria")
	ErrUnknownCriteria    = errors.New("evaluations found for unknown rubric criteria")
)

// ValidationError reports the rubric invariant that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid rubric: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rubric: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRubric
}

// UnresolvedPlaceholderError lists every placeholder without a value.
type UnresolvedPlaceholderError struct {
	Keys []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnresolvedPlaceholder, strings.Join(e.Keys, ", "))
}

func (e *UnresolvedPlaceholderError) Unwrap() error {
	return ErrUnresolvedPlaceholder
}

// ReplyFormatError describes a structural problem in the model reply.
type ReplyFormatError struct {
	Reason string
	Err    error
}

func (e *ReplyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedReply, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedReply, e.Reason)
}

func (e *ReplyFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedReply, e.Err}
	}
	return []error{ErrMalformedReply}
}

// CriterionMismatchError pins a reply disagreement to one criterion.
type CriterionMismatchError struct {
	CriterionID string
	Field       string
	Expected    string
	Actual      string
	Cause       error
}

func (e *CriterionMismatchError) Error() string {
	msg := fmt.Sprintf("%s for id %q", e.Cause, e.CriterionID)
	switch {
	case e.Expected != "" && e.Actual != "":
		msg += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Actual)
	case e.Actual != "":
		msg += ": got " + e.Actual
	}
	return msg
}

func (e *CriterionMismatchError) Unwrap() []error {
	return []error{ErrCriterionMismatch, e.Cause}
}

// CoverageError lists every rubric criterion the reply skipped or invented.
type CoverageError struct {
	Missing []string
	Extra   []string
}

func (e *CoverageError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", ErrMissingCriteria, strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", ErrUnknownCriteria, strings.Join(e.Extra, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (e *CoverageError) Unwrap() []error {
	errs := []error{ErrCriterionMismatch}
	if len(e.Missing) > 0 {
		errs = append(errs, ErrMissingCriteria)
	}
	if len(e.Extra) > 0 {
		errs = append(errs, ErrUnknownCriteria)
	}
	return errs
}
