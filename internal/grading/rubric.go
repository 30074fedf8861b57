package grading

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Criterion is one gradable dimension of a rubric.
type Criterion struct {
	ID          string     `yaml:"id" json:"id" validate:"required"`
	Name        string     `yaml:"name" json:"name" validate:"required"`
	Description string     `yaml:"description" json:"description"`
	Weight      float64    `yaml:"weight" json:"weight"`
	Scale       ScoreScale `yaml:"scale" json:"scale" validate:"required"`
}

// Rubric is the scoring specification for a task.
type Rubric struct {
	TaskID          string      `yaml:"task_id" json:"task_id" validate:"required"`
	Title           string      `yaml:"title" json:"title"`
	Description     string      `yaml:"description" json:"description"`
	OverallMaxScore float64     `yaml:"overall_max_score" json:"overall_max_score"`
	MinPassingScore float64     `yaml:"min_passing_score" json:"min_passing_score"`
	Criteria        []Criterion `yaml:"criteria" json:"criteria" validate:"dive"`
}

var rubricValidator = validator.New(validator.WithRequiredStructEnabled())

// NewRubric builds a rubric and checks its invariants.
func NewRubric(taskID, title, description string, overallMax, minPassing float64, criteria []Criterion) (Rubric, error) {
	rubric := Rubric{
		TaskID:          taskID,
		Title:           title,
		Description:     description,
		OverallMaxScore: overallMax,
		MinPassingScore: minPassing,
		Criteria:        append([]Criterion(nil), criteria...),
	}
	if err := rubric.Validate(); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}

// Validate checks the rubric invariants and returns a *ValidationError naming
// the first one that fails.
func (r Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return &ValidationError{Field: "criteria", Reason: "must be non-empty"}
	}
	if !isFinite(r.OverallMaxScore) {
		return &ValidationError{Field: "overall_max_score", Reason: "must be a finite number"}
	}
	if r.OverallMaxScore <= 0 {
		return &ValidationError{Field: "overall_max_score", Reason: "must be positive"}
	}
	if !isFinite(r.MinPassingScore) {
		return &ValidationError{Field: "min_passing_score", Reason: "must be a finite number"}
	}
	if r.MinPassingScore <= 0 {
		return &ValidationError{Field: "min_passing_score", Reason: "must be positive"}
	}
	if r.MinPassingScore > r.OverallMaxScore {
		return &ValidationError{Field: "min_passing_score", Reason: "must be less than or equal to overall_max_score"}
	}

	if err := rubricValidator.Struct(r); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return &ValidationError{Field: fe.Namespace(), Reason: fmt.Sprintf("failed %q check", fe.Tag())}
		}
		return &ValidationError{Reason: err.Error()}
	}

	seen := make(map[string]struct{}, len(r.Criteria))
	for i, c := range r.Criteria {
		field := fmt.Sprintf("criteria[%d]", i)
		if !isFinite(c.Weight) {
			return &ValidationError{Field: field + ".weight", Reason: fmt.Sprintf("must be a finite number (criterion %q)", c.ID)}
		}
		if c.Weight <= 0 {
			return &ValidationError{Field: field + ".weight", Reason: fmt.Sprintf("must be positive (criterion %q)", c.ID)}
		}
		if !c.Scale.Valid() {
			return &ValidationError{Field: field + ".scale", Reason: fmt.Sprintf("%s %q (criterion %q)", ErrUnknownScale, c.Scale, c.ID)}
		}
		key := strings.ToLower(c.ID)
		if _, dup := seen[key]; dup {
			return &ValidationError{Field: field + ".id", Reason: fmt.Sprintf("duplicates criterion %q", c.ID)}
		}
		seen[key] = struct{}{}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Criterion looks up a criterion by id, ignoring case.
func (r Rubric) Criterion(id string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return Criterion{}, false
}

// CriterionIDs returns the canonical ids in rubric order.
func (r Rubric) CriterionIDs() []string {
	ids := make([]string, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		ids = append(ids, c.ID)
	}
	return ids
}

// TotalWeight sums the relative weights of every criterion.
func (r Rubric) TotalWeight() float64 {
	var total float64
	for _, c := range r.Criteria {
		total += c.Weight
	}
	return total
}

// Passed reports whether score meets the passing threshold.
func (r Rubric) Passed(score float64) bool {
	return score >= r.MinPassingScore
}

// ParseRubric decodes a YAML rubric record and validates it.
func ParseRubric(data []byte) (Rubric, error) {
	var rubric Rubric
	if err := yaml.Unmarshal(data, &rubric); err != nil {
		return Rubric{}, fmt.Errorf("decode rubric: %w", err)
	}
	if err := rubric.Validate(); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}

// MarshalRubric encodes a rubric as YAML.
func MarshalRubric(rubric Rubric) ([]byte, error) {
	data, err := yaml.Marshal(rubric)
	if err != nil {
		return nil, fmt.Errorf("encode rubric: %w", err)
	}
	return data, nil
}

// LoadRubric reads a rubric record from disk.
func LoadRubric(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("read rubric %s: %w", path, err)
	}
	rubric, err := ParseRubric(data)
	if err != nil {
		return Rubric{}, fmt.Errorf("load rubric %s: %w", path, err)
	}
	return rubric, nil
}

// SaveRubric validates and writes a rubric record to disk.
func SaveRubric(path string, rubric Rubric) error {
	if err := rubric.Validate(); err != nil {
		return err
	}
	data, err := MarshalRubric(rubric)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create rubric dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rubric %s: %w", path, err)
	}
	return nil
}

// RubricPath is the conventional location of a task's rubric inside dir.
func RubricPath(dir, taskID string) string {
	return filepath.Join(dir, taskID+".yaml")
}
