package grading

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRubric() Rubric {
	return Rubric{
		TaskID:          "task-1",
		Title:           "Sample Rubric",
		Description:     "Evaluate how well the trainee designs a prompt template.",
		OverallMaxScore: 100,
		MinPassingScore: 60,
		Criteria: []Criterion{
			{ID: "clarity", Name: "Clarity of intent and scope", Description: "How clearly the evaluation intent and scope are stated.", Weight: 0.3, Scale: ScaleTen},
			{ID: "structure", Name: "Prompt structure", Description: "How well-structured and modular the prompt is.", Weight: 0.4, Scale: ScaleTen},
		},
	}
}

func TestScaleDescriptionsCoverEveryScale(t *testing.T) {
	descriptions := ScaleDescriptions()
	require.Len(t, descriptions, len(ScoreScales()))
	for _, scale := range ScoreScales() {
		require.NotEmpty(t, descriptions[scale], "scale %s", scale)
	}
}

func TestScaleDescriptionDerivedFromRange(t *testing.T) {
	require.Equal(t, "use an integer score of 0 or 1", ScaleBinary.Description())
	require.Equal(t, "use an integer score from 0 to 5", ScaleFive.Description())
	require.Equal(t, "use an integer score from 0 to 10", ScaleTen.Description())
	require.Equal(t, "use an integer score from 0 to 100", ScalePercentage.Description())
	require.Empty(t, ScoreScale("0-3").Description())

	r, ok := ScalePercentage.Range()
	require.True(t, ok)
	require.Equal(t, ScaleRange{Min: 0, Max: 100}, r)
}

func TestParseScoreScaleRejectsUnknown(t *testing.T) {
	scale, err := ParseScoreScale(" 0-5 ")
	require.NoError(t, err)
	require.Equal(t, ScaleFive, scale)

	_, err = ParseScoreScale("0-7")
	require.ErrorIs(t, err, ErrUnknownScale)
}

func TestNewRubricAcceptsValidScores(t *testing.T) {
	r := sampleRubric()
	rubric, err := NewRubric(r.TaskID, r.Title, r.Description, 100, 60, r.Criteria)
	require.NoError(t, err)
	require.Equal(t, 100.0, rubric.OverallMaxScore)
	require.Equal(t, 60.0, rubric.MinPassingScore)
	require.InDelta(t, 0.7, rubric.TotalWeight(), 1e-9)
}

func TestRubricValidateRejectsBrokenInvariants(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Rubric)
		want   string
	}{
		{"empty criteria", func(r *Rubric) { r.Criteria = nil }, "criteria must be non-empty"},
		{"zero passing score", func(r *Rubric) { r.MinPassingScore = 0 }, "min_passing_score must be positive"},
		{"passing above max", func(r *Rubric) { r.OverallMaxScore = 50 }, "less than or equal to overall_max_score"},
		{"non-positive weight", func(r *Rubric) { r.Criteria[0].Weight = 0 }, "criteria[0].weight must be positive"},
		{"unknown scale", func(r *Rubric) { r.Criteria[1].Scale = "0-3" }, "criteria[1].scale"},
		{"duplicate id", func(r *Rubric) { r.Criteria[1].ID = "CLARITY" }, "criteria[1].id duplicates"},
		{"missing name", func(r *Rubric) { r.Criteria[0].Name = "" }, "Name"},
		{"NaN max score", func(r *Rubric) { r.OverallMaxScore = math.NaN() }, "overall_max_score must be a finite number"},
		{"infinite max score", func(r *Rubric) { r.OverallMaxScore = math.Inf(1) }, "overall_max_score must be a finite number"},
		{"negative max score", func(r *Rubric) { r.OverallMaxScore = -10; r.MinPassingScore = -20 }, "overall_max_score must be positive"},
		{"NaN passing score", func(r *Rubric) { r.MinPassingScore = math.NaN() }, "min_passing_score must be a finite number"},
		{"NaN weight", func(r *Rubric) { r.Criteria[1].Weight = math.NaN() }, "criteria[1].weight must be a finite number"},
		{"infinite weight", func(r *Rubric) { r.Criteria[0].Weight = math.Inf(1) }, "criteria[0].weight must be a finite number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rubric := sampleRubric()
			tc.mutate(&rubric)

			err := rubric.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidRubric))

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRubricCriterionLookupIgnoresCase(t *testing.T) {
	rubric := sampleRubric()
	c, ok := rubric.Criterion("STRUCTURE")
	require.True(t, ok)
	require.Equal(t, "structure", c.ID)

	_, ok = rubric.Criterion("tone")
	require.False(t, ok)
	require.Equal(t, []string{"clarity", "structure"}, rubric.CriterionIDs())
	require.True(t, rubric.Passed(60))
	require.False(t, rubric.Passed(59.99))
}

func TestRubricFileRoundTripIsLossless(t *testing.T) {
	rubric := sampleRubric()
	path := RubricPath(filepath.Join(t.TempDir(), "rubrics"), rubric.TaskID)

	require.NoError(t, SaveRubric(path, rubric))

	loaded, err := LoadRubric(path)
	require.NoError(t, err)
	require.Equal(t, rubric, loaded)
}

func TestParseRubricValidatesRecord(t *testing.T) {
	_, err := ParseRubric([]byte(`
task_id: task-2
title: Broken
overall_max_score: 10
min_passing_score: 5
criteria: []
`))
	require.ErrorIs(t, err, ErrInvalidRubric)

	_, err = ParseRubric([]byte("task_id: [unterminated"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode rubric")
}

func TestParseRubricRejectsNonFiniteNumbers(t *testing.T) {
	const criterion = `
criteria:
  - {id: a, name: A, description: d, weight: %s, scale: "0-10"}
`
	cases := []struct {
		name   string
		record string
		want   string
	}{
		{"NaN weight", "task_id: t\ntitle: T\noverall_max_score: 100\nmin_passing_score: 60" + fmt.Sprintf(criterion, ".nan"), "criteria[0].weight"},
		{"NaN scores", "task_id: t\ntitle: T\noverall_max_score: .nan\nmin_passing_score: .nan" + fmt.Sprintf(criterion, "1"), "overall_max_score"},
		{"infinite max", "task_id: t\ntitle: T\noverall_max_score: .inf\nmin_passing_score: 60" + fmt.Sprintf(criterion, "1"), "overall_max_score"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRubric([]byte(tc.record))
			require.ErrorIs(t, err, ErrInvalidRubric)
			require.Contains(t, err.Error(), tc.want+" must be a finite number")
		})
	}
}

func TestSaveRubricRejectsInvalidRubric(t *testing.T) {
	rubric := sampleRubric()
	rubric.Criteria = nil
	err := SaveRubric(filepath.Join(t.TempDir(), "r.yaml"), rubric)
	require.ErrorIs(t, err, ErrInvalidRubric)
}
