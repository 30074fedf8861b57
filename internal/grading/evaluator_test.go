package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uchokoro/KodeCamp-task-grader/pkg/ai"
)

type stubModel struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Generate(_ context.Context, prompt string) (ai.Completion, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return ai.Completion{}, s.err
	}
	return ai.Completion{Content: s.reply, Model: "stub-1"}, nil
}

const evaluatorTemplate = `Expert in {knowledge_area} for {cohort_specifics} ({track_name}).
Assignment: {assignment}
Trainee: {trainee_name}
Submission:
{submission}
Rubric:
{rubric}
Scales: {score_scale_values}
{score_scale_ranges}
{other_enumerated_notes}`

func sampleRequest() EvaluationRequest {
	return EvaluationRequest{
		Rubric:          sampleRubric(),
		Assignment:      "Design a grading prompt.",
		Submission:      "My prompt {with braces}.",
		TraineeName:     "Ada Obi",
		KnowledgeArea:   "prompt engineering",
		CohortSpecifics: "Agentic AI Track, Nov 2025",
		TrackName:       "Agentic AI",
	}
}

func TestEvaluatorEvaluateScoresModelReply(t *testing.T) {
	model := &stubModel{reply: "Sure!\n```yaml\n" + validReply + "```"}
	evaluator := NewEvaluator(model, evaluatorTemplate, zerolog.Nop())

	result, err := evaluator.Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.InDelta(t, 68.571, result.TotalScore, 0.001)
	require.Equal(t, "stub-1", result.Model)
	require.Contains(t, result.RawReply, "Sure!")

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	require.Contains(t, prompt, "Expert in prompt engineering for Agentic AI Track, Nov 2025 (Agentic AI).")
	require.Contains(t, prompt, "My prompt {with braces}.")
	require.Contains(t, prompt, "[structure] Prompt structure")
	require.NotContains(t, prompt, "{other_enumerated_notes}")
}

func TestEvaluatorInjectsAdditionalNotes(t *testing.T) {
	model := &stubModel{reply: validReply}
	evaluator := NewEvaluator(model, evaluatorTemplate, zerolog.Nop())

	req := sampleRequest()
	req.OtherNotes = "11. Penalise missing examples."
	_, err := evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], "11. Penalise missing examples.")
}

func TestEvaluatorRejectsUnknownTemplatePlaceholders(t *testing.T) {
	model := &stubModel{reply: validReply}
	evaluator := NewEvaluator(model, evaluatorTemplate+"\n{knowlege_area}", zerolog.Nop())

	_, err := evaluator.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnresolvedPlaceholder)
	require.Contains(t, err.Error(), "knowlege_area")
	require.Empty(t, model.prompts, "model must not be called with an incomplete prompt")
}

func TestEvaluatorPropagatesModelAndReplyErrors(t *testing.T) {
	boom := errors.New("connection refused")
	evaluator := NewEvaluator(&stubModel{err: boom}, evaluatorTemplate, zerolog.Nop())
	_, err := evaluator.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, boom)

	evaluator = NewEvaluator(&stubModel{reply: "I cannot grade this."}, evaluatorTemplate, zerolog.Nop())
	_, err = evaluator.Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestEvaluatorRequiresModelAndValidRubric(t *testing.T) {
	_, err := NewEvaluator(nil, evaluatorTemplate, zerolog.Nop()).Evaluate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrModelUnavailable)

	req := sampleRequest()
	req.Rubric.MinPassingScore = 0
	_, err = NewEvaluator(&stubModel{reply: validReply}, evaluatorTemplate, zerolog.Nop()).Evaluate(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRubric)
}
