package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uchokoro/KodeCamp-task-grader/pkg/ai"
)

// ErrModelUnavailable indicates the evaluator was built without a model.
var ErrModelUnavailable = errors.New("model unavailable")

// promptKeys are the values supplied at render time on top of the rubric defaults.
var promptKeys = []string{
	PlaceholderKnowledgeArea,
	PlaceholderCohortSpecifics,
	PlaceholderTrackName,
	PlaceholderAssignment,
	PlaceholderTraineeName,
	PlaceholderSubmission,
	PlaceholderAdditionalNotes,
}

// EvaluationRequest carries everything needed to grade one submission.
type EvaluationRequest struct {
	Rubric          Rubric
	Assignment      string
	Submission      string
	TraineeName     string
	KnowledgeArea   string
	CohortSpecifics string
	TrackName       string
	OtherNotes      string
}

// EvaluationResult is the validated, scored outcome for one submission.
type EvaluationResult struct {
	Intro             string                `json:"intro"`
	OverallEvaluation string                `json:"overall_evaluation"`
	OverallVerdict    string                `json:"overall_verdict"`
	Criteria          []CriterionEvaluation `json:"criteria"`
	TotalScore        float64               `json:"total_score"`
	Passed            bool                  `json:"passed"`
	RawYAML           string                `json:"raw_yaml"`
	RawReply          string                `json:"raw_reply"`
	Model             string                `json:"model"`
}

// Evaluator grades submissions against rubrics with a language model.
type Evaluator struct {
	model    ai.Model
	template string
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewEvaluator builds an evaluator around a model and a base prompt template.
func NewEvaluator(model ai.Model, template string, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		model:    model,
		template: template,
		logger:   logger.With().Str("component", "evaluator").Logger(),
		tracer:   otel.Tracer("github.com/uchokoro/KodeCamp-task-grader/internal/grading"),
	}
}

// RenderPrompt produces the final prompt for a request without calling the model.
func (e *Evaluator) RenderPrompt(req EvaluationRequest) (string, error) {
	builder, err := NewPromptBuilderFromRubric(e.template, req.Rubric, req.OtherNotes)
	if err != nil {
		return "", err
	}

	if missing := builder.ValidatePlaceholders(promptKeys); len(missing) > 0 {
		return "", &UnresolvedPlaceholderError{Keys: missing}
	}

	return builder.Build(map[string]string{
		PlaceholderKnowledgeArea:   req.KnowledgeArea,
		PlaceholderCohortSpecifics: req.CohortSpecifics,
		PlaceholderTrackName:       req.TrackName,
		PlaceholderAssignment:      req.Assignment,
		PlaceholderTraineeName:     req.TraineeName,
		PlaceholderSubmission:      req.Submission,
		PlaceholderAdditionalNotes: "",
	})
}

// Evaluate renders the prompt, calls the model once, and validates and scores
// the reply. Nothing is retried.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResult, error) {
	if e.model == nil {
		return EvaluationResult{}, ErrModelUnavailable
	}
	if err := req.Rubric.Validate(); err != nil {
		return EvaluationResult{}, err
	}

	prompt, err := e.RenderPrompt(req)
	if err != nil {
		return EvaluationResult{}, err
	}

	ctx, span := e.tracer.Start(ctx, "grading.evaluate", trace.WithAttributes(
		attribute.String("grading.task_id", req.Rubric.TaskID),
		attribute.String("ai.model", e.model.Name()),
		attribute.Int("ai.prompt_chars", len(prompt)),
	))
	defer span.End()

	completion, err := e.model.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, fmt.Errorf("generate grading reply: %w", err)
	}

	result, err := ScoreReply(completion.Content, req.Rubric)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn().Err(err).Str("task_id", req.Rubric.TaskID).Str("model", completion.Model).Msg("model reply rejected")
		return EvaluationResult{}, err
	}
	result.Model = completion.Model

	e.logger.Debug().
		Str("task_id", req.Rubric.TaskID).
		Float64("total_score", result.TotalScore).
		Bool("passed", result.Passed).
		Msg("submission evaluated")

	return result, nil
}

// ScoreReply runs extraction, shape validation, rubric cross-checks and
// scoring over raw model output.
func ScoreReply(rawReply string, rubric Rubric) (EvaluationResult, error) {
	yamlText := ExtractYAMLBlock(rawReply)

	reply, err := ParseGradingReply(yamlText)
	if err != nil {
		return EvaluationResult{}, err
	}

	evaluations, err := BuildCriterionEvaluations(reply, rubric)
	if err != nil {
		return EvaluationResult{}, err
	}

	total, err := ComputeTotalScore(evaluations, rubric)
	if err != nil {
		return EvaluationResult{}, err
	}

	return EvaluationResult{
		Intro:             reply.Intro,
		OverallEvaluation: reply.OverallEvaluation,
		OverallVerdict:    reply.OverallVerdict,
		Criteria:          evaluations,
		TotalScore:        total,
		Passed:            rubric.Passed(total),
		RawYAML:           yamlText,
		RawReply:          rawReply,
	}, nil
}
