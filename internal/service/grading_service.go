package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/uchokoro/KodeCamp-task-grader/internal/dto"
	"github.com/uchokoro/KodeCamp-task-grader/internal/grading"
	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
	"github.com/uchokoro/KodeCamp-task-grader/internal/models"
	"github.com/uchokoro/KodeCamp-task-grader/internal/observability"
	"github.com/uchokoro/KodeCamp-task-grader/internal/repository"
)

var (
	// ErrNoSolutionURL indicates a submission without any solution link.
	ErrNoSolutionURL = errors.New("submission has no solution url")
	// ErrAlreadyGraded indicates a stored evaluation exists and force was not set.
	ErrAlreadyGraded = errors.New("submission already graded")
	// ErrEmptySubmission indicates the downloaded document had no text.
	ErrEmptySubmission = errors.New("submission document is empty")
	// ErrTaskIDRequired indicates an empty task id on a lookup.
	ErrTaskIDRequired = errors.New("task id is required")
	// ErrEvaluationNotFound indicates the requested evaluation does not exist.
	ErrEvaluationNotFound = repository.ErrEvaluationNotFound
)

// TaskSubmissionSource lists LMS submissions and task records.
type TaskSubmissionSource interface {
	TaskSubmissions(ctx context.Context, taskID, workspace string, category lms.Category, offset, limit int) ([]lms.SubmissionMeta, error)
	TaskWithSubmissions(ctx context.Context, taskID, workspace string) (lms.Task, error)
}

// SubmissionEvaluator grades one submission against a rubric.
type SubmissionEvaluator interface {
	Evaluate(ctx context.Context, req grading.EvaluationRequest) (grading.EvaluationResult, error)
}

// EventPublisher publishes grading events. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// GradingService orchestrates grading runs over LMS tasks.
type GradingService interface {
	GradeTask(ctx context.Context, req dto.GradeTaskRequest) (dto.GradeTaskReport, error)
	GradeSubmission(ctx context.Context, req dto.GradeTaskRequest, submission lms.SubmissionMeta) (dto.EvaluationResponse, error)
	ListEvaluations(ctx context.Context, taskID string, query dto.EvaluationListQuery) ([]dto.EvaluationResponse, dto.PaginationMeta, error)
	GetEvaluation(ctx context.Context, id uint) (dto.EvaluationResponse, error)
}

type gradingService struct {
	source    TaskSubmissionSource
	rubrics   RubricStore
	texts     SubmissionTextSource
	evaluator SubmissionEvaluator
	repo      repository.EvaluationRepository
	publisher EventPublisher
	subject   string
	validate  *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewGradingService wires the grading pipeline. publisher may be nil.
func NewGradingService(
	source TaskSubmissionSource,
	rubrics RubricStore,
	texts SubmissionTextSource,
	evaluator SubmissionEvaluator,
	repo repository.EvaluationRepository,
	publisher EventPublisher,
	subject string,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &gradingService{
		source:    source,
		rubrics:   rubrics,
		texts:     texts,
		evaluator: evaluator,
		repo:      repo,
		publisher: publisher,
		subject:   strings.TrimSpace(subject),
		validate:  validate,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		tracer:    otel.Tracer("github.com/uchokoro/KodeCamp-task-grader/internal/service/grading"),
		now:       time.Now,
	}
}

// GradeTask grades every listed submission of a task in order. Failures on a
// single submission are recorded on the report; listing failures abort.
func (s *gradingService) GradeTask(ctx context.Context, req dto.GradeTaskRequest) (dto.GradeTaskReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.GradeTaskReport{}, err
	}

	category, err := lms.ParseCategory(req.Category)
	if err != nil {
		return dto.GradeTaskReport{}, err
	}

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "grading.grade_task", trace.WithAttributes(
		attribute.String("grading.task_id", req.TaskID),
		attribute.String("grading.workspace", req.Workspace),
		attribute.String("grading.run_id", runID),
	))
	defer span.End()

	rubric, err := s.rubrics.Load(req.TaskID)
	if err != nil {
		return dto.GradeTaskReport{}, s.failRun(span, fmt.Errorf("load rubric: %w", err))
	}

	submissions, err := s.source.TaskSubmissions(ctx, req.TaskID, req.Workspace, category, req.Offset, req.Limit)
	if err != nil {
		return dto.GradeTaskReport{}, s.failRun(span, fmt.Errorf("list submissions: %w", err))
	}

	req.Assignment = s.assignmentText(ctx, req, rubric)

	report := dto.GradeTaskReport{
		RunID:     runID,
		TaskID:    req.TaskID,
		Workspace: req.Workspace,
		Outcomes:  make([]dto.SubmissionOutcome, 0, len(submissions)),
		StartedAt: s.now().UTC(),
	}

	for _, submission := range submissions {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.now().UTC()
			return report, s.failRun(span, err)
		}

		report.Record(s.gradeOne(ctx, runID, req, rubric, submission))
	}

	report.FinishedAt = s.now().UTC()
	span.SetAttributes(
		attribute.Int("grading.graded", report.Graded),
		attribute.Int("grading.skipped", report.Skipped),
		attribute.Int("grading.failed", report.Failed),
	)
	observability.GradingRuns().WithLabelValues("completed").Inc()

	s.logger.Info().
		Str("run_id", runID).
		Str("task_id", req.TaskID).
		Int("graded", report.Graded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("grading run finished")

	return report, nil
}

// GradeSubmission grades one submission outside of a task run.
func (s *gradingService) GradeSubmission(ctx context.Context, req dto.GradeTaskRequest, submission lms.SubmissionMeta) (dto.EvaluationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	rubric, err := s.rubrics.Load(req.TaskID)
	if err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("load rubric: %w", err)
	}
	req.Assignment = s.assignmentText(ctx, req, rubric)

	evaluation, err := s.evaluateAndStore(ctx, uuid.NewString(), req, rubric, submission)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *gradingService) ListEvaluations(ctx context.Context, taskID string, query dto.EvaluationListQuery) ([]dto.EvaluationResponse, dto.PaginationMeta, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, dto.PaginationMeta{}, ErrTaskIDRequired
	}
	if err := s.validate.Struct(query); err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	filter := repository.EvaluationFilter{
		SubmissionID: query.SubmissionID,
		PassedOnly:   query.PassedOnly,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	items, total, err := s.repo.ListByTask(ctx, taskID, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return dto.NewEvaluationResponses(items), dto.PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total}, nil
}

func (s *gradingService) GetEvaluation(ctx context.Context, id uint) (dto.EvaluationResponse, error) {
	evaluation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *gradingService) gradeOne(ctx context.Context, runID string, req dto.GradeTaskRequest, rubric grading.Rubric, submission lms.SubmissionMeta) dto.SubmissionOutcome {
	outcome := dto.SubmissionOutcome{
		SubmissionID: submission.SubmissionID,
		TraineeName:  submission.TraineeName,
	}

	evaluation, err := s.evaluateAndStore(ctx, runID, req, rubric, submission)
	switch {
	case errors.Is(err, ErrNoSolutionURL), errors.Is(err, ErrAlreadyGraded):
		outcome.Status = dto.OutcomeSkipped
		outcome.Reason = err.Error()
	case err != nil:
		outcome.Status = dto.OutcomeFailed
		outcome.Reason = err.Error()
		s.logger.Warn().Err(err).Str("run_id", runID).Str("submission_id", submission.SubmissionID).Msg("submission grading failed")
	default:
		outcome.Status = dto.OutcomeGraded
		outcome.EvaluationID = evaluation.ID
		outcome.TotalScore = &evaluation.TotalScore
		outcome.Passed = &evaluation.Passed
	}

	observability.GradingSubmissions().WithLabelValues(outcome.Status).Inc()
	return outcome
}

func (s *gradingService) evaluateAndStore(ctx context.Context, runID string, req dto.GradeTaskRequest, rubric grading.Rubric, submission lms.SubmissionMeta) (models.Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade_submission", trace.WithAttributes(
		attribute.String("grading.task_id", req.TaskID),
		attribute.String("grading.submission_id", submission.SubmissionID),
	))
	defer span.End()

	start := s.now()

	if len(submission.SolutionURLs) == 0 || strings.TrimSpace(submission.SolutionURLs[0]) == "" {
		return models.Evaluation{}, ErrNoSolutionURL
	}

	if !req.Force {
		_, err := s.repo.LatestForSubmission(ctx, req.TaskID, submission.SubmissionID)
		switch {
		case err == nil:
			return models.Evaluation{}, ErrAlreadyGraded
		case !errors.Is(err, repository.ErrEvaluationNotFound):
			return models.Evaluation{}, recordSpanError(span, err)
		}
	}

	sourceURL := strings.TrimSpace(submission.SolutionURLs[0])
	text, err := s.texts.Fetch(ctx, sourceURL, req.TaskID, submission.SubmissionID)
	if err != nil {
		return models.Evaluation{}, recordSpanError(span, err)
	}
	if strings.TrimSpace(text.Text) == "" {
		return models.Evaluation{}, recordSpanError(span, ErrEmptySubmission)
	}

	result, err := s.evaluator.Evaluate(ctx, grading.EvaluationRequest{
		Rubric:          rubric,
		Assignment:      req.Assignment,
		Submission:      text.Text,
		TraineeName:     submission.TraineeName,
		KnowledgeArea:   req.KnowledgeArea,
		CohortSpecifics: req.CohortSpecifics,
		TrackName:       req.TrackName,
		OtherNotes:      req.OtherNotes,
	})
	if err != nil {
		return models.Evaluation{}, recordSpanError(span, err)
	}

	evaluation, err := newEvaluationModel(runID, req, rubric, submission, sourceURL, text.Downloader, result)
	if err != nil {
		return models.Evaluation{}, recordSpanError(span, err)
	}
	if err := s.repo.Create(ctx, &evaluation); err != nil {
		return models.Evaluation{}, recordSpanError(span, fmt.Errorf("store evaluation: %w", err))
	}

	if rubric.OverallMaxScore > 0 {
		observability.GradingScores().Observe(result.TotalScore / rubric.OverallMaxScore * 100)
	}
	observability.GradingSubmissionDuration().Observe(s.now().Sub(start).Seconds())

	if err := s.publishCompleted(evaluation); err != nil {
		s.logger.Warn().Err(err).Uint("evaluation_id", evaluation.ID).Msg("failed to publish grading event")
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("submission_id", submission.SubmissionID).
		Float64("total_score", evaluation.TotalScore).
		Bool("passed", evaluation.Passed).
		Msg("submission graded")

	return evaluation, nil
}

// assignmentText prefers the request, then the LMS task brief, then the
// rubric description.
func (s *gradingService) assignmentText(ctx context.Context, req dto.GradeTaskRequest, rubric grading.Rubric) string {
	if text := strings.TrimSpace(req.Assignment); text != "" {
		return text
	}

	task, err := s.source.TaskWithSubmissions(ctx, req.TaskID, req.Workspace)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", req.TaskID).Msg("task brief unavailable, using rubric description")
		return rubric.Description
	}

	if text := task.Description(); text != "" {
		return text
	}
	return rubric.Description
}

func (s *gradingService) publishCompleted(evaluation models.Evaluation) error {
	if s.publisher == nil || s.subject == "" {
		return nil
	}

	payload, err := json.Marshal(dto.GradingCompletedEvent{
		RunID:        evaluation.RunID,
		EvaluationID: evaluation.ID,
		TaskID:       evaluation.TaskID,
		SubmissionID: evaluation.SubmissionID,
		TraineeID:    evaluation.TraineeID,
		TotalScore:   evaluation.TotalScore,
		Passed:       evaluation.Passed,
		Model:        evaluation.Model,
		GradedAt:     evaluation.CreatedAt,
	})
	if err != nil {
		return err
	}

	return s.publisher.Publish(s.subject, payload)
}

func (s *gradingService) failRun(span trace.Span, err error) error {
	observability.GradingRuns().WithLabelValues("failed").Inc()
	return recordSpanError(span, err)
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func newEvaluationModel(runID string, req dto.GradeTaskRequest, rubric grading.Rubric, submission lms.SubmissionMeta, sourceURL, downloader string, result grading.EvaluationResult) (models.Evaluation, error) {
	criteria := make([]models.CriterionScore, 0, len(result.Criteria))
	for i, c := range result.Criteria {
		var weight float64
		if criterion, ok := rubric.Criterion(c.ID); ok {
			weight = criterion.Weight
		}
		criteria = append(criteria, models.CriterionScore{
			Position:      i,
			CriterionID:   c.ID,
			Name:          c.Name,
			Scale:         string(c.Scale),
			Weight:        weight,
			Score:         c.Score,
			Justification: c.Justification,
		})
	}

	rubricJSON, err := json.Marshal(rubric)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("encode rubric snapshot: %w", err)
	}

	return models.Evaluation{
		RunID:             runID,
		TaskID:            req.TaskID,
		SubmissionID:      submission.SubmissionID,
		TraineeID:         submission.TraineeID,
		TraineeName:       submission.TraineeName,
		SolutionURL:       sourceURL,
		Downloader:        downloader,
		Model:             result.Model,
		TotalScore:        result.TotalScore,
		MaxScore:          rubric.OverallMaxScore,
		PassingScore:      rubric.MinPassingScore,
		Passed:            result.Passed,
		Intro:             result.Intro,
		OverallEvaluation: result.OverallEvaluation,
		OverallVerdict:    result.OverallVerdict,
		RawYAML:           result.RawYAML,
		RawReply:          result.RawReply,
		Rubric:            datatypes.JSON(rubricJSON),
		Metadata: datatypes.JSONMap{
			"knowledge_area":   req.KnowledgeArea,
			"cohort_specifics": req.CohortSpecifics,
			"track_name":       req.TrackName,
			"submission_date":  submission.SubmissionDate,
			"due_date":         submission.DueDate,
			"lms_status":       submission.Status,
		},
		Criteria: criteria,
	}, nil
}
