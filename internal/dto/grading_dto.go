package dto

import (
	"encoding/json"
	"time"

	"github.com/uchokoro/KodeCamp-task-grader/internal/models"
)

// Submission outcome statuses reported by a grading run.
const (
	OutcomeGraded  = "graded"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// GradeTaskRequest starts a grading run over one LMS task.
type GradeTaskRequest struct {
	TaskID          string `json:"-" validate:"required,max=128"`
	Workspace       string `json:"workspace" validate:"required,max=128"`
	Category        string `json:"category" validate:"omitempty,oneof=all submitted graded"`
	Offset          int    `json:"offset" validate:"gte=0"`
	Limit           int    `json:"limit" validate:"gte=0,lte=500"`
	Assignment      string `json:"assignment"`
	KnowledgeArea   string `json:"knowledge_area" validate:"required"`
	CohortSpecifics string `json:"cohort_specifics"`
	TrackName       string `json:"track_name"`
	OtherNotes      string `json:"other_notes"`
	Force           bool   `json:"force"`
}

// SubmissionOutcome is the per-submission line of a grading report.
type SubmissionOutcome struct {
	SubmissionID string   `json:"submission_id"`
	TraineeName  string   `json:"trainee_name"`
	Status       string   `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	EvaluationID uint     `json:"evaluation_id,omitempty"`
	TotalScore   *float64 `json:"total_score,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`
}

// GradeTaskReport summarises a grading run.
type GradeTaskReport struct {
	RunID      string              `json:"run_id"`
	TaskID     string              `json:"task_id"`
	Workspace  string              `json:"workspace"`
	Graded     int                 `json:"graded"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Outcomes   []SubmissionOutcome `json:"outcomes"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Record appends an outcome and updates the counters.
func (r *GradeTaskReport) Record(outcome SubmissionOutcome) {
	switch outcome.Status {
	case OutcomeGraded:
		r.Graded++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, outcome)
}

// EvaluationListQuery holds query string filters for listing evaluations.
type EvaluationListQuery struct {
	SubmissionID string `query:"submission_id" validate:"omitempty,max=128"`
	PassedOnly   bool   `query:"passed_only"`
	Page         int    `query:"page" validate:"gte=0"`
	PageSize     int    `query:"page_size" validate:"gte=0,lte=100"`
}

// PaginationMeta describes a page of results.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
}

// CriterionScoreResponse serialises one criterion score.
type CriterionScoreResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Scale         string  `json:"score_scale"`
	Weight        float64 `json:"weight"`
	Score         int     `json:"score"`
	Justification string  `json:"justification"`
}

// EvaluationResponse is returned to API clients when viewing evaluations.
type EvaluationResponse struct {
	ID                uint                     `json:"id"`
	RunID             string                   `json:"run_id"`
	TaskID            string                   `json:"task_id"`
	SubmissionID      string                   `json:"submission_id"`
	TraineeID         string                   `json:"trainee_id"`
	TraineeName       string                   `json:"trainee_name"`
	SolutionURL       string                   `json:"solution_url"`
	Model             string                   `json:"model"`
	TotalScore        float64                  `json:"total_score"`
	MaxScore          float64                  `json:"max_score"`
	PassingScore      float64                  `json:"passing_score"`
	Passed            bool                     `json:"passed"`
	Intro             string                   `json:"intro"`
	OverallEvaluation string                   `json:"overall_evaluation"`
	OverallVerdict    string                   `json:"overall_verdict"`
	Criteria          []CriterionScoreResponse `json:"criteria"`
	Rubric            json.RawMessage          `json:"rubric,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

// NewEvaluationResponse maps a stored evaluation to its API shape.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	criteria := make([]CriterionScoreResponse, 0, len(model.Criteria))
	for _, c := range model.Criteria {
		criteria = append(criteria, CriterionScoreResponse{
			ID:            c.CriterionID,
			Name:          c.Name,
			Scale:         c.Scale,
			Weight:        c.Weight,
			Score:         c.Score,
			Justification: c.Justification,
		})
	}

	var rubric json.RawMessage
	if len(model.Rubric) > 0 {
		rubric = json.RawMessage(model.Rubric)
	}

	return EvaluationResponse{
		ID:                model.ID,
		RunID:             model.RunID,
		TaskID:            model.TaskID,
		SubmissionID:      model.SubmissionID,
		TraineeID:         model.TraineeID,
		TraineeName:       model.TraineeName,
		SolutionURL:       model.SolutionURL,
		Model:             model.Model,
		TotalScore:        model.TotalScore,
		MaxScore:          model.MaxScore,
		PassingScore:      model.PassingScore,
		Passed:            model.Passed,
		Intro:             model.Intro,
		OverallEvaluation: model.OverallEvaluation,
		OverallVerdict:    model.OverallVerdict,
		Criteria:          criteria,
		Rubric:            rubric,
		CreatedAt:         model.CreatedAt,
	}
}

// NewEvaluationResponses maps a slice of evaluations.
func NewEvaluationResponses(items []models.Evaluation) []EvaluationResponse {
	out := make([]EvaluationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewEvaluationResponse(item))
	}
	return out
}

// DownloaderResponse describes a registered submission downloader.
type DownloaderResponse struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// GradingCompletedEvent is published after an evaluation is stored.
type GradingCompletedEvent struct {
	RunID        string    `json:"run_id"`
	EvaluationID uint      `json:"evaluation_id"`
	TaskID       string    `json:"task_id"`
	SubmissionID string    `json:"submission_id"`
	TraineeID    string    `json:"trainee_id"`
	TotalScore   float64   `json:"total_score"`
	Passed       bool      `json:"passed"`
	Model        string    `json:"model"`
	GradedAt     time.Time `json:"graded_at"`
}
