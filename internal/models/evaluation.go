package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is a stored grading outcome for one LMS submission.
type Evaluation struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	RunID             string            `gorm:"size:36;index" json:"run_id"`
	TaskID            string            `gorm:"size:128;index;not null" json:"task_id"`
	SubmissionID      string            `gorm:"size:128;index;not null" json:"submission_id"`
	TraineeID         string            `gorm:"size:128" json:"trainee_id"`
	TraineeName       string            `gorm:"size:255" json:"trainee_name"`
	SolutionURL       string            `gorm:"type:text" json:"solution_url"`
	Downloader        string            `gorm:"size:64" json:"downloader"`
	Model             string            `gorm:"size:128" json:"model"`
	TotalScore        float64           `gorm:"not null" json:"total_score"`
	MaxScore          float64           `gorm:"not null" json:"max_score"`
	PassingScore      float64           `gorm:"not null" json:"passing_score"`
	Passed            bool              `json:"passed"`
	Intro             string            `gorm:"type:text" json:"intro"`
	OverallEvaluation string            `gorm:"type:text" json:"overall_evaluation"`
	OverallVerdict    string            `gorm:"size:255" json:"overall_verdict"`
	RawYAML           string            `gorm:"type:text" json:"raw_yaml"`
	RawReply          string            `gorm:"type:text" json:"raw_reply"`
	Rubric            datatypes.JSON    `json:"rubric"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	Criteria          []CriterionScore  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
	CreatedAt         time.Time         `json:"created_at"`
}

// CriterionScore is the per-criterion part of an Evaluation.
type CriterionScore struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	EvaluationID  uint    `gorm:"index;not null" json:"evaluation_id"`
	Position      int     `gorm:"not null" json:"position"`
	CriterionID   string  `gorm:"size:128;not null" json:"criterion_id"`
	Name          string  `gorm:"size:255" json:"name"`
	Scale         string  `gorm:"size:32" json:"scale"`
	Weight        float64 `json:"weight"`
	Score         int     `json:"score"`
	Justification string  `gorm:"type:text" json:"justification"`
}
