package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uchokoro/KodeCamp-task-grader/internal/models"
)

// ErrEvaluationNotFound indicates no stored evaluation matched.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// EvaluationFilter narrows ListByTask results.
type EvaluationFilter struct {
	SubmissionID string
	PassedOnly   bool
	Page         int
	PageSize     int
}

// EvaluationRepository persists grading outcomes.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	ListByTask(ctx context.Context, taskID string, filter EvaluationFilter) ([]models.Evaluation, int64, error)
	LatestForSubmission(ctx context.Context, taskID, submissionID string) (models.Evaluation, error)
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderByPosition).
		First(&evaluation, id).Error
	if err != nil {
		return models.Evaluation{}, mapNotFound(err)
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListByTask(ctx context.Context, taskID string, filter EvaluationFilter) ([]models.Evaluation, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Evaluation{}).Where("task_id = ?", taskID)
	if filter.SubmissionID != "" {
		query = query.Where("submission_id = ?", filter.SubmissionID)
	}
	if filter.PassedOnly {
		query = query.Where("passed = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var evaluations []models.Evaluation
	err := query.
		Preload("Criteria", orderByPosition).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&evaluations).Error
	if err != nil {
		return nil, 0, err
	}

	return evaluations, total, nil
}

func (r *evaluationRepository) LatestForSubmission(ctx context.Context, taskID, submissionID string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderByPosition).
		Where("task_id = ? AND submission_id = ?", taskID, submissionID).
		Order("created_at DESC").
		Order("id DESC").
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, mapNotFound(err)
	}
	return evaluation, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEvaluationNotFound
	}
	return err
}
