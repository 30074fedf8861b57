package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uchokoro/KodeCamp-task-grader/internal/models"
)

func setupEvaluationDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Evaluation{}, &models.CriterionScore{}))
	return db
}

func sampleEvaluation(taskID, submissionID string, score float64, passed bool, createdAt time.Time) *models.Evaluation {
	return &models.Evaluation{
		TaskID:       taskID,
		SubmissionID: submissionID,
		TraineeName:  "Adaobi Ezelioha",
		TotalScore:   score,
		MaxScore:     100,
		PassingScore: 60,
		Passed:       passed,
		CreatedAt:    createdAt,
		Rubric:       []byte(`{"task_id":"` + taskID + `"}`),
		Metadata:     map[string]any{"knowledge_area": "prompt engineering"},
		Criteria: []models.CriterionScore{
			{Position: 1, CriterionID: "structure", Name: "Prompt structure", Scale: "0-10", Weight: 0.4, Score: 6},
			{Position: 0, CriterionID: "clarity", Name: "Clarity", Scale: "0-10", Weight: 0.3, Score: 8},
		},
	}
}

func TestEvaluationRepositoryCreateAndGet(t *testing.T) {
	db := setupEvaluationDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	evaluation := sampleEvaluation("task-1", "7", 68.57, true, time.Now())
	require.NoError(t, repo.Create(ctx, evaluation))
	require.NotZero(t, evaluation.ID)

	stored, err := repo.GetByID(ctx, evaluation.ID)
	require.NoError(t, err)
	require.Equal(t, "task-1", stored.TaskID)
	require.Equal(t, "prompt engineering", stored.Metadata["knowledge_area"])
	require.Len(t, stored.Criteria, 2)
	require.Equal(t, "clarity", stored.Criteria[0].CriterionID, "criteria ordered by position")
	require.Equal(t, "structure", stored.Criteria[1].CriterionID)

	_, err = repo.GetByID(ctx, evaluation.ID+100)
	require.ErrorIs(t, err, ErrEvaluationNotFound)
}

func TestEvaluationRepositoryListByTask(t *testing.T) {
	db := setupEvaluationDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-1", "7", 70, true, base)))
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-1", "8", 40, false, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-1", "9", 90, true, base.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-2", "7", 90, true, base)))

	items, total, err := repo.ListByTask(ctx, "task-1", EvaluationFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, "9", items[0].SubmissionID, "newest first")
	require.Len(t, items[0].Criteria, 2)

	passed, total, err := repo.ListByTask(ctx, "task-1", EvaluationFilter{PassedOnly: true, PageSize: 1, Page: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, passed, 1)
	require.Equal(t, "7", passed[0].SubmissionID)

	bySubmission, total, err := repo.ListByTask(ctx, "task-1", EvaluationFilter{SubmissionID: "8"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.False(t, bySubmission[0].Passed)
}

func TestEvaluationRepositoryLatestForSubmission(t *testing.T) {
	db := setupEvaluationDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-1", "7", 40, false, base)))
	require.NoError(t, repo.Create(ctx, sampleEvaluation("task-1", "7", 75, true, base.Add(time.Minute))))

	latest, err := repo.LatestForSubmission(ctx, "task-1", "7")
	require.NoError(t, err)
	require.Equal(t, 75.0, latest.TotalScore)

	_, err = repo.LatestForSubmission(ctx, "task-1", "404")
	require.ErrorIs(t, err, ErrEvaluationNotFound)
}
