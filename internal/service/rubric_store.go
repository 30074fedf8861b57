package service

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/uchokoro/KodeCamp-task-grader/internal/grading"
)

// ErrRubricNotFound indicates no rubric file exists for a task.
var ErrRubricNotFound = errors.New("rubric not found")

// RubricStore loads the rubric authored for a task.
type RubricStore interface {
	Load(taskID string) (grading.Rubric, error)
}

// NewFileRubricStore reads rubrics from "<dir>/<task_id>.yaml".
func NewFileRubricStore(dir string) RubricStore {
	return &fileRubricStore{dir: dir}
}

type fileRubricStore struct {
	dir string
}

func (s *fileRubricStore) Load(taskID string) (grading.Rubric, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || strings.HasPrefix(taskID, ".") {
		return grading.Rubric{}, fmt.Errorf("%w: invalid task id %q", ErrRubricNotFound, taskID)
	}

	rubric, err := grading.LoadRubric(grading.RubricPath(s.dir, taskID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return grading.Rubric{}, fmt.Errorf("%w: %s", ErrRubricNotFound, taskID)
		}
		return grading.Rubric{}, err
	}

	if !strings.EqualFold(rubric.TaskID, taskID) {
		return grading.Rubric{}, fmt.Errorf("%w: rubric file for %s declares task_id %s", grading.ErrInvalidRubric, taskID, rubric.TaskID)
	}

	return rubric, nil
}
