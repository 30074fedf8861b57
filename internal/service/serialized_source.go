package service

import (
	"context"
	"sync"

	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
)

// SerializeSource guards a session-holding LMS client so concurrent API
// requests take turns with it.
func SerializeSource(source TaskSubmissionSource) TaskSubmissionSource {
	return &serializedSource{source: source}
}

type serializedSource struct {
	mu     sync.Mutex
	source TaskSubmissionSource
}

func (s *serializedSource) TaskSubmissions(ctx context.Context, taskID, workspace string, category lms.Category, offset, limit int) ([]lms.SubmissionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.TaskSubmissions(ctx, taskID, workspace, category, offset, limit)
}

func (s *serializedSource) TaskWithSubmissions(ctx context.Context, taskID, workspace string) (lms.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.TaskWithSubmissions(ctx, taskID, workspace)
}
