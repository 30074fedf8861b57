package lms

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingCredentials indicates the client was configured without a URL or account.
	ErrMissingCredentials = errors.New("lms credentials are incomplete")
	// ErrInvalidToken indicates the login response carried no usable token.
	ErrInvalidToken = errors.New("no valid access_token in login response")
	// ErrUnexpectedPayload indicates a response body of the wrong shape.
	ErrUnexpectedPayload = errors.New("unexpected lms payload")
	// ErrUnknownCategory indicates a submission category outside the closed set.
	ErrUnknownCategory = errors.New("unknown submission category")
)

// APIError carries a non-success LMS response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d.\nResponse text:\n%s", e.Op, e.StatusCode, e.Body)
}

// Category filters submissions by status.
type Category string

const (
	CategoryAll       Category = "all"
	CategorySubmitted Category = "submitted"
	CategoryGraded    Category = "graded"
)

// ParseCategory maps user input onto a Category. Empty input means all.
func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategorySubmitted, CategoryGraded:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, raw)
	}
}

// Includes reports whether a submission with the given status belongs to c.
func (c Category) Includes(status string) bool {
	return c == CategoryAll || c == "" || string(c) == status
}

// SubmissionMeta is a read-only snapshot of one LMS submission.
type SubmissionMeta struct {
	TaskID         string   `json:"task_id"`
	SubmissionID   string   `json:"submission_id"`
	TraineeID      string   `json:"trainee_id"`
	TraineeName    string   `json:"trainee_name"`
	SubmissionDate string   `json:"submission_date"`
	DueDate        string   `json:"due_date"`
	SolutionURLs   []string `json:"solution_urls"`
	Status         string   `json:"submission_status"`
	Score          float64  `json:"score"`
}

// Token is the bearer token issued at login.
type Token struct {
	Value      string    `json:"token_string"`
	RawExpires string    `json:"token_expires"`
	Expires    time.Time `json:"-"`
}

// Task is a task record as returned by the LMS. Its schema is owned by the
// LMS, so fields are read through accessors.
type Task map[string]any

// String returns the first non-empty string value among keys.
func (t Task) String(keys ...string) string {
	for _, key := range keys {
		if v, ok := t[key]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// ID returns the task identifier.
func (t Task) ID() string {
	return t.String("id", "task_id")
}

// Title returns the task title.
func (t Task) Title() string {
	return t.String("title", "name")
}

// Description returns the task brief used as the assignment text.
func (t Task) Description() string {
	return t.String("description", "instructions", "body")
}

// Submissions returns the nested submissions list.
func (t Task) Submissions() []any {
	list, _ := t["submissions"].([]any)
	return list
}
