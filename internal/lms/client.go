package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
)

const defaultPageLimit = 100

// expiryLayouts are tried in order after RFC 3339. Timestamps without a zone
// are read in local time.
var expiryLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Client talks to the LMS REST API. It owns the session token and is not
// safe for concurrent use.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time

	token      *Token
	authHeader string
}

// NewClient constructs an unauthenticated client.
func NewClient(baseURL, email, password string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	var missing []string
	if strings.TrimSpace(baseURL) == "" {
		missing = append(missing, "LMS_BASE_URL")
	}
	if email == "" {
		missing = append(missing, "LMS_EMAIL")
	}
	if password == "" {
		missing = append(missing, "LMS_PASSWORD")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		email:      email,
		password:   password,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "lms_client").Logger(),
		now:        time.Now,
	}, nil
}

// NewClientFromConfig builds a client from loaded configuration.
func NewClientFromConfig(cfg config.LMSConfig, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	return NewClient(cfg.BaseURL, cfg.Email, cfg.Password, httpClient, logger)
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Email returns the account the client logs in as.
func (c *Client) Email() string {
	return c.email
}

// Token returns a copy of the current token.
func (c *Client) Token() (Token, bool) {
	if c.token == nil {
		return Token{}, false
	}
	return *c.token, true
}

// Authenticated reports whether a token and Authorization header are held.
func (c *Client) Authenticated() bool {
	return c.token != nil && c.authHeader != ""
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Expires     string `json:"expires"`
}

// Login exchanges the account credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.email},
		"password":   {c.password},
	}

	resp, err := c.do(ctx, http.MethodPost, "/login", nil, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus("login", resp); err != nil {
		return err
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if payload.AccessToken == "" || payload.Expires == "" {
		return ErrInvalidToken
	}

	expires, err := parseExpiry(payload.Expires)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !expires.After(c.now()) {
		return fmt.Errorf("%w: token expired at %s", ErrInvalidToken, payload.Expires)
	}

	c.token = &Token{Value: payload.AccessToken, RawExpires: payload.Expires, Expires: expires}
	c.authHeader = "Bearer " + payload.AccessToken

	c.logger.Debug().Time("expires", expires).Msg("lms login succeeded")

	return nil
}

// IsTokenValid asks the LMS whether the held token still belongs to the
// configured account. Every failure yields false.
func (c *Client) IsTokenValid(ctx context.Context) bool {
	if !c.Authenticated() {
		return false
	}

	resp, err := c.do(ctx, http.MethodPost, "/test-access-token", nil, nil, "")
	if err != nil {
		c.logger.Debug().Err(err).Msg("token check failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().Int("status", resp.StatusCode).Msg("token rejected")
		return false
	}

	var identity struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		c.logger.Debug().Err(err).Msg("token check returned undecodable body")
		return false
	}

	if identity.Email != c.email {
		c.logger.Debug().Str("email", identity.Email).Msg("token belongs to another account")
		return false
	}

	return true
}

// Logout ends the remote session. Failures are logged, never returned, and
// the local token is cleared either way.
func (c *Client) Logout(ctx context.Context) {
	defer c.clearSession()

	resp, err := c.do(ctx, http.MethodDelete, "/logout", nil, nil, "")
	if err != nil {
		c.logger.Warn().Err(err).Msg("logout failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("logout failed")
	}
}

func (c *Client) clearSession() {
	c.token = nil
	c.authHeader = ""
}

// ensureSession logs in when the held token is missing or rejected.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.IsTokenValid(ctx) {
		return nil
	}
	return c.Login(ctx)
}

// TaskSubmissions lists one page of workspace submissions for a task joined
// with their trainee profiles, keeping those in category.
func (c *Client) TaskSubmissions(ctx context.Context, taskID, workspace string, category Category, offset, limit int) ([]SubmissionMeta, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := c.getJSON(ctx, "task submissions", "/"+url.PathEscape(workspace)+"/submissions", pageQuery(offset, limit), &payload); err != nil {
		return nil, err
	}

	if payload == nil {
		return nil, fmt.Errorf("%w: could not retrieve the expected task submissions data", ErrUnexpectedPayload)
	}

	rawSubmissions, subsOK := payload["submissions"].([]any)
	rawStudents, studentsOK := payload["students"].([]any)
	if !subsOK || !studentsOK {
		return nil, fmt.Errorf("%w: submissions and students must both be lists", ErrUnexpectedPayload)
	}

	profiles, err := indexProfiles(rawStudents)
	if err != nil {
		return nil, err
	}

	submissions := make([]SubmissionMeta, 0, len(rawSubmissions))
	for i, raw := range rawSubmissions {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: submissions[%d] is not an object", ErrUnexpectedPayload, i)
		}

		if owner := submissionTaskID(item); owner != "" && owner != taskID {
			continue
		}

		meta, err := buildSubmission(taskID, item, profiles)
		if err != nil {
			return nil, fmt.Errorf("submissions[%d]: %w", i, err)
		}

		if category.Includes(meta.Status) {
			submissions = append(submissions, meta)
		}
	}

	c.logger.Debug().
		Str("task_id", taskID).
		Str("workspace", workspace).
		Str("category", string(category)).
		Int("count", len(submissions)).
		Msg("task submissions listed")

	return submissions, nil
}

// TaskWithSubmissions fetches a task record including its submissions.
func (c *Client) TaskWithSubmissions(ctx context.Context, taskID, workspace string) (Task, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var payload any
	path := "/" + url.PathEscape(workspace) + "/tasks/" + url.PathEscape(taskID)
	if err := c.getJSON(ctx, "task retrieval", path, nil, &payload); err != nil {
		return nil, err
	}

	task, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: could not retrieve the expected task data", ErrUnexpectedPayload)
	}

	if subs, ok := task["submissions"].([]any); !ok || len(subs) == 0 {
		return nil, fmt.Errorf("%w: task %s has no submissions list", ErrUnexpectedPayload, taskID)
	}

	return Task(task), nil
}

// TasksWithSubmissions lists one page of workspace tasks.
func (c *Client) TasksWithSubmissions(ctx context.Context, workspace string, offset, limit int) ([]Task, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var payload any
	if err := c.getJSON(ctx, "tasks retrieval", "/"+url.PathEscape(workspace)+"/tasks", pageQuery(offset, limit), &payload); err != nil {
		return nil, err
	}

	body, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: could not retrieve the expected tasks data", ErrUnexpectedPayload)
	}

	rawTasks, ok := body["tasks"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: tasks must be a list", ErrUnexpectedPayload)
	}

	tasks := make([]Task, 0, len(rawTasks))
	for i, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: tasks[%d] is not an object", ErrUnexpectedPayload, i)
		}
		tasks = append(tasks, Task(task))
	}

	return tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnexpectedPayload, op, err)
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

func pageQuery(offset, limit int) url.Values {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
}

func parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable expiry %q", raw)
}

func indexProfiles(students []any) (map[string]map[string]any, error) {
	profiles := make(map[string]map[string]any, len(students))
	for i, raw := range students {
		student, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: students[%d] is not an object", ErrUnexpectedPayload, i)
		}
		profile, _ := student["profile"].(map[string]any)
		profiles[scalarString(student["id"])] = profile
	}
	return profiles, nil
}

func buildSubmission(taskID string, item map[string]any, profiles map[string]map[string]any) (SubmissionMeta, error) {
	traineeID := scalarString(item["student_id"])
	profile, ok := profiles[traineeID]
	if !ok {
		return SubmissionMeta{}, fmt.Errorf("%w: no student profile for trainee %s", ErrUnexpectedPayload, traineeID)
	}

	urls, err := stringList(item["submission_urls"])
	if err != nil {
		return SubmissionMeta{}, err
	}

	score, err := floatValue(item["score"])
	if err != nil {
		return SubmissionMeta{}, err
	}

	var dueDate string
	if task, ok := item["task"].(map[string]any); ok {
		dueDate = scalarString(task["due_date"])
	}

	name := strings.TrimSpace(scalarString(profile["first_name"]) + " " + scalarString(profile["last_name"]))

	return SubmissionMeta{
		TaskID:         taskID,
		SubmissionID:   scalarString(item["id"]),
		TraineeID:      traineeID,
		TraineeName:    name,
		SubmissionDate: scalarString(item["updated_at"]),
		DueDate:        dueDate,
		SolutionURLs:   urls,
		Status:         scalarString(item["status"]),
		Score:          score,
	}, nil
}

func submissionTaskID(item map[string]any) string {
	if id := scalarString(item["task_id"]); id != "" {
		return id
	}
	if task, ok := item["task"].(map[string]any); ok {
		return scalarString(task["id"])
	}
	return ""
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func stringList(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: submission_urls must be a list", ErrUnexpectedPayload)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: submission_urls must contain strings", ErrUnexpectedPayload)
		}
		out = append(out, s)
	}
	return out, nil
}

func floatValue(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: score %q", ErrUnexpectedPayload, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: score must be numeric", ErrUnexpectedPayload)
	}
}
