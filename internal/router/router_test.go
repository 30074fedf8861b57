package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/dto"
	"github.com/uchokoro/KodeCamp-task-grader/internal/handler"
	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
	"github.com/uchokoro/KodeCamp-task-grader/internal/middleware"
	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
)

const routerSecret = "router-secret"

type emptyGradingService struct{}

func (emptyGradingService) GradeTask(_ context.Context, req dto.GradeTaskRequest) (dto.GradeTaskReport, error) {
	return dto.GradeTaskReport{TaskID: req.TaskID}, nil
}

func (emptyGradingService) GradeSubmission(context.Context, dto.GradeTaskRequest, lms.SubmissionMeta) (dto.EvaluationResponse, error) {
	return dto.EvaluationResponse{}, nil
}

func (emptyGradingService) ListEvaluations(context.Context, string, dto.EvaluationListQuery) ([]dto.EvaluationResponse, dto.PaginationMeta, error) {
	return nil, dto.PaginationMeta{Page: 1, PageSize: 20}, nil
}

func (emptyGradingService) GetEvaluation(context.Context, uint) (dto.EvaluationResponse, error) {
	return dto.EvaluationResponse{ID: 1}, nil
}

func newRouterApp(withJWT bool, rateLimit int) *fiber.App {
	deps := Dependencies{
		GradingHandler:    handler.NewGradingHandler(emptyGradingService{}, zerolog.Nop()),
		DownloaderHandler: handler.NewDownloaderHandler(submission.DefaultRegistry()),
		GradeRateLimit:    rateLimit,
	}
	if withJWT {
		deps.JWTMiddleware = middleware.JWTProtected(routerSecret)
	}

	app := fiber.New()
	Register(app, config.Config{AppName: "task-grader"}, deps)
	return app
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "mentor-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routerSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func call(t *testing.T, app *fiber.App, method, path, auth string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisterPublicRoutes(t *testing.T) {
	app := newRouterApp(true, 0)

	resp := call(t, app, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "task-grader", resp.Header.Get("X-Application"))

	resp = call(t, app, http.MethodGet, "/api/v1/downloaders", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "grader_grading_score_percent")
}

func TestRegisterGuardsGradingRoutes(t *testing.T) {
	app := newRouterApp(true, 0)

	resp := call(t, app, http.MethodGet, "/api/v1/evaluations/1", "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = call(t, app, http.MethodPost, "/api/v1/tasks/t1/grade", bearer(t, "trainee"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = call(t, app, http.MethodPost, "/api/v1/tasks/t1/grade", bearer(t, "teacher"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/v1/tasks/t1/evaluations", bearer(t, "admin"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterOpenWithoutJWT(t *testing.T) {
	app := newRouterApp(false, 0)

	resp := call(t, app, http.MethodGet, "/api/v1/evaluations/1", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterRateLimitsGrading(t *testing.T) {
	app := newRouterApp(false, 1)

	resp := call(t, app, http.MethodPost, "/api/v1/tasks/t1/grade", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(t, app, http.MethodPost, "/api/v1/tasks/t1/grade", "")
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/v1/tasks/t1/evaluations", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
