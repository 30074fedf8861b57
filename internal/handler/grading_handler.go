package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uchokoro/KodeCamp-task-grader/internal/dto"
	"github.com/uchokoro/KodeCamp-task-grader/internal/grading"
	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
	"github.com/uchokoro/KodeCamp-task-grader/internal/middleware"
	"github.com/uchokoro/KodeCamp-task-grader/internal/service"
	"github.com/uchokoro/KodeCamp-task-grader/internal/utils"
)

// GradingHandler exposes grading runs and stored evaluations.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// RegisterTasks attaches task-scoped routes, e.g. under /tasks.
func (h *GradingHandler) RegisterTasks(router fiber.Router, gradeGuards ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, gradeGuards...), h.grade)
	router.Post("/:taskID/grade", handlers...)
	router.Get("/:taskID/evaluations", h.listEvaluations)
}

// RegisterEvaluations attaches evaluation lookups, e.g. under /evaluations.
func (h *GradingHandler) RegisterEvaluations(router fiber.Router) {
	router.Get("/:id", h.getEvaluation)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradeTaskRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	payload.TaskID = strings.TrimSpace(c.Params("taskID"))

	report, err := h.service.GradeTask(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err, "failed to grade task")
	}

	return utils.SendSuccess(c, "grading run finished", report)
}

func (h *GradingHandler) listEvaluations(c *fiber.Ctx) error {
	var query dto.EvaluationListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	items, meta, err := h.service.ListEvaluations(c.UserContext(), c.Params("taskID"), query)
	if err != nil {
		return h.handleError(c, err, "failed to list evaluations")
	}

	return utils.OK(c, items, "evaluations retrieved", meta)
}

func (h *GradingHandler) getEvaluation(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.service.GetEvaluation(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "failed to load evaluation")
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	var apiErr *lms.APIError
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, lms.ErrUnknownCategory), errors.Is(err, service.ErrTaskIDRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, grading.ErrInvalidRubric):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &apiErr):
		return utils.Fail(c, fiber.StatusBadGateway, "lms request failed", fiber.Map{"op": apiErr.Op, "status": apiErr.StatusCode})
	case errors.Is(err, lms.ErrInvalidToken), errors.Is(err, lms.ErrUnexpectedPayload):
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	case isTimeout(err):
		return utils.SendError(c, fiber.StatusGatewayTimeout, "grading timed out")
	default:
		logger := middleware.RequestLogger(h.logger, c)
		logger.Error().Err(err).Str("path", c.Path()).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
