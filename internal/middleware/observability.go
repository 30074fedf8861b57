package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uchokoro/KodeCamp-task-grader/internal/observability"
)

// DefaultSlowRequest is the slow-request threshold used when none is configured.
const DefaultSlowRequest = 30 * time.Second

const (
	operationGrade = "grade"
	operationRead  = "read"
)

// Observability records Prometheus metrics and a structured access log for
// /api routes. POST .../grade is tracked as its own operation.
func Observability(logger zerolog.Logger, slowAfter time.Duration) fiber.Handler {
	observability.RegisterMetrics()
	if slowAfter <= 0 {
		slowAfter = DefaultSlowRequest
	}

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api/") {
			return c.Next()
		}

		operation := requestOperation(c)
		inFlight := observability.HTTPInFlight().WithLabelValues(operation)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		fields := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("operation", operation).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Dur("duration", duration).
			Str("duration_bucket", durationBucket(duration))
		if taskID := strings.TrimSpace(c.Params("taskID")); taskID != "" {
			fields = fields.Str("task_id", taskID)
		}
		if caller, ok := c.Locals(LocalUserID).(string); ok && caller != "" {
			fields = fields.Str("caller", caller)
		}
		slow := duration >= slowAfter
		if slow {
			fields = fields.Bool("slow", true)
		}
		requestLogger := fields.Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("request completed with client error")
		case slow:
			requestLogger.Warn().Msg("slow request completed")
		case operation == operationRead && strings.HasSuffix(route, "/health"):
			requestLogger.Debug().Msg("health check served")
		default:
			requestLogger.Info().Msg("request completed")
		}

		return err
	}
}

func requestOperation(c *fiber.Ctx) string {
	if c.Method() == fiber.MethodPost && strings.HasSuffix(strings.TrimSuffix(c.Path(), "/"), "/grade") {
		return operationGrade
	}
	return operationRead
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

// durationBucket groups request durations on the scale of model-backed grading.
func durationBucket(duration time.Duration) string {
	switch {
	case duration < 100*time.Millisecond:
		return "<100ms"
	case duration < time.Second:
		return "<1s"
	case duration < 10*time.Second:
		return "<10s"
	case duration < time.Minute:
		return "<1m"
	case duration < 5*time.Minute:
		return "<5m"
	default:
		return ">=5m"
	}
}
