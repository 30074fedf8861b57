package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func newCorrelationApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"local":   GetCorrelationID(c),
			"context": CorrelationIDFromContext(c.UserContext()),
		})
	})
	return app
}

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	for _, header := range []string{HeaderCorrelationID, HeaderRequestID} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(header, " run-123 ")
		resp, err := newCorrelationApp().Test(req)
		require.NoError(t, err)
		require.Equal(t, "run-123", resp.Header.Get(HeaderCorrelationID))

		var body map[string]string
		decodeBody(t, resp, &body)
		require.Equal(t, "run-123", body["local"])
		require.Equal(t, "run-123", body["context"])
	}
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	resp, err := newCorrelationApp().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), 36)
}

func TestContextWithCorrelationIgnoresBlank(t *testing.T) {
	ctx := ContextWithCorrelation(context.Background(), "  ")
	require.NotNil(t, ctx)
	require.Empty(t, CorrelationIDFromContext(ctx))
	require.Equal(t, "abc", CorrelationIDFromContext(ContextWithCorrelation(ctx, "abc")))
}
