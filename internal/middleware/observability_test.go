package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsAttemptRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(zerolog.New(&buf)))
	app.Put("/api/v1/attempts/:id/answers/:questionId", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/attempts/42/answers/7", nil)
	req.Header.Set("X-Correlation-ID", "exam-client-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "/api/v1/attempts/:id/answers/:questionId", line["route"])
	require.Equal(t, "42", line["attempt_id"])
	require.Equal(t, "exam-client-1", line["correlation_id"])

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Zero(t, buf.Len())
}
