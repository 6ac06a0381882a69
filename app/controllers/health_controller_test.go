package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
)

type stubHealth struct {
	status adminapi.HealthStatus
}

func (s stubHealth) Health(ctx context.Context) adminapi.HealthStatus {
	return s.status
}

func healthApp(status adminapi.HealthStatus) *fiber.App {
	hc := NewHealthController(stubHealth{status: status}, tokenstore.New(nil))
	app := fiber.New()
	app.Get("/health", hc.HandleHealth)
	return app
}

func TestHealthHealthyAdminAPI(t *testing.T) {
	app := healthApp(adminapi.HealthStatus{Status: "healthy"})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "ok", decoded["status"])
	// No Redis in this test, so the store reports fallback mode.
	assert.Equal(t, "fallback", decoded["token_store"])
}

func TestHealthUnhealthyAdminAPIReturns503(t *testing.T) {
	app := healthApp(adminapi.HealthStatus{Status: "unhealthy", Error: "connection refused"})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
