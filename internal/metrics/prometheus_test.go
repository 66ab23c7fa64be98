package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTimerRecordsRoutePattern(t *testing.T) {
	RequestDuration.Reset()

	app := fiber.New()
	app.Use(RequestTimer())
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/things/42", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, testutil.CollectAndCount(RequestDuration, "study_request_duration_seconds"))
}

func TestRequestTimerLabelsUnmatchedPaths(t *testing.T) {
	RequestDuration.Reset()

	app := fiber.New()
	app.Use(RequestTimer())

	resp, err := app.Test(httptest.NewRequest("GET", "/no/such/route", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	count := testutil.CollectAndCount(RequestDuration)
	assert.Equal(t, 1, count)
}
