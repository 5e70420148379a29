package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"circles/internal/config"
	"circles/internal/middleware"
	"circles/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMiddleware(t *testing.T) {
	app := fiber.New()

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("Security Headers", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
		assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	})

	t.Run("Structured Logging", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func readReadiness(t *testing.T, s *Server) (int, readiness) {
	t.Helper()
	app := fiber.New()
	app.Get("/health/ready", s.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body readiness
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestReadinessCheck(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	t.Run("degraded without redis", func(t *testing.T) {
		s := &Server{config: &config.Config{}, db: db}
		status, body := readReadiness(t, s)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "healthy", body.Checks["database"])
		assert.Equal(t, "unavailable", body.Checks["redis"])
	})

	t.Run("healthy with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		s := &Server{config: &config.Config{}, db: db, redis: rdb}
		status, body := readReadiness(t, s)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "healthy", body.Checks["redis"])
	})

	t.Run("redis down stays ready", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer func() { _ = rdb.Close() }()
		mr.Close()

		s := &Server{config: &config.Config{}, db: db, redis: rdb}
		status, body := readReadiness(t, s)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unhealthy", body.Checks["redis"])
	})
}
