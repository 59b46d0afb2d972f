package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const probeTimeout = 2 * time.Second

// RegisterHealthRoutes adds a readiness endpoint reporting Postgres and Redis.
// A dependency that is not configured reports "disabled" and does not fail
// the check.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
		defer cancel()

		checks := fiber.Map{}
		healthy := true
		record := func(name string, configured bool, ping func(context.Context) error) {
			switch {
			case !configured:
				checks[name] = "disabled"
			case ping(ctx) != nil:
				checks[name] = "unreachable"
				healthy = false
			default:
				checks[name] = "ok"
			}
		}
		record("postgres", d.DB != nil, func(ctx context.Context) error { return d.DB.Ping(ctx) })
		record("redis", d.Cache != nil, func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() })

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
