package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Logger logs each HTTP request as one structured line after the handler
// completes, so the final status code is captured. The request_id field is
// taken from the locals set by RequestID.
func Logger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		log.Info().
			Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0).
			Msg("request")

		return err
	}
}
