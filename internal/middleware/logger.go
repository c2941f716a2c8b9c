package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger returns a zap-based request logging middleware.  The
// request id set by echo's RequestID middleware is included when present.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler write the response so the
				// logged status matches what the client saw
				c.Error(err)
			}

			fields := []zap.Field{
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("client_ip", c.RealIP()),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if uid := userID(c); uid != "guest" {
				fields = append(fields, zap.String("user_id", uid))
			}
			switch {
			case c.Response().Status >= 500:
				logger.Error("request", append(fields, zap.Error(err))...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		}
	}
}
