package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is used by load balancers to check that the service is up.  When
// the service runs on Redis the check also pings it, since neither the
// counter nor the default job log work without it.  rdb may be nil.
func Health(rdb redis.Cmdable) echo.HandlerFunc {
	return func(c echo.Context) error {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy", "error": "redis unreachable"})
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
