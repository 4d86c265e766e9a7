package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-queue/internal/config"
	"github.com/iliyamo/seat-reservation-queue/internal/handler"
	"github.com/iliyamo/seat-reservation-queue/internal/middleware"
)

// Deps collects what the routes need.  Redis is nil when no backend uses it;
// health checks and rate limiting then skip Redis.
type Deps struct {
	Seats          *handler.SeatHandler
	Redis          *redis.Client
	RateLimit      config.RateLimitConfig
	MetricsEnabled bool
}

// RegisterRoutes registers the operational endpoints (health, metrics).
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Redis != nil {
		e.GET("/healthz", handler.Health(d.Redis))
	} else {
		e.GET("/healthz", handler.Health(nil))
	}
	if d.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

// RegisterSeats registers the reservation endpoints.  Only intake is rate
// limited; status reads and the processing trigger are cheap.
func RegisterSeats(e *echo.Echo, d Deps) {
	var limiter echo.MiddlewareFunc
	if d.Redis != nil {
		limiter = middleware.NewTokenBucket(d.RateLimit, d.Redis)
	} else {
		limiter = middleware.NewTokenBucket(d.RateLimit, nil)
	}

	e.GET("/available_seats", d.Seats.AvailableSeats)
	e.GET("/reserve_seat", d.Seats.ReserveSeat, limiter)
	e.GET("/process", d.Seats.Process)
}
