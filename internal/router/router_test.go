package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-queue/internal/config"
	"github.com/iliyamo/seat-reservation-queue/internal/handler"
	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/reservation"
	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

func TestRoutesWithoutRedis(t *testing.T) {
	q := queue.New(queue.NewMemoryLog())
	t.Cleanup(func() { _ = q.Close() })
	svc := reservation.NewService(seats.NewMemoryStore(), q, 50)
	require.NoError(t, svc.Init(context.Background()))

	e := echo.New()
	d := Deps{
		Seats:          handler.NewSeatHandler(svc),
		RateLimit:      config.RateLimitConfig{Enabled: true},
		MetricsEnabled: true,
	}
	RegisterRoutes(e, d)
	RegisterSeats(e, d)

	for _, tc := range []struct {
		path string
		want string
	}{
		{"/healthz", "ok"},
		{"/available_seats", `"numberOfAvailableSeats":"50"`},
		{"/reserve_seat", `"status":"Reservation in process"`},
		{"/process", `"status":"Queue processing"`},
		{"/metrics", "seat_available"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Contains(t, rec.Body.String(), tc.want, tc.path)
	}
}
