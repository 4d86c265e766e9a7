package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/reservation"
)

// Status messages returned to clients.  The wording is part of the public API.
const (
	StatusInProcess  = "Reservation in process"
	StatusBlocked    = "Reservation are blocked"
	StatusFailed     = "Reservation failed"
	StatusProcessing = "Queue processing"
)

// Reservations is the part of reservation.Service the handlers need.
type Reservations interface {
	Available(ctx context.Context) (int, error)
	Reserve(ctx context.Context) (*queue.Handle, error)
	StartProcessing() error
}

// SeatHandler exposes the seat pool over HTTP.
type SeatHandler struct {
	svc Reservations
}

func NewSeatHandler(svc Reservations) *SeatHandler {
	if svc == nil {
		panic("nil service passed to NewSeatHandler")
	}
	return &SeatHandler{svc: svc}
}

// AvailableSeats handles GET /available_seats.  The count is sent as a
// string.  The endpoint always answers 200; when the store cannot be read
// the body carries an error instead of a count, never a made-up zero.
func (h *SeatHandler) AvailableSeats(c echo.Context) error {
	n, err := h.svc.Available(c.Request().Context())
	if err != nil {
		slog.Error("handler: read available seats", "error", err)
		return c.JSON(http.StatusOK, echo.Map{"error": "seat store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"numberOfAvailableSeats": strconv.Itoa(n)})
}

// ReserveSeat handles GET /reserve_seat.  It only queues the attempt; the
// outcome is decided later by the worker and logged there.
func (h *SeatHandler) ReserveSeat(c echo.Context) error {
	job, err := h.svc.Reserve(c.Request().Context())
	switch {
	case errors.Is(err, reservation.ErrReservationsBlocked):
		return c.JSON(http.StatusOK, echo.Map{"status": StatusBlocked})
	case err != nil:
		slog.Error("handler: enqueue reservation", "error", err)
		return c.JSON(http.StatusOK, echo.Map{"status": StatusFailed})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": StatusInProcess, "job_id": job.ID()})
}

// Process handles GET /process.  It answers immediately and makes sure the
// single worker is consuming; calling it again does not add consumers.
func (h *SeatHandler) Process(c echo.Context) error {
	if err := h.svc.StartProcessing(); err != nil {
		slog.Error("handler: start processing", "error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": StatusProcessing})
}
