package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-queue/internal/config"
	"github.com/iliyamo/seat-reservation-queue/internal/handler"
	"github.com/iliyamo/seat-reservation-queue/internal/metrics"
	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/reservation"
	"github.com/iliyamo/seat-reservation-queue/internal/router"
	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		var err error
		rdb, err = config.NewRedisClient(ctx)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	}

	store := newStore(cfg, rdb)
	q := queue.New(newLog(cfg, rdb))
	svc := reservation.NewService(store, q, cfg.SeatCapacity)
	if err := svc.Init(ctx); err != nil {
		log.Fatalf("seats: %v", err)
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(store, svc.Gate())
		if err := collector.Start(cfg.MetricsInterval); err != nil {
			log.Fatalf("metrics: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	deps := router.Deps{
		Seats:          handler.NewSeatHandler(svc),
		Redis:          rdb,
		RateLimit:      config.LoadRateLimitConfig(),
		MetricsEnabled: cfg.MetricsEnabled,
	}
	router.RegisterRoutes(e, deps)
	router.RegisterSeats(e, deps)

	addr := ":" + cfg.Port
	go func() {
		slog.Info("listening", "addr", addr, "seats", cfg.SeatCapacity, "store", cfg.SeatStore, "queue", cfg.Queue.Backend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := q.Shutdown(shutdownCtx); err != nil {
		slog.Error("queue close", "error", err)
	}
	if collector != nil {
		if err := collector.Stop(); err != nil {
			slog.Error("metrics stop", "error", err)
		}
	}
}

func newStore(cfg config.Config, rdb *redis.Client) seats.Store {
	if cfg.SeatStore == config.BackendMemory {
		return seats.NewMemoryStore()
	}
	return seats.NewRedisStore(rdb, cfg.SeatKey)
}

func newLog(cfg config.Config, rdb *redis.Client) queue.Log {
	switch cfg.Queue.Backend {
	case config.BackendAMQP:
		return queue.NewAMQPLog(cfg.Queue.AMQPURL, cfg.Queue.Prefix)
	case config.BackendMemory:
		return queue.NewMemoryLog()
	default:
		return queue.NewRedisLog(rdb, cfg.Queue.Prefix)
	}
}
