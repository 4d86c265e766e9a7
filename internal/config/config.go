package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; every variable has a default so that a bare
// `go run ./cmd/server` against a local Redis behaves like the reference
// deployment (50 seats on port 1245).
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	SeatCapacity    int           // seats written to the counter store at startup
	SeatKey         string        // key holding the available seat count
	SeatStore       string        // "redis" or "memory"
	MetricsEnabled  bool          // expose /metrics and refresh gauges
	MetricsInterval time.Duration // gauge refresh period
	ShutdownTimeout time.Duration // grace period for in-flight requests and jobs
	Queue           QueueConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  Invalid values that would corrupt the seat pool (a negative
// capacity, an unknown backend) stop the process with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:             envStr("APP_ENV", "dev"),
		Port:            envStr("APP_PORT", "1245"),
		SeatCapacity:    mustInt("SEAT_CAPACITY", 50),
		SeatKey:         envStr("SEAT_KEY", "available_seats"),
		SeatStore:       envStr("SEAT_STORE", BackendRedis),
		MetricsEnabled:  envBool("METRICS_ENABLED", true),
		MetricsInterval: envDur("METRICS_REFRESH_INTERVAL", 15*time.Second),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		Queue:           LoadQueueConfig(),
	}
	if cfg.SeatCapacity < 0 {
		log.Fatalf("invalid SEAT_CAPACITY: %d must not be negative", cfg.SeatCapacity)
	}
	switch cfg.SeatStore {
	case BackendRedis, BackendMemory:
	default:
		log.Fatalf("invalid SEAT_STORE: %q", cfg.SeatStore)
	}
	return cfg
}

// NeedsRedis reports whether any configured backend talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.SeatStore == BackendRedis || c.Queue.Backend == BackendRedis
}

// mustInt is like envInt but refuses values that are set and not integers.
func mustInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
