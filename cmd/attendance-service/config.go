// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/zoom/api"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/service"
)

// flags are the command line flags for the attendance service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the attendance service.
type environment struct {
	Port string

	NatsURL           string
	NatsTimeout       time.Duration
	NatsMaxReconnect  int
	NatsReconnectWait time.Duration

	Zoom       api.Config
	Attendance service.AttendanceConfig

	ReconcileQueueInterval time.Duration

	Redis redisConfig
}

// redisConfig holds the optional shared response cache settings.
type redisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r redisConfig) Enabled() bool {
	return r.Addr != ""
}

// parseFlags parses command line flags for the attendance service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "health probe listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the attendance service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	attendance := service.DefaultAttendanceConfig()
	attendance.Threshold = envFloat("ATTENDANCE_THRESHOLD", attendance.Threshold)
	attendance.SelfDurationFallback = envBool("ATTENDANCE_SELF_DURATION_FALLBACK", attendance.SelfDurationFallback)
	attendance.DedupHistorySize = envInt("DEDUP_HISTORY_SIZE", attendance.DedupHistorySize)
	attendance.MaxReconcileAttempts = envInt("RECONCILE_MAX_ATTEMPTS", attendance.MaxReconcileAttempts)
	attendance.ReconcileWorkers = envInt("RECONCILE_WORKERS", attendance.ReconcileWorkers)
	if attendance.Threshold < 0 || attendance.Threshold > 100 {
		slog.Warn("ATTENDANCE_THRESHOLD out of range, using default", "threshold", attendance.Threshold)
		attendance.Threshold = service.DefaultThreshold
	}

	zoomConfig := api.Config{
		AccountID:    os.Getenv("ZOOM_ACCOUNT_ID"),
		ClientID:     os.Getenv("ZOOM_CLIENT_ID"),
		ClientSecret: os.Getenv("ZOOM_CLIENT_SECRET"),
		BaseURL:      os.Getenv("ZOOM_API_BASE_URL"),
		AuthURL:      os.Getenv("ZOOM_AUTH_URL"),
		MaxRetries:   envInt("GATEWAY_MAX_RETRIES", api.DefaultMaxRetries),
		Timeout:      envDuration("GATEWAY_TIMEOUT", api.DefaultClientTimeout),
		Intervals: map[api.Category]time.Duration{
			api.CategoryMeeting: envDuration("GATEWAY_INTERVAL_MEETING", api.DefaultMeetingInterval),
			api.CategoryReport:  envDuration("GATEWAY_INTERVAL_REPORT", api.DefaultReportInterval),
			api.CategoryUser:    envDuration("GATEWAY_INTERVAL_USER", api.DefaultUserInterval),
			api.CategoryDefault: envDuration("GATEWAY_INTERVAL_DEFAULT", api.DefaultDefaultInterval),
		},
	}

	return environment{
		Port:                   port,
		NatsURL:                natsURL,
		NatsTimeout:            envDuration("NATS_TIMEOUT", 10*time.Second),
		NatsMaxReconnect:       envInt("NATS_MAX_RECONNECT", 3),
		NatsReconnectWait:      envDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		Zoom:                   zoomConfig,
		Attendance:             attendance,
		ReconcileQueueInterval: envDuration("RECONCILE_QUEUE_INTERVAL", time.Minute),
		Redis: redisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).Warn("invalid duration, using default")
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).Warn("invalid integer, using default")
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).Warn("invalid number, using default")
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).Warn("invalid boolean, using default")
		return fallback
	}
	return b
}
