// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the meeting attendance service. It ingests Zoom lifecycle
// events from NATS, reconciles them against Zoom participant reports, and
// serves attendance verdicts over NATS request/reply.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/scheduler"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	clk := clock.Real()

	responseCache, redisClient, err := setupResponseCache(ctx, env, clk)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up response cache")
		return
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	zoomClient := setupZoomClient(env, responseCache, clk)

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	repos, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	// Outbound notifications
	outbox := messaging.NewOutbox(messaging.NewMessageBuilder(natsConn), messaging.DefaultOutboxSize)

	// Initialize services
	locks := concurrent.NewKeyedMutex()
	reconciliationService := service.NewReconciliationService(
		repos.MeetingRecord,
		repos.ParticipantSession,
		repos.ReconciliationQueue,
		zoomClient,
		outbox,
		locks,
		clk,
		env.Attendance,
	)
	triggerPool := service.NewTriggerPool(reconciliationService)
	ingestionService := service.NewIngestionService(
		repos.MeetingRecord,
		repos.ParticipantSession,
		outbox,
		triggerPool,
		locks,
		clk,
		env.Attendance,
	)
	queryService := service.NewAttendanceQueryService(
		repos.MeetingRecord,
		repos.ParticipantSession,
		clk,
		env.Attendance,
	)
	drainer := service.NewQueueDrainer(reconciliationService)

	// Background workers
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		outbox.Run(ctx)
	}()

	triggerPool.Start(ctx)
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		<-ctx.Done()
		triggerPool.Wait()
	}()

	sched := scheduler.New(clk)
	sched.ScheduleEvery(env.ReconcileQueueInterval, "reconcile-queue-drain", drainer.Drain)
	sched.Start(ctx)
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		<-ctx.Done()
		sched.Wait()
	}()

	// Initialize handlers
	attendanceHandler := handlers.NewAttendanceHandler(
		ingestionService,
		reconciliationService,
		queryService,
		clk,
	)

	healthHandler := handlers.NewHealthHandler(
		handlers.ReadinessCheck{Name: "nats", Ready: natsConn.IsConnected},
		handlers.ReadinessCheck{Name: "attendance", Ready: attendanceHandler.HandlerReady},
	)
	httpServer := setupHTTPServer(flags, healthHandler, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubcriptions(ctx, attendanceHandler, attendanceHandler.Subjects(), natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	slog.InfoContext(ctx, "attendance service started",
		"threshold", env.Attendance.Threshold,
		"reconcile_queue_interval", env.ReconcileQueueInterval.String(),
	)

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel)
}
