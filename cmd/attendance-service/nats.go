// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
)

const gracefulShutdownSeconds = 25

// repositories are the KV backed stores of the service.
type repositories struct {
	MeetingRecord       *store.NatsMeetingRecordRepository
	ParticipantSession  *store.NatsParticipantSessionRepository
	ReconciliationQueue *store.NatsReconciliationQueueRepository
}

// setupNATS connects to NATS. A closed connection signals done so the
// process shuts down instead of running without its transport.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	slog.InfoContext(ctx, "connecting to NATS", "url", env.NatsURL)

	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-meeting-attendance"),
		nats.Timeout(env.NatsTimeout),
		nats.MaxReconnects(env.NatsMaxReconnect),
		nats.ReconnectWait(env.NatsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.With(logging.ErrKey, err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject, "queue", sub.Queue).Error("async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected during graceful shutdown.
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
			gracefulCloseWG.Done()
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return natsConn, nil
}

// getKeyValueStores opens the attendance KV buckets, creating them when missing.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	buckets := map[string]jetstream.KeyValue{}
	for _, name := range []string{
		store.KVStoreNameMeetings,
		store.KVStoreNameSessions,
		store.KVStoreNameReconcileQueue,
	} {
		kv, err := keyValueStore(ctx, js, name)
		if err != nil {
			return nil, err
		}
		buckets[name] = kv
	}

	return &repositories{
		MeetingRecord:       store.NewNatsMeetingRecordRepository(buckets[store.KVStoreNameMeetings]),
		ParticipantSession:  store.NewNatsParticipantSessionRepository(buckets[store.KVStoreNameSessions]),
		ReconciliationQueue: store.NewNatsReconciliationQueueRepository(buckets[store.KVStoreNameReconcileQueue]),
	}, nil
}

func keyValueStore(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("opening KV bucket %s: %w", bucket, err)
	}

	slog.InfoContext(ctx, "creating KV bucket", "bucket", bucket)
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("creating KV bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// createNatsSubcriptions subscribes the handler to all of its subjects on the
// shared queue group so instances share the load.
func createNatsSubcriptions(ctx context.Context, handler domain.MessageHandler, subjects []string, natsConn *nats.Conn) error {
	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.AttendanceAPIQueue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, messaging.NewNatsMessage(msg))
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		slog.DebugContext(ctx, "subscribed to NATS subject", "subject", subject)
	}
	return nil
}

// gracefulShutdown stops the probe server, drains NATS so in-flight messages
// finish, and waits for the background workers to return.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("graceful shutdown started")

	cancel()
	shutdownHTTPServer(httpServer, gracefulCloseWG)

	if natsConn != nil && !natsConn.IsClosed() {
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	finished := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		slog.Info("graceful shutdown complete")
	case <-time.After(gracefulShutdownSeconds * time.Second):
		slog.Error("graceful shutdown timed out")
		os.Exit(1)
	}
}
