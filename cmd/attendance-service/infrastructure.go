// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/zoom/api"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// localCacheTTL bounds how long the in-process tier keeps a shared entry.
const localCacheTTL = 30 * time.Second

// setupResponseCache builds the gateway response cache. Without Redis the
// cache is process local; with Redis it is tiered in front of the shared store.
func setupResponseCache(ctx context.Context, env environment, clk clock.Clock) (api.ResponseCache, *redis.Client, error) {
	local := api.NewMemoryCache(clk, api.DefaultMemoryCacheEntries)
	if !env.Redis.Enabled() {
		return local, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     env.Redis.Addr,
		Password: env.Redis.Password,
		DB:       env.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", env.Redis.Addr, err)
	}

	slog.InfoContext(ctx, "using shared redis response cache", "addr", env.Redis.Addr)
	return api.NewTieredCache(local, api.NewRedisCache(client, api.DefaultRedisKeyPrefix), localCacheTTL), client, nil
}

// setupZoomClient builds the rate-limited Zoom gateway.
func setupZoomClient(env environment, cache api.ResponseCache, clk clock.Clock) *api.Client {
	if env.Zoom.AccountID == "" || env.Zoom.ClientID == "" || env.Zoom.ClientSecret == "" {
		slog.Warn("Zoom credentials are incomplete, reconciliation calls will fail until ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET are set")
	}
	return api.NewClient(env.Zoom, api.WithClock(clk), api.WithResponseCache(cache))
}
