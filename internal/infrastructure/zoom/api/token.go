// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

const (
	// DefaultTokenRefreshMargin is how long before expiry a token is replaced.
	DefaultTokenRefreshMargin = 5 * time.Minute
	// DefaultTokenMinInterval is the minimum time between two token requests.
	DefaultTokenMinInterval = 60 * time.Second
	// defaultTokenLifetime is assumed when the token response carries no expiry.
	defaultTokenLifetime = time.Hour

	tokenFlightKey = "zoom-access-token"
)

// TokenFetcher fetches a fresh access token. *clientcredentials.Config satisfies it.
type TokenFetcher interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// AccessToken is the cached credential shared by every gateway caller.
type AccessToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCache holds one access token per credential set. Concurrent callers
// that find no usable token share a single upstream fetch.
type TokenCache struct {
	fetcher     TokenFetcher
	clock       clock.Clock
	margin      time.Duration
	minInterval time.Duration
	timeout     time.Duration

	mu        sync.Mutex
	token     *AccessToken
	lastFetch time.Time
	fetches   int

	flight singleflight.Group
}

// NewTokenCache creates a token cache. Zero durations take the package defaults.
func NewTokenCache(fetcher TokenFetcher, clk clock.Clock, margin, minInterval, timeout time.Duration) *TokenCache {
	if clk == nil {
		clk = clock.Real()
	}
	if margin <= 0 {
		margin = DefaultTokenRefreshMargin
	}
	if minInterval <= 0 {
		minInterval = DefaultTokenMinInterval
	}
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &TokenCache{
		fetcher:     fetcher,
		clock:       clk,
		margin:      margin,
		minInterval: minInterval,
		timeout:     timeout,
	}
}

// Token returns a valid access token, fetching one when the cached token is
// missing or inside the refresh margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token := c.fresh(); token != nil {
		return token.Value, nil
	}

	ch := c.flight.DoChan(tokenFlightKey, func() (any, error) {
		return c.refresh(ctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*AccessToken).Value, nil
	}
}

// Invalidate drops the cached token, e.g. after the API answered 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

// Fetches returns how many upstream token requests were made.
func (c *TokenCache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *TokenCache) fresh() *AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.clock.Now().Before(c.token.ExpiresAt.Add(-c.margin)) {
		return c.token
	}
	return nil
}

func (c *TokenCache) refresh(ctx context.Context) (*AccessToken, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if c.token != nil && now.Before(c.token.ExpiresAt.Add(-c.margin)) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	if !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.minInterval {
		token := c.token
		c.mu.Unlock()
		// inside the margin but not yet expired, keep using it
		if token != nil && now.Before(token.ExpiresAt) {
			return token, nil
		}
		return nil, domain.NewRateLimitedError("access token was requested less than a minute ago")
	}
	c.lastFetch = now
	c.fetches++
	c.mu.Unlock()

	// the fetch is shared, so one caller's cancellation must not fail the others
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	raw, err := c.fetcher.Token(fetchCtx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch Zoom access token", logging.ErrKey, err)
		return nil, domain.NewUnavailableError("failed to fetch Zoom access token", err)
	}

	issued := c.clock.Now()
	expires := raw.Expiry
	if expires.IsZero() {
		expires = issued.Add(defaultTokenLifetime)
	}
	if raw.ExpiresIn > 0 {
		expires = issued.Add(time.Duration(raw.ExpiresIn) * time.Second)
	}
	token := &AccessToken{Value: raw.AccessToken, IssuedAt: issued, ExpiresAt: expires}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	slog.DebugContext(ctx, "fetched Zoom access token", "expires_at", expires)
	return token, nil
}
