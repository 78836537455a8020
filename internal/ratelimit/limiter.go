// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"northbound-api/internal/common/config"
	"northbound-api/internal/common/database"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/metrics"
	"northbound-api/internal/models"
)

// purgeChance is the inverse probability of running the expired-window purge
// on any given check. Amortizes cleanup across request traffic instead of
// needing a scheduler.
const purgeChance = 100

// checkTimeout bounds the counting query; past it the check fails open.
const checkTimeout = 3 * time.Second

// Limiter enforces per-client fixed-window request budgets backed by
// Postgres, so limits hold across process restarts and replicas.
//
// Windows are aligned to epoch boundaries: a 3600s window always starts at
// the top of the hour, regardless of when the first request arrived.
type Limiter struct {
	db        *database.PostgresClient
	limits    map[string]config.RateLimitConfig
	retention time.Duration
	log       logger.Logger
	now       func() time.Time
	roll      func(n int) int
}

func NewLimiter(db *database.PostgresClient, limits map[string]config.RateLimitConfig, retentionHours int, log logger.Logger) *Limiter {
	if retentionHours <= 0 {
		retentionHours = 24
	}
	return &Limiter{
		db:        db,
		limits:    limits,
		retention: time.Duration(retentionHours) * time.Hour,
		log:       log,
		now:       time.Now,
		roll:      rand.Intn,
	}
}

const checkQuery = `
	INSERT INTO rate_limit_windows (identifier, client_key, window_start, request_count)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (identifier, client_key, window_start)
	DO UPDATE SET request_count = rate_limit_windows.request_count + 1
	RETURNING request_count`

// Check records one request against the identifier's budget for clientKey
// and reports whether it is within the limit. The count-and-read is a single
// atomic upsert, so concurrent requests across replicas never lose updates.
//
// A store failure fails open: traffic is served rather than rejected when
// the database is unavailable.
func (l *Limiter) Check(ctx context.Context, identifier, clientKey string) models.RateLimitDecision {
	cfg, ok := l.limits[identifier]
	if !ok || cfg.MaxRequests <= 0 || cfg.WindowSeconds <= 0 {
		// No budget configured for this identifier.
		return models.RateLimitDecision{Allowed: true}
	}

	now := l.now()
	windowStart := windowStartFor(now, cfg.WindowSeconds)
	resetAt := windowStart.Add(time.Duration(cfg.WindowSeconds) * time.Second)

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var count int
	err := l.db.QueryRow(checkCtx, checkQuery, identifier, clientKey, windowStart).Scan(&count)
	if err != nil {
		l.log.WithError(err).Error("rate limit check failed, failing open", map[string]interface{}{
			"identifier": identifier,
			"client_key": clientKey,
		})
		metrics.RateLimitFailOpen.WithLabelValues(identifier).Inc()
		return models.RateLimitDecision{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests,
			ResetAt:   resetAt,
		}
	}

	decision := models.RateLimitDecision{
		Allowed:   count <= cfg.MaxRequests,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - count,
		ResetAt:   resetAt,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
		l.log.Warn("rate limit exceeded", map[string]interface{}{
			"identifier": identifier,
			"client_key": clientKey,
			"count":      count,
			"limit":      cfg.MaxRequests,
		})
	}
	metrics.RateLimitDecisions.WithLabelValues(identifier, outcome).Inc()

	l.maybePurge(now)
	return decision
}

// windowStartFor aligns t to the start of its fixed window.
func windowStartFor(t time.Time, windowSeconds int) time.Time {
	unix := t.Unix()
	return time.Unix(unix-unix%int64(windowSeconds), 0).UTC()
}

// maybePurge deletes windows past retention on roughly 1% of checks. Runs in
// the background so the request path never waits on cleanup.
func (l *Limiter) maybePurge(now time.Time) {
	if l.roll(purgeChance) != 0 {
		return
	}
	cutoff := now.Add(-l.retention)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := l.db.Exec(ctx, `DELETE FROM rate_limit_windows WHERE window_start < $1`, cutoff)
		if err != nil {
			l.log.WithError(err).Warn("rate limit window purge failed", nil)
			return
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			l.log.Debug("purged expired rate limit windows", map[string]interface{}{
				"rows":   n,
				"cutoff": cutoff,
			})
		}
	}()
}
