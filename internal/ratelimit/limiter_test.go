// internal/ratelimit/limiter_test.go
package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northbound-api/internal/common/config"
	"northbound-api/internal/common/database"
	"northbound-api/internal/common/logger"
)

func newTestLimiter(t *testing.T) (*Limiter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	limits := map[string]config.RateLimitConfig{
		"subscribe":   {MaxRequests: 5, WindowSeconds: 3600},
		"unsubscribe": {MaxRequests: 10, WindowSeconds: 3600},
	}
	l := NewLimiter(&database.PostgresClient{DB: db}, limits, 24, logger.NewTestLogger(t))
	l.roll = func(int) int { return 1 } // never purge during tests
	return l, mock
}

func TestCheckAllowedWithinBudget(t *testing.T) {
	l, mock := newTestLimiter(t)
	l.now = func() time.Time { return time.Unix(1_700_003_700, 0) } // 01:15 into the hour

	wantWindow := time.Unix(1_700_003_700-1_700_003_700%3600, 0).UTC()
	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", wantWindow).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(3))

	d := l.Check(context.Background(), "subscribe", "203.0.113.9")
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, wantWindow.Add(time.Hour), d.ResetAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDeniedOverBudget(t *testing.T) {
	l, mock := newTestLimiter(t)
	now := time.Unix(1_700_000_100, 0)
	l.now = func() time.Time { return now }

	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(6))

	d := l.Check(context.Background(), "subscribe", "203.0.113.9")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfterSeconds(now), 0)
}

func TestCheckExactlyAtLimitAllowed(t *testing.T) {
	l, mock := newTestLimiter(t)

	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(5))

	d := l.Check(context.Background(), "subscribe", "203.0.113.9")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	l, mock := newTestLimiter(t)

	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	d := l.Check(context.Background(), "subscribe", "203.0.113.9")
	assert.True(t, d.Allowed)
}

func TestCheckUnconfiguredIdentifierAllowed(t *testing.T) {
	l, _ := newTestLimiter(t)

	d := l.Check(context.Background(), "no-such-identifier", "203.0.113.9")
	assert.True(t, d.Allowed)
}

func TestIdentifiersTrackedIndependently(t *testing.T) {
	l, mock := newTestLimiter(t)

	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(6))
	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("unsubscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(1))

	denied := l.Check(context.Background(), "subscribe", "203.0.113.9")
	allowed := l.Check(context.Background(), "unsubscribe", "203.0.113.9")
	assert.False(t, denied.Allowed)
	assert.True(t, allowed.Allowed)
}

func TestCheckTriggersPurge(t *testing.T) {
	l, mock := newTestLimiter(t)
	l.roll = func(int) int { return 0 } // always purge

	mock.ExpectQuery("INSERT INTO rate_limit_windows").
		WithArgs("subscribe", "203.0.113.9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"request_count"}).AddRow(1))
	mock.ExpectExec("DELETE FROM rate_limit_windows").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	d := l.Check(context.Background(), "subscribe", "203.0.113.9")
	assert.True(t, d.Allowed)

	// The purge runs on a background goroutine.
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWindowStartFor(t *testing.T) {
	base := time.Date(2026, 8, 30, 14, 45, 10, 0, time.UTC)
	got := windowStartFor(base, 3600)
	assert.Equal(t, time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC), got)

	// Two instants in the same window align to the same start.
	other := windowStartFor(base.Add(10*time.Minute), 3600)
	assert.Equal(t, got, other)

	// The next window starts exactly one window later.
	next := windowStartFor(base.Add(time.Hour), 3600)
	assert.Equal(t, got.Add(time.Hour), next)
}
