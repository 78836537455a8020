// internal/subscription/store_test.go
package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northbound-api/internal/common/database"
	"northbound-api/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(&database.PostgresClient{DB: db}, 2*time.Second), mock
}

func TestUpsertSubscriberCreated(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "email", "unsubscribe_token", "verified_at", "is_active", "created"}).
		AddRow(int64(7), "trader@example.com", "unsub-tok", nil, true, true)
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs("trader@example.com", "unsub-tok").
		WillReturnRows(rows)

	sub, created, err := store.UpsertSubscriber(context.Background(), "trader@example.com", "unsub-tok")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), sub.ID)
	assert.False(t, sub.Verified())
	assert.True(t, sub.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubscriberExistingKeepsToken(t *testing.T) {
	store, mock := newMockStore(t)

	verifiedAt := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "email", "unsubscribe_token", "verified_at", "is_active", "created"}).
		AddRow(int64(7), "trader@example.com", "original-tok", verifiedAt, true, false)
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs("trader@example.com", "new-tok").
		WillReturnRows(rows)

	sub, created, err := store.UpsertSubscriber(context.Background(), "trader@example.com", "new-tok")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "original-tok", sub.UnsubscribeToken)
	assert.True(t, sub.Verified())
}

func TestReplacePreferences(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO subscription_preferences").
		WithArgs(int64(7), "WEEKLY", "FRI", "", pq.Array([]string{"EUR_CAD", "USD_CAD"}), "America/Toronto").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ReplacePreferences(context.Background(), 7, models.Preferences{
		Frequency: models.FrequencyWeekly,
		WeeklyDay: models.WeeklyDayFri,
		Pairs:     []string{"EUR_CAD", "USD_CAD"},
		Timezone:  "America/Toronto",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmByTokenSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("ver-tok", now).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("trader@example.com"))

	email, err := store.ConfirmByToken(context.Background(), "ver-tok", now)
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", email)
}

func TestConfirmByTokenAlreadyConsumed(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("ver-tok", now).
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	mock.ExpectQuery("SELECT email FROM subscriptions WHERE consumed_token").
		WithArgs("ver-tok").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("trader@example.com"))

	_, err := store.ConfirmByToken(context.Background(), "ver-tok", now)
	var already *AlreadyVerifiedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "trader@example.com", already.Email)
}

func TestConfirmByTokenExpired(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("ver-tok", now).
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	mock.ExpectQuery("SELECT email FROM subscriptions WHERE consumed_token").
		WithArgs("ver-tok").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	mock.ExpectQuery("SELECT verification_expires_at FROM subscriptions").
		WithArgs("ver-tok").
		WillReturnRows(sqlmock.NewRows([]string{"verification_expires_at"}).AddRow(now.Add(-time.Hour)))

	_, err := store.ConfirmByToken(context.Background(), "ver-tok", now)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestConfirmByTokenUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("bogus", now).
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	mock.ExpectQuery("SELECT email FROM subscriptions WHERE consumed_token").
		WithArgs("bogus").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	mock.ExpectQuery("SELECT verification_expires_at FROM subscriptions").
		WithArgs("bogus").
		WillReturnRows(sqlmock.NewRows([]string{"verification_expires_at"}))

	_, err := store.ConfirmByToken(context.Background(), "bogus", now)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestDeactivateByToken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("unsub-tok").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("trader@example.com"))

	email, err := store.DeactivateByToken(context.Background(), "unsub-tok")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", email)
}

func TestDeactivateByTokenUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("bogus").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	_, err := store.DeactivateByToken(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestDeactivateByEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("trader@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("trader@example.com"))

	email, err := store.DeactivateByEmail(context.Background(), "trader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", email)
}

func TestGetByEmailRoundTripsPreferences(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "email", "unsubscribe_token", "verification_token", "verification_expires_at",
		"verified_at", "is_active", "created_at", "updated_at",
		"frequency", "weekly_day", "monthly_timing", "pairs", "timezone",
	}).AddRow(
		int64(7), "trader@example.com", "unsub-tok", nil, nil,
		now, true, now, now,
		"WEEKLY", "WED", nil, []byte(`{EUR_CAD,USD_CAD}`), "America/Toronto",
	)
	mock.ExpectQuery("SELECT s.id, s.email").
		WithArgs("trader@example.com").
		WillReturnRows(rows)

	sub, prefs, err := store.GetByEmail(context.Background(), "trader@example.com")
	require.NoError(t, err)
	assert.True(t, sub.Verified())
	require.NotNil(t, prefs)
	assert.Equal(t, models.FrequencyWeekly, prefs.Frequency)
	assert.Equal(t, models.WeeklyDayWed, prefs.WeeklyDay)
	assert.Empty(t, prefs.MonthlyTiming)
	assert.ElementsMatch(t, []string{"USD_CAD", "EUR_CAD"}, prefs.Pairs)
}

func TestDeactivateByTokenQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs("unsub-tok").
		WillReturnError(errors.New("connection refused"))

	_, err := store.DeactivateByToken(context.Background(), "unsub-tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}
