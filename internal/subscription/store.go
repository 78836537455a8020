// internal/subscription/store.go
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"northbound-api/internal/common/database"
	"northbound-api/internal/models"
)

// Store-level sentinel errors. Callers classify them into API errors.
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

// Store persists subscribers and their delivery preferences. Every call is
// bounded by queryTimeout so no operation can hang past it.
type Store struct {
	db           *database.PostgresClient
	queryTimeout time.Duration
}

func NewStore(db *database.PostgresClient, queryTimeout time.Duration) *Store {
	return &Store{db: db, queryTimeout: queryTimeout}
}

func (s *Store) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

const upsertSubscriberQuery = `
	INSERT INTO subscriptions (email, unsubscribe_token, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	ON CONFLICT (email) DO UPDATE
		SET is_active = TRUE, updated_at = now()
	RETURNING id, email, unsubscribe_token, verified_at, is_active, (xmax = 0) AS created`

// UpsertSubscriber inserts a subscriber or revives the existing row for the
// email. The unsubscribe token is only assigned on first insert; an existing
// row keeps its token so previously issued unsubscribe links stay valid.
// The returned bool reports whether a new row was created.
func (s *Store) UpsertSubscriber(ctx context.Context, email, unsubscribeToken string) (*models.Subscriber, bool, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	var (
		sub     models.Subscriber
		created bool
	)
	err := s.db.QueryRow(ctx, upsertSubscriberQuery, email, unsubscribeToken).Scan(
		&sub.ID, &sub.Email, &sub.UnsubscribeToken, &sub.VerifiedAt, &sub.IsActive, &created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert subscriber: %w", err)
	}
	return &sub, created, nil
}

const replacePreferencesQuery = `
	INSERT INTO subscription_preferences (subscription_id, frequency, weekly_day, monthly_timing, pairs, timezone, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, now())
	ON CONFLICT (subscription_id) DO UPDATE SET
		frequency      = EXCLUDED.frequency,
		weekly_day     = EXCLUDED.weekly_day,
		monthly_timing = EXCLUDED.monthly_timing,
		pairs          = EXCLUDED.pairs,
		timezone       = EXCLUDED.timezone,
		updated_at     = now()`

// ReplacePreferences overwrites the full preference set for a subscriber.
// Preferences are replaced wholesale, never merged.
func (s *Store) ReplacePreferences(ctx context.Context, subscriptionID int64, prefs models.Preferences) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, replacePreferencesQuery,
		subscriptionID,
		string(prefs.Frequency),
		string(prefs.WeeklyDay),
		string(prefs.MonthlyTiming),
		pq.Array(prefs.Pairs),
		prefs.Timezone,
	)
	if err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

const setVerificationTokenQuery = `
	UPDATE subscriptions
	SET verification_token = $2, verification_expires_at = $3, updated_at = now()
	WHERE id = $1`

// SetVerificationToken records a fresh verification token and its deadline,
// replacing any outstanding one.
func (s *Store) SetVerificationToken(ctx context.Context, subscriptionID int64, token string, expiresAt time.Time) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	res, err := s.db.Exec(ctx, setVerificationTokenQuery, subscriptionID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set verification token: subscription %d not found", subscriptionID)
	}
	return nil
}

const confirmByTokenQuery = `
	UPDATE subscriptions
	SET verified_at             = now(),
		consumed_token          = verification_token,
		verification_token      = NULL,
		verification_expires_at = NULL,
		is_active               = TRUE,
		updated_at              = now()
	WHERE verification_token = $1 AND verification_expires_at > $2
	RETURNING email`

// ConfirmByToken atomically consumes an unexpired verification token and
// marks the subscriber verified. The compare-and-set on the token column
// guarantees exactly one concurrent confirm wins; the consumed token is
// retained so repeat clicks on the same link can be recognized.
func (s *Store) ConfirmByToken(ctx context.Context, token string, now time.Time) (string, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	var email string
	err := s.db.QueryRow(ctx, confirmByTokenQuery, token, now).Scan(&email)
	if err == nil {
		return email, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("confirm by token: %w", err)
	}
	return "", s.classifyConfirmMiss(ctx, token)
}

// classifyConfirmMiss distinguishes an already-consumed token from an expired
// or unknown one after the confirm update matched no row.
func (s *Store) classifyConfirmMiss(ctx context.Context, token string) error {
	var email string
	err := s.db.QueryRow(ctx,
		`SELECT email FROM subscriptions WHERE consumed_token = $1`, token).Scan(&email)
	if err == nil {
		return &AlreadyVerifiedError{Email: email}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("classify confirm token: %w", err)
	}

	var expiresAt time.Time
	err = s.db.QueryRow(ctx,
		`SELECT verification_expires_at FROM subscriptions WHERE verification_token = $1`, token).Scan(&expiresAt)
	if err == nil {
		return ErrTokenExpired
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("classify confirm token: %w", err)
	}
	return ErrTokenNotFound
}

// AlreadyVerifiedError reports a confirm against a token that was already
// consumed. It is not a failure for the caller.
type AlreadyVerifiedError struct {
	Email string
}

func (e *AlreadyVerifiedError) Error() string {
	return "verification token already consumed"
}

const deactivateByTokenQuery = `
	UPDATE subscriptions
	SET is_active = FALSE, updated_at = now()
	WHERE unsubscribe_token = $1
	RETURNING email`

// DeactivateByToken turns delivery off for the subscriber holding the token.
// Deactivating an already inactive subscriber is a no-op success, so
// unsubscribe links can be clicked any number of times.
func (s *Store) DeactivateByToken(ctx context.Context, token string) (string, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	var email string
	err := s.db.QueryRow(ctx, deactivateByTokenQuery, token).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("deactivate by token: %w", err)
	}
	return email, nil
}

const deactivateByEmailQuery = `
	UPDATE subscriptions
	SET is_active = FALSE, updated_at = now()
	WHERE email = $1
	RETURNING email`

// DeactivateByEmail is the email-keyed variant of DeactivateByToken.
func (s *Store) DeactivateByEmail(ctx context.Context, email string) (string, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	var got string
	err := s.db.QueryRow(ctx, deactivateByEmailQuery, email).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("deactivate by email: %w", err)
	}
	return got, nil
}

const getByEmailQuery = `
	SELECT s.id, s.email, s.unsubscribe_token, s.verification_token, s.verification_expires_at,
		s.verified_at, s.is_active, s.created_at, s.updated_at,
		p.frequency, p.weekly_day, p.monthly_timing, p.pairs, p.timezone
	FROM subscriptions s
	LEFT JOIN subscription_preferences p ON p.subscription_id = s.id
	WHERE s.email = $1`

// GetByEmail loads a subscriber with preferences, or ErrTokenNotFound when
// the email is unknown.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Subscriber, *models.Preferences, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	var (
		sub       models.Subscriber
		verTok    sql.NullString
		frequency sql.NullString
		weekly    sql.NullString
		monthly   sql.NullString
		pairs     pq.StringArray
		timezone  sql.NullString
	)
	err := s.db.QueryRow(ctx, getByEmailQuery, email).Scan(
		&sub.ID, &sub.Email, &sub.UnsubscribeToken, &verTok, &sub.VerificationExpiresAt,
		&sub.VerifiedAt, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt,
		&frequency, &weekly, &monthly, &pairs, &timezone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get by email: %w", err)
	}
	sub.VerificationToken = verTok.String

	if !frequency.Valid {
		return &sub, nil, nil
	}
	prefs := &models.Preferences{
		Frequency:     models.Frequency(frequency.String),
		WeeklyDay:     models.WeeklyDay(weekly.String),
		MonthlyTiming: models.MonthlyTiming(monthly.String),
		Pairs:         []string(pairs),
		Timezone:      timezone.String,
	}
	return &sub, prefs, nil
}
