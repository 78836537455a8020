// internal/subscription/service.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"northbound-api/internal/common/config"
	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/models"
)

// Notifier delivers lifecycle emails. Delivery is best-effort: a send
// failure never fails the operation that triggered it. Enabled reports
// whether anything will actually go out, so callers can word their
// responses honestly.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, confirmURL, unsubscribeURL string) error
	Enabled() bool
}

// SubscribeResult reports the outcome of a subscribe call.
type SubscribeResult struct {
	SubscriptionID       int64
	Email                string
	Created              bool
	VerificationRequired bool
	Message              string
}

// Status is "created" for a first-time subscriber, "updated" otherwise.
func (r *SubscribeResult) Status() string {
	if r.Created {
		return "created"
	}
	return "updated"
}

// ConfirmResult reports the outcome of a confirm call.
type ConfirmResult struct {
	Email           string
	AlreadyVerified bool
}

// Service implements the subscription lifecycle: subscribe with preferences,
// verification-token confirm, and idempotent unsubscribe.
type Service struct {
	store    *Store
	notifier Notifier
	cfg      config.SubscriptionsConfig
	log      logger.Logger
	now      func() time.Time
}

func NewService(store *Store, notifier Notifier, cfg config.SubscriptionsConfig, log logger.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Subscribe registers or updates a subscriber. Preferences replace the
// previous set wholesale. An unverified subscriber gets a fresh verification
// token and a confirmation email on every subscribe, superseding any
// outstanding token; a verified subscriber is updated silently.
func (s *Service) Subscribe(ctx context.Context, email string, prefs models.Preferences) (*SubscribeResult, error) {
	email = models.NormalizeEmail(email)
	prefs.Pairs = models.NormalizePairs(prefs.Pairs)
	if prefs.Timezone == "" {
		prefs.Timezone = s.cfg.DefaultTimezone
	}
	if err := prefs.Validate(); err != nil {
		return nil, apperrors.NewValidationFailedError(err.Error())
	}

	unsubToken, err := newToken()
	if err != nil {
		return nil, apperrors.NewSubscriptionSaveFailedError(err)
	}

	sub, created, err := s.store.UpsertSubscriber(ctx, email, unsubToken)
	if err != nil {
		return nil, apperrors.NewSubscriptionSaveFailedError(err)
	}
	if err := s.store.ReplacePreferences(ctx, sub.ID, prefs); err != nil {
		return nil, apperrors.NewSubscriptionSaveFailedError(err)
	}

	res := &SubscribeResult{
		SubscriptionID:       sub.ID,
		Email:                email,
		Created:              created,
		VerificationRequired: !sub.Verified(),
	}
	switch {
	case !res.VerificationRequired:
		res.Message = "Subscription updated."
	case s.notifier.Enabled():
		res.Message = "Check your email for a confirmation link."
		if err := s.issueVerification(ctx, sub); err != nil {
			return nil, err
		}
	default:
		res.Message = "Subscription saved. Email delivery is currently disabled."
		if err := s.issueVerification(ctx, sub); err != nil {
			return nil, err
		}
	}

	s.log.Info("subscription saved", map[string]interface{}{
		"email":                 email,
		"created":               created,
		"verification_required": res.VerificationRequired,
	})
	return res, nil
}

func (s *Service) issueVerification(ctx context.Context, sub *models.Subscriber) error {
	token, err := newToken()
	if err != nil {
		return apperrors.NewSubscriptionSaveFailedError(err)
	}
	expiresAt := s.now().Add(time.Duration(s.cfg.VerificationTTL) * time.Hour)
	if err := s.store.SetVerificationToken(ctx, sub.ID, token, expiresAt); err != nil {
		return apperrors.NewSubscriptionSaveFailedError(err)
	}

	confirmURL := fmt.Sprintf("%s/confirm?token=%s", s.cfg.SiteBaseURL, token)
	unsubURL := fmt.Sprintf("%s/unsubscribe?token=%s", s.cfg.SiteBaseURL, sub.UnsubscribeToken)

	// Fire and forget: the subscribe call must not block on, or fail
	// because of, email delivery.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendConfirmation(sendCtx, sub.Email, confirmURL, unsubURL); err != nil {
			s.log.WithError(err).Warn("confirmation email failed", map[string]interface{}{
				"email": sub.Email,
			})
		}
	}()
	return nil
}

// Confirm consumes a verification token. A token that was already consumed
// resolves as AlreadyVerified rather than an error, so a repeated click on
// the same link stays a success.
func (s *Service) Confirm(ctx context.Context, token string) (*ConfirmResult, error) {
	if token == "" {
		return nil, apperrors.NewInvalidTokenError("token is required")
	}

	email, err := s.store.ConfirmByToken(ctx, token, s.now())
	if err == nil {
		s.log.Info("subscription verified", map[string]interface{}{"email": email})
		return &ConfirmResult{Email: email}, nil
	}

	var already *AlreadyVerifiedError
	switch {
	case errors.As(err, &already):
		return &ConfirmResult{Email: already.Email, AlreadyVerified: true}, nil
	case errors.Is(err, ErrTokenExpired):
		return nil, apperrors.NewTokenExpiredError("request a new confirmation email by subscribing again")
	case errors.Is(err, ErrTokenNotFound):
		return nil, apperrors.NewInvalidTokenError("verification token not recognized")
	default:
		return nil, apperrors.NewConfirmFailedError(err)
	}
}

// Unsubscribe deactivates delivery for the token's subscriber. It is
// unconditionally idempotent: repeats and unknown tokens both report
// success, so a footer link can never show the user a failure page.
func (s *Service) Unsubscribe(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.NewInvalidTokenError("token is required")
	}

	email, err := s.store.DeactivateByToken(ctx, token)
	switch {
	case err == nil:
		s.log.Info("subscription deactivated", map[string]interface{}{"email": email})
		return email, nil
	case errors.Is(err, ErrTokenNotFound):
		s.log.Info("unsubscribe for unknown token treated as success", nil)
		return "", nil
	default:
		return "", apperrors.NewUnsubscribeFailedError(err)
	}
}

// GetSubscription loads the current state and preferences for an email.
func (s *Service) GetSubscription(ctx context.Context, email string) (*models.Subscriber, *models.Preferences, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, nil, apperrors.NewValidationFailedError("email is required")
	}

	sub, prefs, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return sub, prefs, nil
	case errors.Is(err, ErrTokenNotFound):
		return nil, nil, apperrors.NewSubscriptionNotFoundError("no subscription for this email")
	default:
		return nil, nil, apperrors.NewSubscriptionLookupFailedError(err)
	}
}

// UnsubscribeByEmail is the email-keyed unsubscribe, with the same
// swallow-into-success policy for unknown addresses.
func (s *Service) UnsubscribeByEmail(ctx context.Context, email string) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", apperrors.NewValidationFailedError("email is required")
	}

	got, err := s.store.DeactivateByEmail(ctx, email)
	switch {
	case err == nil:
		s.log.Info("subscription deactivated", map[string]interface{}{"email": got})
		return got, nil
	case errors.Is(err, ErrTokenNotFound):
		s.log.Info("unsubscribe for unknown email treated as success", map[string]interface{}{"email": email})
		return email, nil
	default:
		return "", apperrors.NewUnsubscribeFailedError(err)
	}
}
