// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/models"
	"northbound-api/internal/predictions"
	"northbound-api/internal/subscription"
)

// SubscriptionService is the lifecycle surface the handlers call.
type SubscriptionService interface {
	Subscribe(ctx context.Context, email string, prefs models.Preferences) (*subscription.SubscribeResult, error)
	Confirm(ctx context.Context, token string) (*subscription.ConfirmResult, error)
	Unsubscribe(ctx context.Context, token string) (string, error)
	UnsubscribeByEmail(ctx context.Context, email string) (string, error)
	GetSubscription(ctx context.Context, email string) (*models.Subscriber, *models.Preferences, error)
}

// PredictionsService serves the latest snapshot.
type PredictionsService interface {
	Latest(ctx context.Context) (*models.PredictionsSnapshot, error)
}

// Pinger reports backing-store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	subs        SubscriptionService
	predictions PredictionsService
	postgres    Pinger
	redis       Pinger
	version     string
	log         logger.Logger
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK
	overall := "ok"

	if err := h.postgres.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status, overall = http.StatusServiceUnavailable, "degraded"
	} else {
		checks["postgres"] = "ok"
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			// Redis only backs the cache; report but stay healthy.
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, HealthResponse{Status: overall, Version: h.version, Checks: checks})
}

func (h *handlers) latestPredictions(c *gin.Context) {
	snap, err := h.predictions.Latest(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	var pairs []string
	if raw := c.Query("pairs"); raw != "" {
		pairs = models.NormalizePairs(strings.Split(raw, ","))
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.renderError(c, apperrors.NewValidationFailedError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, predictions.FilterSnapshot(snap, pairs, limit))
}

func (h *handlers) subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	res, err := h.subs.Subscribe(c.Request.Context(), req.Email, req.Preferences())
	if err != nil {
		h.renderError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, SubscribeResponse{
		SubscriptionID:       res.SubscriptionID,
		Email:                res.Email,
		Status:               res.Status(),
		VerificationRequired: res.VerificationRequired,
		Message:              res.Message,
	})
}

func (h *handlers) getSubscription(c *gin.Context) {
	email := c.Query("email")
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError("email: "+err.Error()))
		return
	}

	sub, prefs, err := h.subs.GetSubscription(c.Request.Context(), email)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := SubscriptionStatusResponse{
		Email:    sub.Email,
		Status:   "active",
		Verified: sub.Verified(),
	}
	if !sub.IsActive {
		resp.Status = "unsubscribed"
	}
	if prefs != nil {
		resp.Frequency = string(prefs.Frequency)
		resp.WeeklyDay = string(prefs.WeeklyDay)
		resp.MonthlyTiming = string(prefs.MonthlyTiming)
		resp.Pairs = prefs.Pairs
		resp.Timezone = prefs.Timezone
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError("request body is not valid JSON"))
		return
	}
	// Accept the token from the query string too, so emailed links can POST
	// through a plain form.
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if err := req.Validate(); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	res, err := h.subs.Confirm(c.Request.Context(), req.Token)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := ConfirmResponse{Status: "verified", Email: res.Email, Message: "Subscription confirmed."}
	if res.AlreadyVerified {
		resp.Status = "alreadyVerified"
		resp.Message = "Subscription was already confirmed."
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) unsubscribe(c *gin.Context) {
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError("request body is not valid JSON"))
		return
	}
	if req.Token == "" && req.Email == "" {
		req.Token = c.Query("token")
	}
	if err := req.Validate(); err != nil {
		h.renderError(c, apperrors.NewValidationFailedError(err.Error()))
		return
	}

	var (
		email string
		err   error
	)
	if req.Token != "" {
		email, err = h.subs.Unsubscribe(c.Request.Context(), req.Token)
	} else {
		email, err = h.subs.UnsubscribeByEmail(c.Request.Context(), req.Email)
	}
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, UnsubscribeResponse{Email: email, Status: "unsubscribed"})
}

// renderError maps application errors onto HTTP statuses.
func (h *handlers) renderError(c *gin.Context, err error) {
	var stdErr *apperrors.StandardError
	if !errors.As(err, &stdErr) {
		h.log.WithError(err).Error("unclassified handler error", map[string]interface{}{
			"request_id": c.GetString(requestIDKey),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Code:      "INTERNAL_ERROR",
			Message:   "Internal server error",
			RequestID: c.GetString(requestIDKey),
		})
		return
	}

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case apperrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.ErrCodeInvalidToken, apperrors.ErrCodeSubscriptionNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeTokenExpired:
		status = http.StatusGone
	case apperrors.ErrCodeMissingAPIKey, apperrors.ErrCodeInvalidAPIKey:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case apperrors.ErrCodePredictionsError:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.log.WithError(stdErr).Error("request failed", map[string]interface{}{
			"code":       string(stdErr.Code),
			"request_id": c.GetString(requestIDKey),
		})
	}
	abortWithError(c, status, stdErr)
}
