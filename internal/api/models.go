// internal/api/models.go
package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"northbound-api/internal/models"
)

// SubscribeRequest is the POST /v1/subscriptions body.
type SubscribeRequest struct {
	Email         string   `json:"email"`
	Frequency     string   `json:"frequency"`
	WeeklyDay     string   `json:"weekly_day"`
	MonthlyTiming string   `json:"monthly_timing"`
	Pairs         []string `json:"pairs"`
	Timezone      string   `json:"timezone"`
}

// Validate checks the request surface; preference semantics are validated
// downstream against the domain rules.
func (r SubscribeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Frequency, validation.Required),
		validation.Field(&r.Pairs, validation.Required),
	)
}

// Preferences maps the request onto the domain preference set.
func (r SubscribeRequest) Preferences() models.Preferences {
	return models.Preferences{
		Frequency:     models.Frequency(r.Frequency),
		WeeklyDay:     models.WeeklyDay(r.WeeklyDay),
		MonthlyTiming: models.MonthlyTiming(r.MonthlyTiming),
		Pairs:         r.Pairs,
		Timezone:      r.Timezone,
	}
}

// ConfirmRequest is the POST /v1/subscriptions/confirm body.
type ConfirmRequest struct {
	Token string `json:"token"`
}

func (r ConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// UnsubscribeRequest accepts either the emailed token or a bare email
// address, but not both.
type UnsubscribeRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (r UnsubscribeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token,
			validation.Required.When(r.Email == "").Error("either token or email is required"),
			validation.Empty.When(r.Email != "").Error("provide either token or email, not both"),
		),
		validation.Field(&r.Email,
			validation.When(r.Email != "", is.Email),
		),
	)
}

// SubscribeResponse acknowledges a subscribe call.
type SubscribeResponse struct {
	SubscriptionID       int64  `json:"subscription_id"`
	Email                string `json:"email"`
	Status               string `json:"status"`
	VerificationRequired bool   `json:"verification_required"`
	Message              string `json:"message"`
}

// ConfirmResponse acknowledges a confirm call.
type ConfirmResponse struct {
	Status  string `json:"status"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// UnsubscribeResponse acknowledges an unsubscribe call.
type UnsubscribeResponse struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// SubscriptionStatusResponse is the GET /v1/subscriptions body.
type SubscriptionStatusResponse struct {
	Email         string   `json:"email"`
	Status        string   `json:"status"`
	Verified      bool     `json:"verified"`
	Frequency     string   `json:"frequency,omitempty"`
	WeeklyDay     string   `json:"weekly_day,omitempty"`
	MonthlyTiming string   `json:"monthly_timing,omitempty"`
	Pairs         []string `json:"pairs,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

// RateLimitedResponse is the 429 body.
type RateLimitedResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	Limit             int    `json:"limit"`
	Remaining         int    `json:"remaining"`
	ResetAt           string `json:"reset_at"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// HealthResponse is the GET /v1/health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}
