// internal/models/subscription.go
package models

import (
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Delivery frequency options.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Weekday options for WEEKLY delivery.
type WeeklyDay string

const (
	WeeklyDayMon WeeklyDay = "MON"
	WeeklyDayTue WeeklyDay = "TUE"
	WeeklyDayWed WeeklyDay = "WED"
	WeeklyDayThu WeeklyDay = "THU"
	WeeklyDayFri WeeklyDay = "FRI"
)

// Timing options for MONTHLY delivery.
type MonthlyTiming string

const (
	MonthlyFirstBusinessDay MonthlyTiming = "FIRST_BUSINESS_DAY"
	MonthlyLastBusinessDay  MonthlyTiming = "LAST_BUSINESS_DAY"
)

// Subscriber is the durable record of one email's subscription state.
type Subscriber struct {
	ID                    int64
	Email                 string
	UnsubscribeToken      string
	VerificationToken     string // empty when no confirmation is outstanding
	VerificationExpiresAt *time.Time
	VerifiedAt            *time.Time
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Verified reports whether email ownership has been confirmed.
func (s *Subscriber) Verified() bool {
	return s.VerifiedAt != nil
}

// Preferences is the delivery configuration attached to a Subscriber.
// It is replaced wholesale on every update, never partially patched.
type Preferences struct {
	Frequency     Frequency     `json:"frequency"`
	WeeklyDay     WeeklyDay     `json:"weekly_day,omitempty"`
	MonthlyTiming MonthlyTiming `json:"monthly_timing,omitempty"`
	Pairs         []string      `json:"pairs"`
	Timezone      string        `json:"timezone,omitempty"`
}

// Validate enforces the conditional-field invariant: weekly_day is populated
// iff frequency is WEEKLY, monthly_timing iff MONTHLY. Any other combination
// is rejected.
func (p Preferences) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Frequency,
			validation.Required,
			validation.In(FrequencyDaily, FrequencyWeekly, FrequencyMonthly),
		),
		validation.Field(&p.WeeklyDay,
			validation.When(p.Frequency == FrequencyWeekly,
				validation.Required.Error("weekly_day is required for WEEKLY frequency"),
				validation.In(WeeklyDayMon, WeeklyDayTue, WeeklyDayWed, WeeklyDayThu, WeeklyDayFri),
			).Else(
				validation.Empty.Error("weekly_day is only allowed for WEEKLY frequency"),
			),
		),
		validation.Field(&p.MonthlyTiming,
			validation.When(p.Frequency == FrequencyMonthly,
				validation.Required.Error("monthly_timing is required for MONTHLY frequency"),
				validation.In(MonthlyFirstBusinessDay, MonthlyLastBusinessDay),
			).Else(
				validation.Empty.Error("monthly_timing is only allowed for MONTHLY frequency"),
			),
		),
		validation.Field(&p.Pairs,
			validation.Required.Error("at least one pair is required"),
		),
	)
}

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePairs uppercases pair codes, maps "/" separators to "_",
// collapses duplicates and sorts for a stable representation.
func NormalizePairs(pairs []string) []string {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p), "/", "_"))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}
