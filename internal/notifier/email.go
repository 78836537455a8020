// internal/notifier/email.go
package notifier

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"northbound-api/internal/common/config"
	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/metrics"
)

// SESService is the slice of the SES client the notifier needs.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// EmailNotifier sends subscription lifecycle email through SES. With email
// disabled in config it logs the would-be send and reports success, which
// keeps local development working without SES credentials.
type EmailNotifier struct {
	ses SESService
	cfg config.NotificationConfig
	log logger.Logger
}

func NewEmailNotifier(ses SESService, cfg config.NotificationConfig, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{ses: ses, cfg: cfg, log: log}
}

// Enabled reports whether outbound email is configured on.
func (n *EmailNotifier) Enabled() bool {
	return n.cfg.Email.Enabled
}

// SendConfirmation delivers the verify-your-email message with both the
// confirmation and unsubscribe links.
func (n *EmailNotifier) SendConfirmation(ctx context.Context, email, confirmURL, unsubscribeURL string) error {
	if !n.cfg.Email.Enabled {
		n.log.Info("email disabled, skipping confirmation send", map[string]interface{}{
			"email": email,
		})
		metrics.ConfirmationEmailsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	subject := "Confirm your NorthBound signal subscription"
	textBody := fmt.Sprintf(
		"Confirm your subscription to NorthBound FX signals:\n\n%s\n\n"+
			"The link expires in 24 hours. If you did not request this, ignore this email.\n\n"+
			"Unsubscribe at any time: %s\n",
		confirmURL, unsubscribeURL,
	)
	htmlBody := fmt.Sprintf(
		`<p>Confirm your subscription to NorthBound FX signals:</p>`+
			`<p><a href="%s">Confirm subscription</a></p>`+
			`<p>The link expires in 24 hours. If you did not request this, ignore this email.</p>`+
			`<p><a href="%s">Unsubscribe</a> at any time.</p>`,
		confirmURL, unsubscribeURL,
	)

	input := &ses.SendEmailInput{
		Source: awssdk.String(n.cfg.Email.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(textBody)},
				Html: &types.Content{Data: awssdk.String(htmlBody)},
			},
		},
	}

	if _, err := n.ses.SendEmail(ctx, input); err != nil {
		metrics.ConfirmationEmailsSent.WithLabelValues("failed").Inc()
		return apperrors.NewNotificationSendFailedError(err)
	}

	metrics.ConfirmationEmailsSent.WithLabelValues("sent").Inc()
	n.log.Info("confirmation email sent", map[string]interface{}{"email": email})
	return nil
}
