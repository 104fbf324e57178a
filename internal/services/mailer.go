package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"tvicl/server/internal/config"
	"tvicl/server/internal/email"
	"tvicl/server/internal/models"
)

// Mailer hands an outgoing message to the delivery pipeline.
type Mailer interface {
	Enqueue(ctx context.Context, msg email.Message) error
}

func verificationMessage(cfg *config.Config, user *models.User, token string) email.Message {
	link := fmt.Sprintf("%s/verify-email/%s", cfg.ClientURL, url.PathEscape(token))
	return email.Message{
		To:      user.Email,
		Kind:    email.KindVerifyEmail,
		Subject: fmt.Sprintf("Verify your %s account", cfg.AppName),
		Body: fmt.Sprintf("Hello %s,\r\n\r\nPlease verify your email address by opening the link below:\r\n%s\r\n\r\nThis link expires in %s.\r\n",
			user.FullName, link, describeTTL(cfg.VerificationTTL)),
	}
}

func passwordResetMessage(cfg *config.Config, user *models.User, token string) email.Message {
	link := fmt.Sprintf("%s/reset-password/%s", cfg.ClientURL, url.PathEscape(token))
	return email.Message{
		To:      user.Email,
		Kind:    email.KindPasswordReset,
		Subject: fmt.Sprintf("Reset your %s password", cfg.AppName),
		Body: fmt.Sprintf("Hello %s,\r\n\r\nTo choose a new password, open the link below:\r\n%s\r\n\r\nThis link expires in %s. If you did not ask for a reset, ignore this email.\r\n",
			user.FullName, link, describeTTL(cfg.ResetPasswordTTL)),
	}
}

func passwordChangedMessage(cfg *config.Config, user *models.User) email.Message {
	return email.Message{
		To:      user.Email,
		Kind:    email.KindPasswordChanged,
		Subject: fmt.Sprintf("Your %s password was changed", cfg.AppName),
		Body: fmt.Sprintf("Hello %s,\r\n\r\nThe password for your account was just changed and all sessions were signed out.\r\nIf this was not you, reset your password immediately.\r\n",
			user.FullName),
	}
}

// describeTTL renders d as "24 hours" or "30 minutes".
func describeTTL(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int64(d/time.Hour), "hour")
	}
	return plural(int64(d/time.Minute), "minute")
}
