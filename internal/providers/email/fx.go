package email

import (
	"github.com/smallbiznis/invoicer/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the mailer once at startup. Without SMTP settings it returns NotConfigured.
func NewFromConfig(cfg config.Config, log *zap.Logger) Mailer {
	if !cfg.Email.Configured() {
		log.Info("smtp not configured, outbound mail disabled")
		return NotConfigured{}
	}
	return NewSMTP(SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		Secure:   cfg.Email.SMTPSecure,
	}, log)
}
