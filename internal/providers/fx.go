package providers

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/providers/email"
	"github.com/chillserv/fieldops/internal/providers/pdf"
	"github.com/chillserv/fieldops/internal/providers/push"
)

var Module = fx.Module("providers",
	fx.Provide(
		newPushSender,
		newEmailProvider,
		pdf.NewProvider,
		NewCompletionMailer,
	),
)

func newPushSender(cfg config.Config, log *zap.Logger) push.Sender {
	switch cfg.PushProvider {
	case "noop", "none":
		return push.NoOpSender{}
	default:
		return push.NewLogSender(log.Named("push"))
	}
}

func newEmailProvider(cfg config.Config) email.Provider {
	if cfg.SMTP.Host == "" {
		return &email.NoOpProvider{}
	}
	return email.NewSMTP(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}
