package push

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a push notification to a single device token.
// Delivery is best-effort; callers never treat a failure as fatal.
type Sender interface {
	Send(ctx context.Context, deviceToken, title, body string) error
}

// LogSender writes pushes to the log instead of a real gateway.
// Default in development and self-hosted deployments without a
// configured push provider.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, deviceToken, title, body string) error {
	_ = ctx
	s.log.Info("push notification",
		zap.String("device_token", deviceToken),
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}

// NoOpSender drops every push.
type NoOpSender struct{}

func (NoOpSender) Send(ctx context.Context, deviceToken, title, body string) error {
	return nil
}
