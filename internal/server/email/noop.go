package email

import (
	"context"

	"github.com/cghughes/authd/internal/logging"
)

// NoopSender logs instead of sending. It backs development runs without
// mail credentials and tests.
type NoopSender struct {
	logger logging.Logger
}

func NewNoopSender(logger logging.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) SendResetPasswordEmail(ctx context.Context, to string, _ string) error {
	s.logger.Info(ctx, "reset password email suppressed: no mail credentials configured", "to", to)
	return nil
}
