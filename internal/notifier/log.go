package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer writes mail to the log instead of the wire. Used in development
// and whenever no SMTP host is configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(ctx context.Context, to []string, subject, body string) error {
	l.logger.Info().
		Strs("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (log only)")
	return nil
}
