package notifier

import (
	"context"

	logx "remindd/pkg/logx"
)

// LogAdapter writes alerts to the log instead of a chat. It is the delivery
// fallback when no transport is configured, so the daemon stays usable for
// local testing and the alert pipeline keeps its normal shape.
type LogAdapter struct {
	log logx.Logger
}

func NewLogAdapter(log logx.Logger) *LogAdapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogAdapter{log: log}
}

func (a *LogAdapter) Send(ctx context.Context, al Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.log.Info("REMINDER",
		logx.String("id", al.ReminderID),
		logx.String("text", al.Text),
		logx.Bool("vibrate", al.Vibrate),
		logx.String("sound", al.Sound),
		logx.Time("at", al.At))
	return nil
}
