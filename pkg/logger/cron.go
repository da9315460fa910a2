package logger

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	sugar *zap.SugaredLogger
}

// Cron adapts l to the cron.Logger interface. Routine scheduler chatter is
// logged at debug level.
func Cron(l *zap.Logger) cron.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return cronLogger{sugar: l.Named("cron").Sugar()}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.sugar.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
