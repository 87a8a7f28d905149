package log

import "fmt"

// RestyLogger bridges a Logger to resty's printf-style logger.
type RestyLogger struct {
	L Logger
}

func (r RestyLogger) Errorf(format string, v ...interface{}) {
	r.L.Error(fmt.Sprintf(format, v...))
}

func (r RestyLogger) Warnf(format string, v ...interface{}) {
	r.L.Warn(fmt.Sprintf(format, v...))
}

func (r RestyLogger) Debugf(format string, v ...interface{}) {
	r.L.Debug(fmt.Sprintf(format, v...))
}

// CronLogger bridges a Logger to cron's key/value logger. Cron's info
// chatter is logged at debug level.
type CronLogger struct {
	L Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debugf("cron: "+msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.WithError(err).Errorf("cron: "+msg, keysAndValues...)
}
