package telemetry

import "log"

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// NopLogger discards everything.
func NopLogger() Logger {
	return LoggerFunc(nil)
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
	Observe(key string, value float64)
}

// Metric keys recorded by the replication pipeline.
const (
	MetricConnectionsAccepted = "connections_accepted_total"
	MetricConnectionsClosed   = "connections_closed_total"
	MetricMessagesReceived    = "messages_received_total"
	MetricMessagesSent        = "messages_sent_total"
	MetricBytesReceived       = "bytes_received_total"
	MetricBytesSent           = "bytes_sent_total"
	MetricSpawnedObjects      = "spawned_objects"
	MetricUnknownMessages     = "unknown_messages_total"
	MetricRejectedCommands    = "rejected_commands_total"
	MetricTickSeconds         = "tick_seconds"
	MetricRTTSeconds          = "rtt_seconds"
)
