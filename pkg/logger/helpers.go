package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// orGlobal lets helpers accept a nil logger.
func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// LogRequest logs a finished HTTP exchange at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	l = orGlobal(l)
	switch {
	case statusCode >= 500:
		l.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of fetching one item
func LogDownload(l Logger, mediaKey, dateFolder string, success bool, err error) {
	fields := map[string]interface{}{
		"media_key": mediaKey,
		"success":   success,
	}
	if dateFolder != "" {
		fields["date"] = dateFolder
	}

	entry := orGlobal(l).WithFields(fields)

	switch {
	case err != nil:
		entry.WithError(err).Error("Download failed")
	case success:
		entry.Debug("Download completed")
	default:
		entry.Info("Download skipped")
	}
}

// LogRetry logs a retry decision and the wait before the next attempt
func LogRetry(l Logger, url string, attempt int, wait time.Duration, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"url":     url,
		"attempt": attempt,
		"wait":    wait.String(),
		"reason":  reason,
	}).Warn("Request failed, backing off")
}

// LogMilestone logs batch progress
func LogMilestone(l Logger, succeeded, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(succeeded) / float64(total) * 100
	}

	orGlobal(l).InfoWithFields("Download milestone reached", map[string]interface{}{
		"succeeded":  succeeded,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := orGlobal(l).WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs performance metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	orGlobal(l).InfoWithFields("Performance metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
