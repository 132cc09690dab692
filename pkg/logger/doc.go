// Package logger provides structured logging for fxarchive on top of zerolog.
//
// Console output is colorized and goes to stderr. When a log file is
// configured, JSON lines are also written to it and rotated by size with
// lumberjack.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("media_key", key).Info("saved")
//
// The Log* helpers give recurring events (downloads, retries, milestones,
// component lifecycle) a consistent shape. TestLogger records messages in
// memory for tests.
package logger
