// Package logger provides the structured logging interface used across fcsync.
//
// It wraps zerolog with a small interface so components can be handed a
// scoped logger (per channel, per post) and tests can swap in TestLogger or
// NewNopLogger.
//
//	log, err := logger.New(&cfg.Logging)
//	chLog := logger.ForChannel(log, channel.ID, channel.Name)
//	chLog.WithField("page", 2).Info("Feed page fetched")
//
// Console output is colorized and written to stderr. Setting Logging.JSON
// switches the console to raw JSON lines, and Logging.File additionally
// appends JSON lines to a file.
package logger
