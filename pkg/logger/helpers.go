package logger

// ForChannel scopes a logger to one channel
func ForChannel(l Logger, channelID int64, name string) Logger {
	return l.WithFields(map[string]interface{}{
		"channel_id":   channelID,
		"channel_name": name,
	})
}

// ForPost scopes a logger to one post
func ForPost(l Logger, postID int64) Logger {
	return l.WithField("post_id", postID)
}

// LogRequest logs a finished HTTP exchange at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of one content fetch
func LogDownload(l Logger, path string, size int64, skipped bool, err error) {
	log := l.WithField("path", path)
	switch {
	case err != nil:
		log.WithError(err).Error("Download failed")
	case skipped:
		log.Debug("Download skipped, file exists")
	default:
		log.WithField("bytes", size).Info("Download completed")
	}
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
