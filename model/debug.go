package model

import (
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// DebugLogger is a leveled logger that stays silent until enabled.
// Records are written through zap, as text or JSON.
type DebugLogger struct {
	mu       sync.RWMutex
	level    LogLevel
	enabled  bool
	jsonMode bool
	output   zapcore.WriteSyncer
	logger   *zap.Logger
}

var defaultLogger *DebugLogger

func init() {
	defaultLogger = NewDebugLogger()
}

// NewDebugLogger creates a logger configured from environment variables:
// FEED_RSS_DEBUG, FEED_RSS_LOG_LEVEL, FEED_RSS_JSON_LOGS and FEED_RSS_LOG_FILE.
func NewDebugLogger() *DebugLogger {
	d := &DebugLogger{
		level:  LogLevelInfo,
		output: zapcore.Lock(os.Stderr),
	}

	if debugMode := os.Getenv("FEED_RSS_DEBUG"); debugMode != "" {
		d.enabled = parseBool(debugMode)
	}
	if logLevel := os.Getenv("FEED_RSS_LOG_LEVEL"); logLevel != "" {
		d.level = parseLogLevel(logLevel)
	}
	if jsonMode := os.Getenv("FEED_RSS_JSON_LOGS"); jsonMode != "" {
		d.jsonMode = parseBool(jsonMode)
	}
	if file := os.Getenv("FEED_RSS_LOG_FILE"); file != "" {
		d.output = zapcore.NewMultiWriteSyncer(
			zapcore.Lock(os.Stderr),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   file,
				MaxSize:    64, // MB
				MaxBackups: 3,
				MaxAge:     7, // days
				Compress:   true,
			}),
		)
	}

	d.rebuild()
	return d
}

func (d *DebugLogger) rebuild() {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var encoder zapcore.Encoder
	if d.jsonMode {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	// level filtering happens in ShouldLog
	d.logger = zap.New(zapcore.NewCore(encoder, d.output, zapcore.DebugLevel))
}

// SetLevel sets the logging level
func (d *DebugLogger) SetLevel(level LogLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.level = level
}

// SetEnabled enables or disables logging
func (d *DebugLogger) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// SetJSONMode switches between console and JSON encoding
func (d *DebugLogger) SetJSONMode(jsonMode bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jsonMode = jsonMode
	d.rebuild()
}

// SetOutput redirects log records to w
func (d *DebugLogger) SetOutput(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = zapcore.AddSync(w)
	d.rebuild()
}

// IsEnabled returns whether logging is enabled
func (d *DebugLogger) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// ShouldLog returns whether a message at the given level should be logged
func (d *DebugLogger) ShouldLog(level LogLevel) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled && level <= d.level
}

// Sync flushes buffered records
func (d *DebugLogger) Sync() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_ = d.logger.Sync()
}

func (d *DebugLogger) log(level LogLevel, message, component, operation, url string, err error, extra map[string]interface{}) {
	if !d.ShouldLog(level) {
		return
	}

	fields := make([]zap.Field, 0, 4+len(extra))
	if component != "" {
		fields = append(fields, zap.String("component", component))
	}
	if operation != "" {
		fields = append(fields, zap.String("operation", operation))
	}
	if url != "" {
		fields = append(fields, zap.String("url", url))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields = append(fields, zap.Any(key, extra[key]))
	}

	d.mu.RLock()
	logger := d.logger
	d.mu.RUnlock()

	switch level {
	case LogLevelError:
		logger.Error(message, fields...)
	case LogLevelWarn:
		logger.Warn(message, fields...)
	case LogLevelInfo:
		logger.Info(message, fields...)
	default:
		logger.Debug(message, fields...)
	}
}

// Debug logs a debug-level message
func (d *DebugLogger) Debug(message string) {
	d.log(LogLevelDebug, message, "", "", "", nil, nil)
}

// DebugWithContext logs a debug-level message with context
func (d *DebugLogger) DebugWithContext(message, component, operation, url string, extra map[string]interface{}) {
	d.log(LogLevelDebug, message, component, operation, url, nil, extra)
}

// Info logs an info-level message
func (d *DebugLogger) Info(message string) {
	d.log(LogLevelInfo, message, "", "", "", nil, nil)
}

// InfoWithContext logs an info-level message with context
func (d *DebugLogger) InfoWithContext(message, component, operation, url string, extra map[string]interface{}) {
	d.log(LogLevelInfo, message, component, operation, url, nil, extra)
}

// WarnWithContext logs a warning-level message with context
func (d *DebugLogger) WarnWithContext(message, component, operation, url string, err error, extra map[string]interface{}) {
	d.log(LogLevelWarn, message, component, operation, url, err, extra)
}

// Error logs an error-level message
func (d *DebugLogger) Error(message string, err error) {
	d.log(LogLevelError, message, "", "", "", err, nil)
}

// LogFeedError logs a FeedError with full context
func (d *DebugLogger) LogFeedError(feedErr *FeedError) {
	if feedErr == nil {
		return
	}

	extra := map[string]interface{}{
		"error_id":   feedErr.ID,
		"error_type": string(feedErr.ErrorType),
		"suggestion": feedErr.Suggestion,
	}
	if feedErr.HTTPStatus != 0 {
		extra["http_status"] = feedErr.HTTPStatus
	}

	d.log(LogLevelError, feedErr.Message, feedErr.Component, feedErr.Operation, feedErr.URL, feedErr.Cause, extra)
}

// Package-level convenience functions using the default logger

// DefaultLogger returns the process-wide logger
func DefaultLogger() *DebugLogger {
	return defaultLogger
}

// SetDebugMode enables or disables debug mode for the default logger
func SetDebugMode(enabled bool) {
	defaultLogger.SetEnabled(enabled)
}

// SetLogLevel sets the log level for the default logger
func SetLogLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// DebugLogWithContext logs a debug message with context
func DebugLogWithContext(message, component, operation, url string, extra map[string]interface{}) {
	defaultLogger.DebugWithContext(message, component, operation, url, extra)
}

// InfoLogWithContext logs an info message with context
func InfoLogWithContext(message, component, operation, url string, extra map[string]interface{}) {
	defaultLogger.InfoWithContext(message, component, operation, url, extra)
}

// WarnLog logs a warning message
func WarnLog(message string, err error) {
	defaultLogger.WarnWithContext(message, "", "", "", err, nil)
}

// LogError logs err, with full context when it is a FeedError
func LogError(message string, err error) {
	var feedErr *FeedError
	if errors.As(err, &feedErr) {
		defaultLogger.LogFeedError(feedErr)
		return
	}
	defaultLogger.Error(message, err)
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "ERROR":
		return LogLevelError
	case "WARN", "WARNING":
		return LogLevelWarn
	case "INFO":
		return LogLevelInfo
	case "DEBUG":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}
