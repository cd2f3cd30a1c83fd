package util

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	loggerOnce    sync.Once
	logFile       *os.File
)

// InitLogger initializes the default logger with the configured level and
// optional log file. Console output goes to stderr.
func InitLogger(level string, filePath string) {
	loggerOnce.Do(func() {
		defaultLogger = newLogger(level, filePath)
	})
}

func newLogger(level string, filePath string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	writers := []io.Writer{console}
	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				logFile = file
				writers = append(writers, file)
			}
		}
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(level)).
		With().Timestamp().Logger()
}

// ParseLevel parses a string log level.
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log returns the default logger for structured, field-based logging.
func Log() *zerolog.Logger {
	InitLogger("info", "")
	return &defaultLogger
}

// CloseLogger closes the log file if open.
func CloseLogger() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	Log().Debug().Msgf(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	Log().Info().Msgf(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	Log().Warn().Msgf(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	Log().Error().Msgf(format, args...)
}
