// Package logger configures the process-wide logrus logger
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/amirphl/homecare-hr/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures Log from the logging and deployment configuration.
// The returned io.Closer releases the rotating file, if one was opened.
func Init(cfg config.LoggingConfig, environment string) io.Closer {
	var rotator *lumberjack.Logger
	if cfg.Output == "file" || cfg.Output == "both" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	switch {
	case rotator != nil && cfg.Output == "both":
		Log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	case rotator != nil:
		Log.SetOutput(rotator)
	default:
		Log.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.Level, err)
		Log.SetLevel(logrus.InfoLevel)
	} else {
		Log.SetLevel(level)
	}

	Log.SetFormatter(formatterFor(cfg.Format, environment))
	Log.SetReportCaller(cfg.EnableCaller)

	Log.Debugf("Log level set to: %s", Log.GetLevel().String())

	if rotator == nil {
		return noopCloser{}
	}
	return rotator
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func formatterFor(format, environment string) logrus.Formatter {
	env := strings.ToLower(environment)
	if strings.ToLower(format) == "json" || env == "production" || env == "staging" {
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// Get returns the configured global logger.
func Get() *logrus.Logger {
	return Log
}
