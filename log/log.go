// Package log is the process-wide structured logging facility,
// backed by logrus with optional rotating file output.
package log

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"telemlink/config"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
}

// Init configures level, format, and destination from cfg.  Safe to
// skip entirely; the package defaults to text on stderr at info level.
func Init(cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		base.SetOutput(&lumberjack.Logger{
			Filename:  cfg.FilePath,
			MaxSize:   maxInt(1, cfg.MaxSizeMB),
			MaxAge:    maxInt(1, cfg.MaxAge),
			Compress:  cfg.Compress,
			LocalTime: true,
		})
	default:
		base.SetOutput(os.Stderr)
	}
	return nil
}

// L returns the underlying logrus logger (process-wide singleton).
func L() *logrus.Logger { return base }

// With creates an entry carrying structured fields.
func With(fields logrus.Fields) *logrus.Entry { return base.WithFields(fields) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
