package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FromEnv builds a logger from LOG_LEVEL and LOG_ENCODING. verbose forces
// debug level.
func FromEnv(verbose bool) (*zap.Logger, error) {
	level := env("LOG_LEVEL", "info")
	if verbose {
		level = "debug"
	}
	return New(level, env("LOG_ENCODING", "console"))
}

// New builds a production zap logger that writes to stderr, leaving stdout
// to the status lines of the commands.
func New(level, encoding string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding
	if cfg.Encoding != "json" {
		cfg.Encoding = "console"
	}
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func env(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
