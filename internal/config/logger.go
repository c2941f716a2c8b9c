package config

import (
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger.  Production environments get
// JSON output; dev gets the console encoder.  Both use ISO8601 timestamps
// under the "timestamp" key.
func NewLogger(env, level string) (*zap.Logger, error) {
    cfg := zap.NewProductionConfig()
    if strings.EqualFold(env, "dev") {
        cfg = zap.NewDevelopmentConfig()
    }
    cfg.EncoderConfig.TimeKey = "timestamp"
    cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
    if lvl, err := zapcore.ParseLevel(level); err == nil {
        cfg.Level = zap.NewAtomicLevelAt(lvl)
    }
    return cfg.Build()
}
