// Package logging builds the zap loggers used by the sagraph command and
// reports pipeline progress with elapsed time.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr. json selects the production
// encoder, otherwise the console encoder of the development config is used.
// Unknown levels fall back to info.
func New(level string, json bool) (*zap.Logger, error) {
	var cfg zap.Config
	if json {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level, info when unknown.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Progress reports pipeline phases with the time elapsed since it was
// created.
type Progress struct {
	start time.Time
	log   *zap.Logger
	now   func() time.Time
}

// NewProgress creates a progress reporter on log.
func NewProgress(log *zap.Logger) *Progress {
	if log == nil {
		log = zap.NewNop()
	}
	return &Progress{start: time.Now(), log: log, now: time.Now}
}

// Elapsed formats the time since start as mm:ss.
func (p *Progress) Elapsed() string {
	elapsed := p.now().Sub(p.start)
	return fmt.Sprintf("%02d:%02d", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}

// Log reports a phase at info level.
func (p *Progress) Log(format string, args ...any) {
	p.log.Info(fmt.Sprintf(format, args...), zap.String("elapsed", p.Elapsed()))
}

// Verbose reports detail at debug level.
func (p *Progress) Verbose(format string, args ...any) {
	if !p.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	p.log.Debug(fmt.Sprintf(format, args...), zap.String("elapsed", p.Elapsed()))
}

// Logger returns the underlying logger.
func (p *Progress) Logger() *zap.Logger { return p.log }
