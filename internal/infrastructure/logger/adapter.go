package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"portal-session/internal/application/port/output"
)

var _ output.LoggerPort = (*LoggerAdapter)(nil)

type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Development switches stderr output to the human-readable console encoder.
	Development bool
	// Dir, when set, also writes JSON lines to Dir/<timestamp>_<name>.log.
	Dir  string
	Name string
}

type LoggerAdapter struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

func NewLoggerAdapter(opts Options) (*LoggerAdapter, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEnc zapcore.Encoder
	if opts.Development {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stderrEnc = zapcore.NewConsoleEncoder(devCfg)
	} else {
		stderrEnc = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEnc, zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	if opts.Dir != "" {
		f, err := openLogFile(opts.Dir, opts.Name)
		if err != nil {
			return nil, err
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	return &LoggerAdapter{
		sugar: zap.New(zapcore.NewTee(cores...)).Sugar(),
		file:  file,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *LoggerAdapter {
	return &LoggerAdapter{sugar: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger, e.g. one built with zaptest.
func FromZap(l *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{sugar: l.Sugar()}
}

func openLogFile(dir, name string) (*os.File, error) {
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), sanitize(name))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return file, nil
}

func (l *LoggerAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *LoggerAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *LoggerAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *LoggerAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *LoggerAdapter) WithField(key string, value any) output.LoggerPort {
	return &LoggerAdapter{sugar: l.sugar.With(key, value), file: l.file}
}

func (l *LoggerAdapter) WithFields(fields map[string]any) output.LoggerPort {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &LoggerAdapter{sugar: l.sugar.With(args...), file: l.file}
}

// Zap exposes the underlying logger for libraries that take one directly.
func (l *LoggerAdapter) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *LoggerAdapter) Close() error {
	_ = l.sugar.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "session"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
