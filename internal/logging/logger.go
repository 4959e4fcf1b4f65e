package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DEBUG is the logr verbosity for debug records. zapr maps V(n) to zap level -n.
const DEBUG = 1

const (
	logFileMode = 0o600
	logDirMode  = 0o700
)

func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New returns a JSON logger writing to w.
func New(w io.Writer, level string) (logr.Logger, error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapLevel),
	)

	return zapr.NewLogger(zap.New(core, zap.AddCaller())), nil
}

// NewFile opens path for appending and logs there. The returned closer
// releases the file.
func NewFile(path string, level string) (logr.Logger, io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		return logr.Discard(), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), logDirMode); err != nil {
		return logr.Discard(), nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("open log file: %w", err)
	}

	logger, err := New(file, level)
	if err != nil {
		_ = file.Close()
		return logr.Discard(), nil, err
	}
	return logger, file, nil
}
