// Package logging holds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxSizeMB = 10

// Config selects the level and sinks of the global logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File, when set, receives a rotated copy of every entry.
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxBackups is how many rotated files are kept.
	MaxBackups int `yaml:"max_backups,omitempty"`
}

var global = atomic.NewPointer(zap.NewNop())

// L returns the global logger. It is a no-op logger until Init runs.
func L() *zap.Logger {
	return global.Load()
}

// ReplaceGlobals installs lg as the global logger.
func ReplaceGlobals(lg *zap.Logger) {
	global.Store(lg)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

// Init builds a logger from cfg writing to stderr and, optionally, a rotated
// file. Stderr gets a console encoder when it is a terminal and JSON
// otherwise; the file sink is always JSON.
func Init(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEnc zapcore.Encoder
	if term.IsTerminal(int(os.Stderr.Fd())) {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stderrEnc = zapcore.NewConsoleEncoder(consoleCfg)
	} else {
		stderrEnc = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEnc, zapcore.Lock(stderrSyncer{os.Stderr}), level),
	}

	if cfg.File != "" {
		lj, err := fileSink(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lj), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// stderrSyncer drops the error fsync returns for pipes and terminals,
// which have nothing to flush.
type stderrSyncer struct {
	*os.File
}

func (s stderrSyncer) Sync() error {
	err := s.File.Sync()
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTTY) {
		return nil
	}
	return err
}

func fileSink(cfg Config) (*lumberjack.Logger, error) {
	if st, err := os.Stat(cfg.File); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %q is a directory", cfg.File)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}, nil
}

type hexHandle uint32

func (h hexHandle) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}

// Handle logs an X resource id as 0x%08x.
func Handle[T ~uint32](key string, v T) zap.Field {
	return zap.Stringer(key, hexHandle(v))
}

// XError logs err, adding the decoded protocol error label when err came
// from the server.
func XError(err error) zap.Field {
	var xerr xgb.Error
	if errors.As(err, &xerr) {
		return zap.Dict("error",
			zap.String("label", ErrorLabel(xerr)),
			zap.Stringer("bad", hexHandle(xerr.BadId())),
			zap.Uint16("seq", xerr.SequenceId()),
		)
	}
	return zap.Error(err)
}

// ErrorLabel extracts the short name ("BadWindow", "BadAccess") of a
// protocol error.
func ErrorLabel(err xgb.Error) string {
	msg := err.Error()
	if i := strings.Index(msg, " {"); i > 0 {
		return msg[:i]
	}
	return msg
}
