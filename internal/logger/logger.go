package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LevelEnv holds the level and per-package filters, eg: "info,registry=debug"
	LevelEnv = "LOOM_LOG"
	// FileEnv, when set, also writes log lines to a rotating file at that path.
	FileEnv = "LOOM_LOG_FILE"
)

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "module"
	_ = zap.RegisterEncoder("module", newModuleEncoder)
	// this must be at debug level because we handle the level ourselves
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, _ := cfg.Build()
	if path := os.Getenv(FileEnv); path != "" {
		enc, _ := newModuleEncoder(cfg.EncoderConfig)
		fileCore := zapcore.NewCore(enc, zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			LocalTime:  true,
		}), cfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	return logger.Sugar()
}

var (
	Logger = newLogger()
	Debugw = Logger.Debugw
	Debug  = Logger.Debug
	Debugf = Logger.Debugf
	Info   = Logger.Info
	Infow  = Logger.Infow
	Warn   = Logger.Warn
)

func newModuleEncoder(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
	me := parseFilter(os.Getenv(LevelEnv))
	me.Encoder = zapcore.NewConsoleEncoder(cfg)
	return me, nil
}

func stringToLevel(str string) (zapcore.Level, bool) {
	for _, lvl := range []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
		zapcore.PanicLevel,
		zapcore.FatalLevel} {
		if str == lvl.String() {
			return lvl, true
		}
	}
	if str == "off" {
		return zapcore.DebugLevel - 1, true
	}
	return 0, false
}

func parseFilter(val string) moduleEncoder {
	me := moduleEncoder{
		level:   zapcore.ErrorLevel,
		modules: map[string]zapcore.Level{},
	}
	if val == "" {
		return me
	}
	// "error,registry=warn"
	for _, match := range strings.Split(strings.ToLower(val), ",") {
		lvl, found := stringToLevel(match)
		switch {
		case found:
			me.level = lvl
		case !strings.Contains(match, "="): // bare package name
			me.modules[match] = zapcore.DebugLevel
		default: // ignore if malformed
			parts := strings.Split(match, "=")
			if len(parts) == 2 {
				if lvl, found := stringToLevel(parts[1]); found {
					me.modules[parts[0]] = lvl
				}
			}
		}
	}
	return me
}

type moduleEncoder struct {
	zapcore.Encoder
	level   zapcore.Level
	modules map[string]zapcore.Level
}

func (me moduleEncoder) Clone() zapcore.Encoder {
	return moduleEncoder{Encoder: me.Encoder.Clone(), level: me.level, modules: me.modules}
}

func (me moduleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := me.Encoder.EncodeEntry(entry, fields)
	if entry.Level < me.effectiveLevel(entry.Caller.TrimmedPath()) {
		line.Reset()
	}
	return line, err
}

// effectiveLevel picks the package override for a caller like
// "registry/registry.go:42", falling back to the global level.
func (me moduleEncoder) effectiveLevel(caller string) zapcore.Level {
	if caller == "undefined" {
		return me.level
	}
	if idx := strings.IndexRune(caller, '/'); idx > 0 {
		if lvl, found := me.modules[caller[:idx]]; found {
			return lvl
		}
	}
	return me.level
}

func Print(a ...interface{}) {
	fmt.Fprintln(os.Stderr, a...)
}
func Printfln(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
}
