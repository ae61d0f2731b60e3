package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		arg     string
		level   zapcore.Level
		modules map[string]zapcore.Level
	}{
		{arg: "", level: zapcore.ErrorLevel},
		{arg: "registry", level: zapcore.ErrorLevel, modules: map[string]zapcore.Level{"registry": zapcore.DebugLevel}},
		{arg: "warn", level: zapcore.WarnLevel},
		{arg: "WARN", level: zapcore.WarnLevel},
		{arg: "off", level: zapcore.DebugLevel - 1},
		{arg: "info,loom=warn", level: zapcore.InfoLevel, modules: map[string]zapcore.Level{"loom": zapcore.WarnLevel}},
		{arg: "error,bundle=off", level: zapcore.ErrorLevel, modules: map[string]zapcore.Level{"bundle": zapcore.DebugLevel - 1}},
		{arg: "debug,shader=nope", level: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			me := parseFilter(tt.arg)
			assert.Equal(t, tt.level, me.level)
			if tt.modules == nil {
				assert.Empty(t, me.modules)
			} else {
				assert.Equal(t, tt.modules, me.modules)
			}
		})
	}
}

func TestEffectiveLevel(t *testing.T) {
	me := parseFilter("error,registry=debug")
	assert.Equal(t, zapcore.DebugLevel, me.effectiveLevel("registry/registry.go:10"))
	assert.Equal(t, zapcore.ErrorLevel, me.effectiveLevel("bundle/bundle.go:10"))
	assert.Equal(t, zapcore.ErrorLevel, me.effectiveLevel("undefined"))
}
