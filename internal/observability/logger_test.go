// File: internal/observability/logger_test.go
package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vexaline/browsebench/internal/config"
)

type syncBuffer struct {
	strings.Builder
}

func (b *syncBuffer) Sync() error { return nil }

func TestNewWithWriterJSON(t *testing.T) {
	buf := &syncBuffer{}
	logger, err := NewWithWriter(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "bench-test"}, zapcore.AddSync(buf))
	require.NoError(t, err)

	logger.Info("hello from the test")
	out := buf.String()
	assert.Contains(t, out, `"msg":"hello from the test"`)
	assert.Contains(t, out, "bench-test")
}

func TestNewWithWriterRespectsLevel(t *testing.T) {
	buf := &syncBuffer{}
	logger, err := NewWithWriter(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(buf))
	require.NoError(t, err)

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestNewWithWriterBadLevelFallsBack(t *testing.T) {
	buf := &syncBuffer{}
	logger, err := NewWithWriter(config.LoggerConfig{Level: "nonsense", Format: "console"}, zapcore.AddSync(buf))
	require.NoError(t, err)

	logger.Info("info passes at the fallback level")
	assert.Contains(t, buf.String(), "info passes at the fallback level")
}
