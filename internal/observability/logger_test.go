package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/stagehand/internal/config"
)

func testLoggerConfig() config.LoggerConfig {
	cfg := config.NewDefaultConfig().Logger
	cfg.Level = "debug"
	cfg.LogFile = ""
	return cfg
}

func TestInitializeAndGetLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(testLoggerConfig(), zapcore.AddSync(&buf))

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("hello from test", zap.String("key", "value"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "hello from test")
	assert.Contains(t, out, "value")
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(testLoggerConfig(), zapcore.AddSync(&first))
	Initialize(testLoggerConfig(), zapcore.AddSync(&second))

	GetLogger().Info("routed to the first writer")
	require.NoError(t, GetLogger().Sync())

	assert.Contains(t, first.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, strings.Contains(logger.Name(), "fallback"))
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Level = "warn"

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Debug("should be filtered")
	logger.Warn("should appear")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestColorizedLevelEncoder(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Format = "console"

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	GetLogger().Error("painted red")
	require.NoError(t, GetLogger().Sync())

	out := buf.String()
	assert.Contains(t, out, colorRed)
	assert.Contains(t, out, "ERROR")
}
