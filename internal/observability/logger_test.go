package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/videx-autofill/internal/config"
)

type syncBuffer struct{ bytes.Buffer }

func (b *syncBuffer) Sync() error { return nil }

func TestInitializeWritesToConsole(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf syncBuffer
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "test",
	}, zapcore.Lock(&buf))

	GetLogger().Info("hello from the test")
	assert.Contains(t, buf.String(), "hello from the test")
	assert.Contains(t, buf.String(), `"logger":"test"`)
}

func TestInitializeOnlyRunsOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var first, second syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, zapcore.Lock(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"}, zapcore.Lock(&second))

	GetLogger().Info("routed to the first writer")
	assert.Contains(t, first.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	assert.NotNil(t, GetLogger())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "nonsense", Format: "json", ServiceName: "lvl"}, zapcore.Lock(&buf))

	GetLogger().Debug("suppressed")
	GetLogger().Info("visible")
	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "visible")
}
