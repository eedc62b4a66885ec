package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ByLCY/jacket/config"
)

func TestInitializeJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "jacket"}, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Debug("hidden")
	logger.Info("已生成打样", zap.Int("pages", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "jacket", entry["logger"])
	assert.Equal(t, "已生成打样", entry["msg"])
	assert.EqualValues(t, 3, entry["pages"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.AddSync(&first))
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, zapcore.AddSync(&second))

	GetLogger().Info("x")
	assert.Contains(t, first.String(), `"logger":"first"`)
	assert.Empty(t, second.String())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "loud", Format: "json"}, zapcore.AddSync(&buf))
	GetLogger().Debug("debug line")
	GetLogger().Info("info line")
	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestFileOutputIsJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "jacket.log")
	var console bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&console))
	GetLogger().Warn("低分辨率原图", zap.Float64("dpi", 72))
	Sync()

	assert.Contains(t, console.String(), "低分辨率原图")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, 72, entry["dpi"])
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}
