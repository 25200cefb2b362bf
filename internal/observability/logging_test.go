package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/derelict/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.LoggingConfig{Level: level, Format: "json"}
		logger, err := NewLogger(cfg)
		require.NoError(t, err, "level %q should be valid", level)
		assert.NotNil(t, logger)
	}
}

func TestSplit_NamesEachSubsystem(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	subs := Split(zap.New(core))

	subs.Threat.Info("a")
	subs.Encounter.Info("b")
	subs.Station.Info("c")
	subs.Scripting.Info("d")
	subs.Mission.Info("e")
	subs.Storage.Info("f")
	subs.Lifecycle.Info("g")

	var names []string
	for _, e := range logs.All() {
		names = append(names, e.LoggerName)
	}
	assert.Equal(t, []string{"threat", "encounter", "station", "scripting", "mission", "storage", "lifecycle"}, names)
}

func TestSplit_InheritsRootLevel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	subs := Split(zap.New(core))

	subs.Station.Info("dropped")
	subs.Station.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}
