package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLReturnsNonNilBeforeInit(t *testing.T) {
	require.NotNil(t, L())
}

func TestInitAppliesLevel(t *testing.T) {
	Init(&Config{Level: "warn", Format: FormatText})
	l := L()
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	Init(&Config{Level: "debug", Format: FormatText})
	assert.True(t, L().Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestWithAttachesAttributes(t *testing.T) {
	Init(&Config{Level: "info", Format: FormatJSON, Component: "test"})
	require.NotNil(t, With("user_id", "u1"))
}
