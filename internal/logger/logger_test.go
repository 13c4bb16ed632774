package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelInfo})

	log.Info("clip saved", "id", "01ABC")

	assert.Contains(t, buf.String(), `"msg":"clip saved"`)
	assert.Contains(t, buf.String(), `"id":"01ABC"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_PrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelDebug})

	log.With("component", "storage").WithGroup("quota").Warn("usage high", "percent", 96)

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "usage high")
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "quota.percent=96")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelWarn})

	log.Info("hidden")
	log.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))

	l := New(Config{Writer: &bytes.Buffer{}})
	assert.Same(t, l, OrDiscard(l))
}
