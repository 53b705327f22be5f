package enginelog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info().Str("k", "v").Int("n", 1).Uint64("u", 2).Bool("b", true).Err(errors.New("x")).Msg("hello")
		l.Error().Msg("bye")
	})
	assert.False(t, l.Enabled(LevelInfo))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarning)

	l.Debug().Msg("should not appear")
	assert.Empty(t, buf.Bytes())

	l.Warning().Msg("should appear")
	assert.NotEmpty(t, buf.Bytes())
}

func TestDisabledLevelDropsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDisabled)
	l.Error().Msg("nope")
	assert.Empty(t, buf.Bytes())
	assert.False(t, l.Enabled(LevelError))
}

func TestRecordShapeIncludesFieldsAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelTrace)
	l.Info().Str("name", "source").Int("count", 3).Uint64("tick", 7).Bool("ok", true).Msg("tick complete")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "tick complete", rec["msg"])
	assert.Equal(t, "source", rec["name"])
	assert.Equal(t, float64(3), rec["count"])
	assert.Equal(t, float64(7), rec["tick"])
	assert.Equal(t, true, rec["ok"])
}

func TestErrNilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelTrace)
	l.Info().Err(nil).Msg("no error field")
	rec := decodeLine(t, &buf)
	_, hasErr := rec["error"]
	assert.False(t, hasErr)
}

func TestWithAddsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, LevelTrace)
	child := base.With("component", "transport")

	child.Info().Msg("hi")
	rec := decodeLine(t, &buf)
	assert.Equal(t, "transport", rec["component"])
}

func TestWithOnNilLoggerReturnsNil(t *testing.T) {
	var l *Logger
	assert.Nil(t, l.With("k", "v"))
}

func TestLevelStringer(t *testing.T) {
	assert.Equal(t, "disabled", LevelDisabled.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "warning", LevelWarning.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "trace", LevelTrace.String())
}
