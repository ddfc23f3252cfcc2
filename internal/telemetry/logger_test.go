package telemetry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_NilReceiver_NeverPanics(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.Raw("STATS sent=0 peers=0 seen=0")
		l.Info("hello", map[string]any{"k": "v"})
		l.Error("boom", nil)
	})
}

func TestLogger_Raw_WritesVerbatimAfterPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 9000, LevelInfo)

	l.Raw("HELLO from 127.0.0.1:9001")

	line := buf.String()
	require.True(t, strings.HasSuffix(strings.TrimSuffix(line, "\n"), "HELLO from 127.0.0.1:9001"))
	require.Contains(t, line, "[9000]")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 9000, LevelWarn)

	l.Debug("should be dropped", nil)
	l.Info("should also be dropped", nil)
	require.Empty(t, buf.String())

	l.Warn("should appear", nil)
	require.Contains(t, buf.String(), "should appear")
}

func TestLogger_Fields_SortedAndSanitized(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 9000, LevelDebug)

	l.Info("msg", map[string]any{"b": "2", "a": "1\x07"})

	line := buf.String()
	ia := strings.Index(line, "a=")
	ib := strings.Index(line, "b=")
	require.True(t, ia >= 0 && ib >= 0 && ia < ib)
	require.NotContains(t, line, "\x07")
}

func TestLogger_OversizedFieldsTruncated(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 9000, LevelDebug)

	huge := strings.Repeat("x", MaxValLen*2)
	require.NotPanics(t, func() {
		l.Info("msg", map[string]any{"k": huge})
	})

	line := buf.String()
	require.Less(t, len(line), len(huge)+100)
}
