package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	slog.Handler
}

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestFanoutHandler_RoutesByLevel(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewFanoutHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("component", "sync").WithGroup("round")

	logger.Debug("sync dispatch", "id", 7)
	logger.Warn("sync send", "error", "not connected")

	assert.Contains(t, debug.String(), "sync dispatch")
	assert.Contains(t, debug.String(), "component=sync")
	assert.Contains(t, debug.String(), "round.id=7")
	assert.Contains(t, debug.String(), "sync send")
	assert.NotContains(t, warn.String(), "sync dispatch")
	assert.Contains(t, warn.String(), "sync send")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewFanoutHandler().Enabled(context.Background(), slog.LevelError))
}

func TestFanoutHandler_JoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	h := NewFanoutHandler(text, failingHandler{Handler: text})

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0))
	assert.ErrorContains(t, err, "disk full")
	assert.Contains(t, buf.String(), "msg")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSetup_WritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "fimsync.log")

	closer, err := Setup(Options{Level: "debug", File: logFile, Stdout: &stdout})
	require.NoError(t, err)

	slog.Debug("sync engine start", "queueSize", 16)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sync engine start")
	assert.Contains(t, string(data), "queueSize=16")
	assert.Contains(t, stdout.String(), "sync engine start")
}

func TestSetup_BadLevel(t *testing.T) {
	_, err := Setup(Options{Level: "loud"})
	assert.Error(t, err)
}
