package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithFormat_Levels(t *testing.T) {
	l := NewWithFormat("debug", "console")
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l = New("warn")
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))

	l = New("loud")
	assert.True(t, l.Core().Enabled(zap.InfoLevel), "unknown levels fall back to info")
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestContextLogger_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := context.WithValue(context.Background(), SessionIDKey, "s-1")
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")
	ctx = context.WithValue(ctx, TraceIDKey, 42) // wrong type, ignored

	cl.LogError(ctx, errors.New("sink down"), "export failed", zap.String("sink", "s3"))
	cl.LogWarn(ctx, "client_error")
	cl.LogRequest(context.Background(), "GET", "/api/v1/session", 200, 3)

	entries := logs.All()
	require.Len(t, entries, 3)

	fields := entries[0].ContextMap()
	assert.Equal(t, "error_occurred", entries[0].Message)
	assert.Equal(t, "s-1", fields["session_id"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "export failed", fields["message"])
	assert.Equal(t, "sink down", fields["error"])
	assert.NotContains(t, fields, "trace_id")

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "s-1", entries[1].ContextMap()["session_id"])

	assert.NotContains(t, entries[2].ContextMap(), "session_id")
	assert.Equal(t, int64(200), entries[2].ContextMap()["status_code"])
}
