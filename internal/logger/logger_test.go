package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format, level string
		wantErr       bool
	}{
		{"json", "info", false},
		{"text", "debug", false},
		{"json", "none", false},
		{"json", "loud", true},
		{"xml", "info", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.format, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestMustNewLoggerPanics(t *testing.T) {
	require.Panics(t, func() { MustNewLogger("json", "loud") })
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapLogger{zap.New(core)}

	ctx := WithRequestID(context.Background(), "req-1")
	l.InfoWithContext(ctx, "hello", zap.String("k", "v"))
	l.ErrorWithContext(context.Background(), "plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	require.Equal(t, "v", entries[0].ContextMap()["k"])
	require.NotContains(t, entries[1].ContextMap(), "request_id")
}
