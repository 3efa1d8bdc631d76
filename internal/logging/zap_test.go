package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapLogger(zap.New(core)).With("module", "entities")

	ctx := ContextWithRequestID(context.Background(), "req-1")
	log.Debug(ctx, "dbg")
	log.Info(ctx, "created", "kind", "clients", "id", int64(7))
	log.Warn(ctx, "slow")
	log.Error(ctx, "failed")

	require.Equal(t, 4, logs.Len())

	entry := logs.FilterMessage("created").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "entities", fields["module"])
	assert.Equal(t, "clients", fields["kind"])
	assert.Equal(t, int64(7), fields["id"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestNewZap_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		l, err := NewZap(level, "json", "bizdesk")
		require.NoError(t, err)
		require.NotNil(t, l)
	}
	l, err := NewZap("info", "console", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestNop(t *testing.T) {
	Nop().Info(context.Background(), "discarded", "k", "v")
}
