package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetAndLog(t *testing.T) {
	// Not parallel: mutates the global logger
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Infof("schedule %s ran", "flights")
	Warnw("schedule failed", "schedule", "crew", "attempt", 2)
	Debug("recompute")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "schedule flights ran", entries[0].Message)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "crew", entries[1].ContextMap()["schedule"])
	assert.Equal(t, "recompute", entries[2].Message)
}

func TestGetNeverNil(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, Get())
}
