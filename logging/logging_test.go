package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("nonsense"))
}

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		log, err := New("debug", json)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zap.DebugLevel))
	}
}

func TestProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewProgress(zap.New(core))
	start := p.start
	p.now = func() time.Time { return start.Add(75 * time.Second) }

	p.Log("loaded %d packages", 3)
	p.Verbose("hidden at info level")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "loaded 3 packages", entries[0].Message)
	assert.Equal(t, "01:15", entries[0].ContextMap()["elapsed"])
}
