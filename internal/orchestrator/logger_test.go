package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLogger(zap.New(core))

	l.Debug("d", "k", 1)
	l.Info("i")
	l.Warn("w", "task", "transform")
	l.Error("e")
	l.With("workflow_id", "wf-1").Info("scoped")

	entries := logs.All()
	assert.Len(t, entries, 5)
	assert.Equal(t, "d", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].ContextMap()["k"])
	assert.Equal(t, "transform", entries[2].ContextMap()["task"])
	assert.Equal(t, "wf-1", entries[4].ContextMap()["workflow_id"])
}
