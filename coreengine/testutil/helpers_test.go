package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturingLoggerRecordsEntries(t *testing.T) {
	logger := NewCapturingLogger()
	logger.Info("started", "id", 1)
	logger.Warn("slow call", "methodID", 7)

	entries := logger.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "started", entries[0].Message)
	assert.Equal(t, []any{"id", 1}, entries[0].KeysAndValues)
}

func TestCapturingLoggerHasMessage(t *testing.T) {
	logger := NewCapturingLogger()
	logger.Error("boom", "cause", "timeout")

	assert.True(t, logger.HasMessage("error", "boom"))
	assert.False(t, logger.HasMessage("error", "missing"))
	assert.False(t, logger.HasMessage("info", "boom"))
}

func TestEchoImplPingEchoesMessage(t *testing.T) {
	assert.Equal(t, "hello", EchoImpl{}.Ping("hello"))
}
