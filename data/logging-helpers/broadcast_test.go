package logginghelpers

import (
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	broadcaster := NewBroadcaster(log.InfoLevel)
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(LevelReportIO)
	logger.AddHook(broadcaster)

	// nobody listening
	logger.Info("dropped")

	id, entries := broadcaster.Subscribe(2)
	assert.Equal(t, 1, broadcaster.Subscribers())

	logger.WithField("course", "101").Info("Found class in progress")
	logger.Debug("below the hook level")
	logger.Warn("second")
	// the buffer is full so this one is lost
	logger.Error("third")

	first := string(<-entries)
	assert.Contains(t, first, "Found class in progress")
	assert.Contains(t, first, "course")
	assert.Contains(t, first, "\x1b[")
	assert.Contains(t, string(<-entries), "second")

	broadcaster.Unsubscribe(id)
	_, ok := <-entries
	require.False(t, ok)
	assert.Equal(t, 0, broadcaster.Subscribers())
	// unknown ids are ignored
	broadcaster.Unsubscribe(id)
}

func TestBroadcasterLevels(t *testing.T) {
	levels := NewBroadcaster(log.WarnLevel).Levels()
	assert.ElementsMatch(t, []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}, levels)
}
