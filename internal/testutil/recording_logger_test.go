package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
)

func TestRecordingLogger_CapturesLevels(t *testing.T) {
	log := NewRecordingLogger()

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")
	log.Fatal("f")

	entries := log.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "debug", entries[0].Level)
	assert.Equal(t, "fatal", entries[4].Level)
	assert.True(t, log.Has("warn", "w"))
	assert.False(t, log.Has("warn", "x"))
}

func TestRecordingLogger_WithSharesSink(t *testing.T) {
	root := NewRecordingLogger()
	child := root.With(logging.String("case_id", "case-7"))

	child.Info("snapshot built", logging.Int("documents", 3))

	entries := root.Entries()
	require.Len(t, entries, 1)

	v, ok := entries[0].Field("case_id")
	require.True(t, ok)
	assert.Equal(t, "case-7", v)

	v, ok = entries[0].Field("documents")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestRecordingLogger_WithDoesNotMutateParent(t *testing.T) {
	root := NewRecordingLogger()
	root.With(logging.String("k", "v"))

	root.Info("plain")

	entries := root.Entries()
	require.Len(t, entries, 1)
	_, ok := entries[0].Field("k")
	assert.False(t, ok)
}

func TestRecordingLogger_NamedJoinsWithDots(t *testing.T) {
	root := NewRecordingLogger()
	app := root.Named("intake")
	sub := app.Named("assist")

	sub.Warn("assist unavailable, continuing rule-based")

	entries := root.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "intake.assist", entries[0].Name)
	assert.True(t, root.HasContaining("warn", "assist unavailable"))
}

func TestRecordingLogger_EntriesAtFilters(t *testing.T) {
	log := NewRecordingLogger()
	log.Info("one")
	log.Warn("two")
	log.Warn("three")

	warns := log.EntriesAt("warn")
	require.Len(t, warns, 2)
	assert.Equal(t, "two", warns[0].Message)
	assert.Empty(t, log.EntriesAt("error"))
}

func TestRecordingLogger_Reset(t *testing.T) {
	log := NewRecordingLogger()
	log.Info("before")
	log.Reset()
	log.Info("after")

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "after", entries[0].Message)
}

func TestRecordingLogger_ConcurrentUse(t *testing.T) {
	log := NewRecordingLogger()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.With(logging.Int("worker", j)).Info("tick")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, log.Entries(), 400)
}

func TestRecordingLogger_SatisfiesInterface(t *testing.T) {
	var _ logging.Logger = NewRecordingLogger()
	var _ logging.Logger = NewRecordingLogger().With(logging.String("k", "v"))
	var _ logging.Logger = NewRecordingLogger().Named("n")
}
