package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardkiosk/internal/models"
)

func TestStyleStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "style.css")
	store, err := NewStyleStorage(path)
	require.NoError(t, err)

	css, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, css)

	require.NoError(t, store.Save("body { background: black; }"))
	css, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "body { background: black; }", css)

	matches, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestConnectivityLogPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity.json")
	log, err := NewConnectivityLog(path, 3)
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		board := "a"
		if i%2 == 1 {
			board = "b"
		}
		require.NoError(t, log.RecordSample(models.ConnectivityStatus{
			Board:     board,
			OK:        i != 2,
			CheckedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, log.RecordTransition(models.Transition{
		Board: "a", From: models.StateOnline, To: models.StateOffline, At: now,
	}))

	assert.Len(t, log.Samples(""), 3)
	assert.Len(t, log.Samples("b"), 2)
	assert.Len(t, log.Transitions("a"), 1)
	assert.Empty(t, log.Transitions("b"))

	reopened, err := NewConnectivityLog(path, 3)
	require.NoError(t, err)
	assert.Equal(t, log.Samples(""), reopened.Samples(""))
	assert.Equal(t, log.Transitions(""), reopened.Transitions(""))
}

func TestConnectivityLogBatchesSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity.json")
	log, err := NewConnectivityLog(path, 0)
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	sample := func(i int) models.ConnectivityStatus {
		return models.ConnectivityStatus{Board: "a", OK: true, CheckedAt: now.Add(time.Duration(i) * 5 * time.Second)}
	}
	onDisk := func() int {
		reopened, err := NewConnectivityLog(path, 0)
		require.NoError(t, err)
		return len(reopened.Samples(""))
	}

	for i := 0; i < defaultSampleBatch-1; i++ {
		require.NoError(t, log.RecordSample(sample(i)))
	}
	assert.Zero(t, onDisk())

	require.NoError(t, log.RecordSample(sample(defaultSampleBatch)))
	assert.Equal(t, defaultSampleBatch, onDisk())

	require.NoError(t, log.RecordSample(sample(defaultSampleBatch+1)))
	assert.Equal(t, defaultSampleBatch, onDisk())
	require.NoError(t, log.Flush())
	assert.Equal(t, defaultSampleBatch+1, onDisk())

	// transitions are written right away together with any pending samples
	require.NoError(t, log.RecordSample(sample(defaultSampleBatch+2)))
	require.NoError(t, log.RecordTransition(models.Transition{
		Board: "a", From: models.StateOnline, To: models.StateOffline, At: now,
	}))
	assert.Equal(t, defaultSampleBatch+2, onDisk())
}

func TestConnectivityLogRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewConnectivityLog(path, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse connectivity log")
}
