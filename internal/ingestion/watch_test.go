package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReingestsWrittenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, cols, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, "live", []string{dir}, 20*time.Millisecond, func(e Event) { events <- e })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "ignored.csv", []byte("a,b"))
	path := writeFile(t, dir, "new.md", []byte("Conteúdo novo para o índice."))

	select {
	case e := <-events:
		assert.Equal(t, path, e.Source)
		assert.Equal(t, StageStored, e.Stage)
		assert.Equal(t, 1, e.Chunks)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	store, err := cols.Open(context.Background(), "live", false)
	require.NoError(t, err)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "new.md", filepath.Base(path))
}

func TestWatch_RemovedFileDropsChunks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, cols, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeFile(t, dir, "old.md", []byte("Texto que vai sumir do índice."))
	_, err := p.Ingest(ctx, "live", []string{path}, nil)
	require.NoError(t, err)

	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, "live", []string{dir}, 20*time.Millisecond, func(e Event) { events <- e })
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case e := <-events:
		assert.Equal(t, path, e.Source)
		assert.Equal(t, StageRemoved, e.Stage)
		assert.NoError(t, e.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	store, err := cols.Open(context.Background(), "live", false)
	require.NoError(t, err)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	cancel()
	require.NoError(t, <-done)
}
