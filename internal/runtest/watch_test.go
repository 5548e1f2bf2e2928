package runtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runvet/internal/runbook"
)

func TestIsSuiteFile(t *testing.T) {
	assert.True(t, isSuiteFile("/docs/deploy/runbook.mdx"))
	assert.True(t, isSuiteFile("/docs/deploy/runbook_test.yml"))
	assert.False(t, isSuiteFile("/docs/deploy/notes.md"))
	assert.False(t, isSuiteFile("/docs/deploy/script.sh"))
}

func TestWatcherSignalsOnRunbookChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runbook.EntryFile)
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0644))

	w, err := NewWatcher([]string{path}, NewSilentLogger())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := w.Changes(ctx)

	require.NoError(t, os.WriteFile(path, []byte("# v2\n"), 0644))

	select {
	case changed := <-changes:
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal received")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runbook.EntryFile)
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0644))
	configPath := filepath.Join(dir, ConfigFile)

	w, err := NewWatcher([]string{path}, NewSilentLogger())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := w.Changes(ctx)

	// A burst of writes, including the sibling config, should collapse into
	// a single signal for the runbook.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("# edit\n"), 0644))
		require.NoError(t, os.WriteFile(configPath, []byte("tests:\n  - name: a\n"), 0644))
	}

	select {
	case changed := <-changes:
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal received")
	}

	// The quiet period after the burst should produce no further signals.
	select {
	case extra := <-changes:
		t.Fatalf("unexpected second signal for %s", extra)
	case <-time.After(2 * DefaultDebounceInterval):
	}
}

func TestWatcherStopClosesChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runbook.EntryFile)
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0644))

	w, err := NewWatcher([]string{path}, NewSilentLogger())
	require.NoError(t, err)

	changes := w.Changes(context.Background())
	w.Stop()

	select {
	case _, ok := <-changes:
		assert.False(t, ok, "channel should be closed after Stop")
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after Stop")
	}
}

func TestWatcherStopDuringDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runbook.EntryFile)
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0644))

	// Stopping right as the debounce timer expires must never send on the
	// closed output channel. Short intervals and many rounds make the
	// window easy to hit.
	for i := 0; i < 50; i++ {
		w, err := NewWatcher([]string{path}, NewSilentLogger())
		require.NoError(t, err)
		w.interval = time.Millisecond

		changes := w.Changes(context.Background())
		require.NoError(t, os.WriteFile(path, []byte("# edit\n"), 0644))

		time.Sleep(time.Millisecond)
		w.Stop()

		// Drain until closed; a fired timer may still have delivered a
		// buffered signal, which is fine.
		for range changes {
		}
	}
}

func TestWatcherIgnoresUnwatchedDirectories(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(watched, runbook.EntryFile)
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0644))

	w, err := NewWatcher([]string{path}, NewSilentLogger())
	require.NoError(t, err)
	defer w.Stop()

	// Only the runbook's directory is registered.
	assert.Len(t, w.dirIndex, 1)
	assert.Equal(t, path, w.dirIndex[watched])
}
