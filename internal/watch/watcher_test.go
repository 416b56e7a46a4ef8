package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/DarkPhilosophy/snapify/internal/config/server"
	"github.com/DarkPhilosophy/snapify/pkg/log"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()

	logger := log.NewLoggerService("test", config.LogServerConfig{Level: "FATAL", TimeFormat: time.RFC3339})
	w, err := NewWatcher(logger)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatcherForwardsCreates(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	require.NoError(t, w.SetFolders([]string{dir}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	select {
	case change := <-w.Changes():
		assert.Equal(t, path, change.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal for the created file")
	}
}

func TestWatcherSetFoldersRejectsMissing(t *testing.T) {
	w := newTestWatcher(t)

	err := w.SetFolders([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}

func TestWatcherSetFoldersSwaps(t *testing.T) {
	w := newTestWatcher(t)
	first := t.TempDir()
	second := t.TempDir()

	require.NoError(t, w.SetFolders([]string{first}))
	require.NoError(t, w.SetFolders([]string{second}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Events from the removed folder no longer arrive.
	require.NoError(t, os.WriteFile(filepath.Join(first, "old.png"), []byte("x"), 0644))
	path := filepath.Join(second, "new.png")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	for {
		select {
		case change := <-w.Changes():
			require.Equal(t, path, change.Path)
			return
		case <-time.After(2 * time.Second):
			t.Fatal("expected a change signal from the new folder")
		}
	}
}
