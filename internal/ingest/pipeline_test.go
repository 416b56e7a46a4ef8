package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/DarkPhilosophy/snapify/internal/config/server"
	"github.com/DarkPhilosophy/snapify/internal/notify"
	"github.com/DarkPhilosophy/snapify/internal/sched"
	"github.com/DarkPhilosophy/snapify/pkg/bus"
	"github.com/DarkPhilosophy/snapify/pkg/db/models"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
	"github.com/DarkPhilosophy/snapify/pkg/log"
	"github.com/DarkPhilosophy/snapify/pkg/media"
)

// promptNotifier simulates a decision surface that can actually prompt.
type promptNotifier struct {
	*notify.LogNotifier
}

func (promptNotifier) CanPrompt() bool { return true }

type pipeFixture struct {
	dir      string
	store    *store.SQLiteStore
	bus      *bus.Bus
	sched    *sched.Scheduler
	events   <-chan bus.Event
	notifier notify.Notifier
	logger   log.LoggerService
}

func newPipeFixture(t *testing.T) *pipeFixture {
	t.Helper()

	logger := log.NewLoggerService("test", config.LogServerConfig{Level: "FATAL", TimeFormat: time.RFC3339})

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	b := bus.NewBus(logger)
	events, cancel := b.Subscribe(256)
	t.Cleanup(cancel)

	notifier := notify.NewLogNotifier(logger, false)

	sc := sched.NewScheduler(sched.SchedulerConfig{
		SweepInterval: 50 * time.Millisecond,
		CountdownTick: 10 * time.Millisecond,
	}, st, b, notifier, logger)
	t.Cleanup(sc.Stop)

	return &pipeFixture{
		dir:      t.TempDir(),
		store:    st,
		bus:      b,
		sched:    sc,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

func (f *pipeFixture) newPipeline(cfg PipelineConfig, n notify.Notifier) *Pipeline {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 10 * time.Millisecond
	}
	if n == nil {
		n = f.notifier
	}
	classifier := media.NewClassifier([]string{f.dir})
	dedup := media.NewDeduplicator(5 * time.Second)
	return NewPipeline(cfg, f.store, f.bus, f.sched, classifier, dedup, n, f.logger)
}

func (f *pipeFixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *pipeFixture) countEvents(kind string) int {
	count := 0
	for {
		select {
		case ev := <-f.events:
			if ev.Kind() == kind {
				count++
			}
		default:
			return count
		}
	}
}

func TestProcessInsertsOnce(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, promptNotifier{f.notifier.(*notify.LogNotifier)})
	ctx := context.Background()

	path := f.writeFile(t, "a.png", "content")

	p.Process(ctx, path)
	p.Process(ctx, path)

	count, err := f.store.CountByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.countEvents("item_added"))
}

func TestProcessRejectsOutOfScope(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, nil)
	ctx := context.Background()

	path := f.writeFile(t, "notes.txt", "content")
	p.Process(ctx, path)

	items, err := f.store.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProcessDropsEmptyFile(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, nil)
	ctx := context.Background()

	path := f.writeFile(t, "empty.png", "")
	p.Process(ctx, path)

	items, err := f.store.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProcessWaitsForLateContent(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true, RetryDelay: 50 * time.Millisecond},
		promptNotifier{f.notifier.(*notify.LogNotifier)})
	ctx := context.Background()

	// Empty at detection time, flushed before the single re-check.
	path := f.writeFile(t, "late.png", "")
	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(path, []byte("flushed"), 0644)
	}()

	p.Process(ctx, path)

	count, err := f.store.CountByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProcessDropsPendingMarker(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, nil)
	ctx := context.Background()

	path := f.writeFile(t, ".pending-123-shot.png", "content")
	p.Process(ctx, path)

	items, err := f.store.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestManualModeLeavesItemUnscheduled(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, promptNotifier{f.notifier.(*notify.LogNotifier)})
	ctx := context.Background()

	path := f.writeFile(t, "a.png", "content")
	p.Process(ctx, path)

	item, err := f.store.GetItemByPath(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, item.DeletionAt)
	assert.False(t, item.IsKept)
	assert.False(t, f.sched.Armed(item.ID))
}

func TestManualModeFallsBackWhenPromptUnavailable(t *testing.T) {
	f := newPipeFixture(t)
	// The default LogNotifier cannot prompt, so manual mode must fall back
	// to automatic scheduling instead of leaving the item undecided.
	p := f.newPipeline(PipelineConfig{ManualMode: true, Delay: time.Hour}, nil)
	ctx := context.Background()

	path := f.writeFile(t, "a.png", "content")
	p.Process(ctx, path)

	item, err := f.store.GetItemByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, item.DeletionAt)
}

func TestAutomaticModeRetiresAfterDelay(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: false, Delay: 60 * time.Millisecond}, nil)
	ctx := context.Background()

	f.sched.Start(ctx)

	path := f.writeFile(t, "a.png", "content")
	p.Process(ctx, path)

	item, err := f.store.GetItemByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, item.DeletionAt)

	require.Eventually(t, func() bool {
		_, err := f.store.GetItemByPath(ctx, path)
		return err == store.ErrNotFound
	}, time.Second, 10*time.Millisecond)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRescanDiffsAgainstStore(t *testing.T) {
	f := newPipeFixture(t)
	p := f.newPipeline(PipelineConfig{ManualMode: true}, promptNotifier{f.notifier.(*notify.LogNotifier)})
	ctx := context.Background()

	tracked := f.writeFile(t, "tracked.png", "content")
	f.writeFile(t, "missed.png", "content")
	f.writeFile(t, "skipped.txt", "content")

	inserted, err := f.store.InsertItem(ctx, &models.MediaItem{
		FilePath: tracked, FileName: "tracked.png", FileSize: 7,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	added, err := p.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	items, err := f.store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// One aggregate event, no per-item storm.
	assert.Equal(t, 1, f.countEvents("library_rescanned"))
	assert.Equal(t, 0, f.countEvents("item_added"))
}
