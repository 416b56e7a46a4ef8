package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/DarkPhilosophy/snapify/internal/notify"
	"github.com/DarkPhilosophy/snapify/internal/sched"
	"github.com/DarkPhilosophy/snapify/internal/watch"
	"github.com/DarkPhilosophy/snapify/pkg/bus"
	"github.com/DarkPhilosophy/snapify/pkg/db/models"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
	"github.com/DarkPhilosophy/snapify/pkg/log"
	"github.com/DarkPhilosophy/snapify/pkg/media"
)

// DefaultRetryDelay is the wait before the single re-check of a file that
// was detected but not yet flushed.
const DefaultRetryDelay = 500 * time.Millisecond

// PipelineConfig holds the runtime behavior of the ingestion pipeline.
type PipelineConfig struct {
	// ManualMode requires an explicit user decision before any deadline is
	// armed, as long as the notifier can actually prompt for one.
	ManualMode bool
	// Delay is the countdown applied when scheduling automatically.
	Delay time.Duration
	// RetryDelay overrides the not-ready re-check wait; tests shrink it.
	RetryDelay time.Duration
}

// Pipeline consumes change signals, classifies and deduplicates them, and
// inserts new item records. In automatic mode it also arms the deletion
// scheduler for every new item.
type Pipeline struct {
	mutex      sync.RWMutex
	manual     bool
	delay      time.Duration
	retryDelay time.Duration

	store      store.ItemStore
	bus        *bus.Bus
	sched      *sched.Scheduler
	classifier *media.Classifier
	dedup      *media.Deduplicator
	notifier   notify.Notifier
	log        log.LoggerService
}

func NewPipeline(cfg PipelineConfig, st store.ItemStore, b *bus.Bus, sc *sched.Scheduler,
	classifier *media.Classifier, dedup *media.Deduplicator, n notify.Notifier, logger log.LoggerService) *Pipeline {

	if cfg.Delay <= 0 {
		cfg.Delay = time.Minute
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Pipeline{
		manual:     cfg.ManualMode,
		delay:      cfg.Delay,
		retryDelay: cfg.RetryDelay,
		store:      st,
		bus:        b,
		sched:      sc,
		classifier: classifier,
		dedup:      dedup,
		notifier:   n,
		log:        logger.Named("ingest"),
	}
}

// SetMode switches between manual and automatic scheduling.
func (p *Pipeline) SetMode(manual bool) {
	p.mutex.Lock()
	p.manual = manual
	p.mutex.Unlock()
}

// SetDelay changes the automatic deletion delay for future detections.
func (p *Pipeline) SetDelay(delay time.Duration) {
	if delay <= 0 {
		return
	}
	p.mutex.Lock()
	p.delay = delay
	p.mutex.Unlock()
}

// Classifier exposes the pipeline's classifier for folder reconfiguration.
func (p *Pipeline) Classifier() *media.Classifier {
	return p.classifier
}

// Run consumes the change channel until it closes or the context ends.
// Changes are processed one at a time, which keeps detection reasoning
// single-threaded.
func (p *Pipeline) Run(ctx context.Context, changes <-chan watch.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			p.Process(ctx, change.Path)
			p.dedup.Prune(time.Now())
		}
	}
}

// Process runs the full ingestion path for one detected file.
func (p *Pipeline) Process(ctx context.Context, path string) {
	switch p.classifier.Classify(path) {
	case media.Reject:
		return
	case media.NotReady:
		// Still being written; one re-query, then drop silently.
		if !p.sleep(ctx, p.retryDelay) {
			return
		}
		if p.classifier.Classify(path) != media.Accept {
			return
		}
	}

	if !p.dedup.ShouldProcess(path, time.Now()) {
		p.log.Debug("Suppressed duplicate detection for '%s'", path)
		return
	}

	info, err := p.statReadable(ctx, path)
	if err != nil {
		p.log.Debug("Dropping unreadable file '%s': %v (rescan will recover)", path, err)
		return
	}

	item := &models.MediaItem{
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: info.Size(),
	}

	inserted, err := p.store.InsertItem(ctx, item)
	if err != nil {
		p.log.Error("Failed to insert item for '%s': %v", path, err)
		return
	}
	if !inserted {
		p.log.Debug("Path '%s' already tracked", path)
		return
	}

	p.bus.Publish(bus.ItemDetected{TempRef: uuid.NewString(), Path: path})
	p.bus.Publish(bus.ItemAdded{Item: item})
	p.log.Info("Tracking new item %d: %s (%s)", item.ID, item.FileName, humanize.Bytes(uint64(info.Size())))

	p.mutex.RLock()
	manual := p.manual
	delay := p.delay
	p.mutex.RUnlock()

	if manual && p.notifier.CanPrompt() {
		// The decision surface owns the item from here.
		return
	}

	deadline := time.Now().Add(delay)
	workID := uuid.NewString()
	if err := p.store.MarkItem(ctx, item.ID, deadline, workID); err != nil {
		p.log.Error("Failed to mark item %d: %v", item.ID, err)
		return
	}
	p.sched.Arm(item.ID, deadline)
}

// statReadable verifies the entry is non-empty, waiting once for content
// that has not been flushed yet.
func (p *Pipeline) statReadable(ctx context.Context, path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return info, nil
	}

	if !p.sleep(ctx, p.retryDelay) {
		return nil, ctx.Err()
	}

	info, err = os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return info, nil
}

// Rescan enumerates all watched folders, inserts any in-scope file that is
// not yet tracked, and emits one aggregate event. Runs at startup and on
// folder reconfiguration; already-tracked items cause no duplicate work.
func (p *Pipeline) Rescan(ctx context.Context) (int, error) {
	added := 0

	for _, folder := range p.classifier.Folders() {
		err := filepath.WalkDir(folder, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				p.log.Warn("Rescan cannot read '%s': %v", path, err)
				return nil
			}
			if entry.IsDir() || p.classifier.Classify(path) != media.Accept {
				return nil
			}

			if _, err := p.store.GetItemByPath(ctx, path); err == nil {
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			info, err := entry.Info()
			if err != nil || info.Size() == 0 {
				return nil
			}

			item := &models.MediaItem{
				FilePath: path,
				FileName: filepath.Base(path),
				FileSize: info.Size(),
			}
			inserted, err := p.store.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
			return nil
		})
		if err != nil {
			return added, fmt.Errorf("rescan of '%s' failed: %w", folder, err)
		}
	}

	p.bus.Publish(bus.LibraryRescanned{Added: added})
	if added > 0 {
		p.log.Info("Rescan discovered %d new items", added)
	}
	return added, nil
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
