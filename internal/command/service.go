package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DarkPhilosophy/snapify/internal/ingest"
	"github.com/DarkPhilosophy/snapify/internal/notify"
	"github.com/DarkPhilosophy/snapify/internal/sched"
	"github.com/DarkPhilosophy/snapify/internal/watch"
	"github.com/DarkPhilosophy/snapify/pkg/bus"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
	"github.com/DarkPhilosophy/snapify/pkg/log"
)

// Service is the command surface: it accepts external operations from
// UI/notification collaborators and translates them into store and
// scheduler operations. Store write failures propagate to the caller.
type Service struct {
	store    store.ItemStore
	sched    *sched.Scheduler
	pipeline *ingest.Pipeline
	watcher  *watch.Watcher
	bus      *bus.Bus
	notifier notify.Notifier
	log      log.LoggerService
}

func NewService(st store.ItemStore, sc *sched.Scheduler, p *ingest.Pipeline,
	w *watch.Watcher, b *bus.Bus, n notify.Notifier, logger log.LoggerService) *Service {

	return &Service{
		store:    st,
		sched:    sc,
		pipeline: p,
		watcher:  w,
		bus:      b,
		notifier: n,
		log:      logger.Named("command"),
	}
}

// Mark sets a deletion deadline of now + delay on a non-kept item and arms
// the scheduler.
func (s *Service) Mark(ctx context.Context, id uint, delay time.Duration) error {
	if delay <= 0 {
		return fmt.Errorf("delay must be positive")
	}

	deadline := time.Now().Add(delay)
	if err := s.store.MarkItem(ctx, id, deadline, uuid.NewString()); err != nil {
		return fmt.Errorf("failed to mark item %d: %w", id, err)
	}

	s.sched.Arm(id, deadline)
	s.publishUpdated(ctx, id)
	return nil
}

// Keep flags the item as kept, clears its deadline and cancels any armed
// timer. Keeping an already-retired item reports ErrNotFound.
func (s *Service) Keep(ctx context.Context, id uint) error {
	if err := s.store.KeepItem(ctx, id); err != nil {
		return fmt.Errorf("failed to keep item %d: %w", id, err)
	}

	s.sched.Disarm(id)
	s.notifier.Cancel(id)
	s.publishUpdated(ctx, id)
	return nil
}

// Unkeep clears the kept flag; the item returns to the unscheduled state.
func (s *Service) Unkeep(ctx context.Context, id uint) error {
	if err := s.store.UnkeepItem(ctx, id); err != nil {
		return fmt.Errorf("failed to unkeep item %d: %w", id, err)
	}

	s.publishUpdated(ctx, id)
	return nil
}

// DeleteNow retires the item immediately, cancelling any countdown first.
func (s *Service) DeleteNow(ctx context.Context, id uint) error {
	s.sched.Disarm(id)
	return s.sched.RetireNow(ctx, id)
}

// Dismiss suppresses further notifications for the item. No store change.
func (s *Service) Dismiss(ctx context.Context, id uint) error {
	s.notifier.Dismiss(id)
	return nil
}

// Rescan re-runs the full ingestion scan over the watched folders.
func (s *Service) Rescan(ctx context.Context) (int, error) {
	return s.pipeline.Rescan(ctx)
}

// SetFolders replaces the watched folder set and triggers a rescan.
func (s *Service) SetFolders(ctx context.Context, folders []string) error {
	if len(folders) == 0 {
		return fmt.Errorf("at least one watched folder is required")
	}

	if err := s.watcher.SetFolders(folders); err != nil {
		return err
	}
	s.pipeline.Classifier().SetFolders(folders)

	if _, err := s.pipeline.Rescan(ctx); err != nil {
		return err
	}
	return nil
}

// SetMode switches between manual and automatic scheduling.
func (s *Service) SetMode(ctx context.Context, manual bool) error {
	s.pipeline.SetMode(manual)
	s.log.Info("Scheduling mode set to %s", modeName(manual))
	return nil
}

// SetDelay changes the automatic deletion delay.
func (s *Service) SetDelay(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return fmt.Errorf("delay must be positive")
	}
	s.pipeline.SetDelay(delay)
	return nil
}

func (s *Service) publishUpdated(ctx context.Context, id uint) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return
	}

	var remaining time.Duration
	if item.Marked() {
		remaining = time.Until(*item.DeletionAt)
	}
	s.bus.Publish(bus.ItemUpdated{Item: item, Remaining: remaining})
}

func modeName(manual bool) string {
	if manual {
		return "manual"
	}
	return "automatic"
}
