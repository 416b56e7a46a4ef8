package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DarkPhilosophy/snapify/internal/notify"
	"github.com/DarkPhilosophy/snapify/pkg/bus"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
	"github.com/DarkPhilosophy/snapify/pkg/log"
)

const (
	DefaultSweepInterval = 5 * time.Second
	DefaultCountdownTick = 1 * time.Second
)

// SchedulerConfig holds the tunables of the deletion scheduler.
type SchedulerConfig struct {
	// SweepInterval is the period of the reconciliation sweep.
	SweepInterval time.Duration
	// CountdownTick is the period of the per-item countdown publisher.
	CountdownTick time.Duration
	// Deleter performs the physical file removal.
	Deleter FileDeleter
}

// task is a cancellable background unit tracked in the arenas. Arena
// entries are compared by pointer so a finished task never tears down a
// successor registered under the same id.
type task struct {
	cancel context.CancelFunc
}

// Scheduler owns one cancellable deletion timer and one countdown
// publisher per marked item, plus the periodic reconciliation sweep that
// makes persisted deadlines survive process restarts. The store is the
// single source of truth: timers are transient handles derived from it.
type Scheduler struct {
	mutex      sync.Mutex
	wait       sync.WaitGroup
	timers     map[uint]*task
	countdowns map[uint]*task
	locks      keyedMutex

	ctx    context.Context
	cancel context.CancelFunc

	cfg      SchedulerConfig
	store    store.ItemStore
	bus      *bus.Bus
	notifier notify.Notifier
	log      log.LoggerService
}

func NewScheduler(cfg SchedulerConfig, st store.ItemStore, b *bus.Bus, n notify.Notifier, logger log.LoggerService) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = DefaultCountdownTick
	}
	if cfg.Deleter == nil {
		cfg.Deleter = OSDeleter{}
	}

	return &Scheduler{
		timers:     make(map[uint]*task),
		countdowns: make(map[uint]*task),
		locks:      newKeyedMutex(),
		cfg:        cfg,
		store:      st,
		bus:        b,
		notifier:   n,
		log:        logger.Named("sched"),
	}
}

// Start launches the sweep loop and arms timers for every deadline already
// persisted, recovering state from a previous process.
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	if s.ctx != nil {
		s.mutex.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mutex.Unlock()

	s.Sweep(s.ctx)

	s.wait.Add(1)
	go s.sweepLoop(s.ctx)
}

// Stop cancels all tasks and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mutex.Unlock()

	s.wait.Wait()
}

// Arm schedules deletion of the item at the deadline and starts the
// countdown publisher. Arming an already-armed id restarts both tasks from
// the new deadline.
func (s *Scheduler) Arm(id uint, deadline time.Time) {
	s.mutex.Lock()
	if s.ctx == nil || s.ctx.Err() != nil {
		s.mutex.Unlock()
		return
	}

	if prev, ok := s.timers[id]; ok {
		prev.cancel()
	}
	if prev, ok := s.countdowns[id]; ok {
		prev.cancel()
	}

	timerCtx, timerCancel := context.WithCancel(s.ctx)
	countCtx, countCancel := context.WithCancel(s.ctx)
	timer := &task{cancel: timerCancel}
	count := &task{cancel: countCancel}
	s.timers[id] = timer
	s.countdowns[id] = count
	s.mutex.Unlock()

	s.wait.Add(2)
	go s.runTimer(timerCtx, id, deadline, timer, count)
	go s.runCountdown(countCtx, id, count)
}

// Disarm cancels the deletion timer and countdown for the id, if present.
func (s *Scheduler) Disarm(id uint) {
	s.mutex.Lock()
	if t, ok := s.timers[id]; ok {
		delete(s.timers, id)
		t.cancel()
	}
	if c, ok := s.countdowns[id]; ok {
		delete(s.countdowns, id)
		c.cancel()
	}
	s.mutex.Unlock()
}

// Armed reports whether an in-memory deletion timer exists for the id.
func (s *Scheduler) Armed(id uint) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.timers[id]
	return ok
}

// RetireExpired deletes and removes the item if it is past its deadline.
// Safe to invoke concurrently for the same id; exactly one caller performs
// the retirement, the rest observe a missing row and no-op.
func (s *Scheduler) RetireExpired(ctx context.Context, id uint) error {
	return s.retire(ctx, id, false)
}

// RetireNow retires the item regardless of its deadline or kept flag.
// Backs the DeleteNow command.
func (s *Scheduler) RetireNow(ctx context.Context, id uint) error {
	return s.retire(ctx, id, true)
}

func (s *Scheduler) retire(ctx context.Context, id uint, force bool) error {
	lock := s.locks.acquire(id)
	lock.Lock()
	defer func() {
		lock.Unlock()
		s.locks.release(id, lock)
	}()

	item, err := s.store.GetItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// Already retired by a concurrent caller.
		return nil
	}
	if err != nil {
		return err
	}

	if !force && !item.Expired(time.Now()) {
		// Stale timer: the deadline moved or was cleared after arming.
		return nil
	}

	// Physical removal is best-effort; a missing or undeletable file must
	// never leave a permanently stuck tracked item.
	if err := s.cfg.Deleter.Remove(item); err != nil {
		s.log.Warn("Failed to remove file '%s': %v", item.FilePath, err)
	}

	removed, err := s.store.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		s.bus.Publish(bus.ItemDeleted{ID: id})
		s.notifier.Cancel(id)
		s.log.Info("Retired item %d (%s)", id, item.FileName)
	}

	s.Disarm(id)
	return nil
}

func (s *Scheduler) runTimer(ctx context.Context, id uint, deadline time.Time, timer, count *task) {
	defer s.wait.Done()
	defer s.finish(id, timer, count)

	if wait := time.Until(deadline); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}

	// Retirement must complete even if the scheduler is shutting down;
	// the fired deadline is already persisted state.
	if err := s.RetireExpired(context.Background(), id); err != nil {
		s.log.Error("Failed to retire item %d: %v", id, err)
	}
}

func (s *Scheduler) runCountdown(ctx context.Context, id uint, count *task) {
	defer s.wait.Done()
	defer func() {
		s.mutex.Lock()
		if s.countdowns[id] == count {
			delete(s.countdowns, id)
			count.cancel()
		}
		s.mutex.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.CountdownTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			item, err := s.store.GetItem(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// A failed tick must not stop subsequent ticks.
				s.log.Warn("Countdown tick for item %d failed: %v", id, err)
				continue
			}
			if !item.Marked() {
				return
			}

			remaining := time.Until(*item.DeletionAt)
			if remaining < 0 {
				remaining = 0
			}
			s.bus.Publish(bus.ItemUpdated{Item: item, Remaining: remaining})
			s.notifier.Countdown(item, remaining)
		}
	}
}

// finish removes the tasks from the arenas, but only while they are still
// the current entries for the id.
func (s *Scheduler) finish(id uint, timer, count *task) {
	s.mutex.Lock()
	if s.timers[id] == timer {
		delete(s.timers, id)
		timer.cancel()
	}
	if s.countdowns[id] == count {
		delete(s.countdowns, id)
		count.cancel()
	}
	s.mutex.Unlock()
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wait.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass: retire everything past its deadline,
// cancel in-memory timers whose item is no longer marked, and arm timers
// for marked items that have none (crash recovery and out-of-band edits).
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()

	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		s.log.Error("Sweep failed to query expired items: %v", err)
	} else {
		for _, item := range expired {
			if err := s.RetireExpired(ctx, item.ID); err != nil {
				// One item's failure must not halt the pass.
				s.log.Error("Sweep failed to retire item %d: %v", item.ID, err)
			}
		}
	}

	marked, err := s.store.ListMarked(ctx)
	if err != nil {
		s.log.Error("Sweep failed to query marked items: %v", err)
		return
	}

	deadlines := make(map[uint]time.Time, len(marked))
	for _, item := range marked {
		deadlines[item.ID] = *item.DeletionAt
	}

	s.mutex.Lock()
	var stale []uint
	for id := range s.timers {
		if _, ok := deadlines[id]; !ok {
			stale = append(stale, id)
		}
	}
	var unarmed []uint
	for id := range deadlines {
		if _, ok := s.timers[id]; !ok {
			unarmed = append(unarmed, id)
		}
	}
	s.mutex.Unlock()

	for _, id := range stale {
		s.log.Debug("Cancelling orphaned timer for item %d", id)
		s.Disarm(id)
	}
	for _, id := range unarmed {
		s.Arm(id, deadlines[id])
	}
}
