package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"

	"github.com/DarkPhilosophy/snapify/internal/command"
	config "github.com/DarkPhilosophy/snapify/internal/config/server"
	"github.com/DarkPhilosophy/snapify/internal/ingest"
	"github.com/DarkPhilosophy/snapify/internal/notify"
	"github.com/DarkPhilosophy/snapify/internal/sched"
	"github.com/DarkPhilosophy/snapify/internal/watch"
	"github.com/DarkPhilosophy/snapify/pkg/bus"
	"github.com/DarkPhilosophy/snapify/pkg/db/migrations"
	"github.com/DarkPhilosophy/snapify/pkg/db/store"
	"github.com/DarkPhilosophy/snapify/pkg/log"
	"github.com/DarkPhilosophy/snapify/pkg/media"
)

type SnapifyAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	store     *store.SQLiteStore
	bus       *bus.Bus
	notifier  *notify.LogNotifier
	scheduler *sched.Scheduler
	pipeline  *ingest.Pipeline
	watcher   *watch.Watcher
	commands  *command.Service
}

func NewAgent(cfg *config.BaseServerConfig) *SnapifyAgent {
	return &SnapifyAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("snapify", cfg.Log),
	}
}

func (sa *SnapifyAgent) setupServices() error {
	errs := container.Errors{}

	sa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](sa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(sa.log)))

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: sa.cfg.Metadata.SQLite.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to create item store: %w", err)
	}
	sa.store = st

	sa.log.Debug("Registering 'ItemStore'...")
	errs.Add(container.Register[store.SQLiteStore](sa.sc,
		container.With[store.ItemStore](),
		container.WithInstance(sa.store)))

	sa.bus = bus.NewBus(sa.log.Named("bus"))
	sa.notifier = notify.NewLogNotifier(sa.log.Named("notify"), sa.cfg.Retention.NotificationsEnabled)

	sa.scheduler = sched.NewScheduler(sched.SchedulerConfig{
		SweepInterval: sa.cfg.Retention.SweepIntervalDuration(),
	}, sa.store, sa.bus, sa.notifier, sa.log)

	classifier := media.NewClassifier(sa.cfg.Watch.Folders)
	dedup := media.NewDeduplicator(sa.cfg.Watch.DebounceWindowDuration())

	sa.pipeline = ingest.NewPipeline(ingest.PipelineConfig{
		ManualMode: sa.cfg.Retention.ManualMode,
		Delay:      sa.cfg.Retention.DelayDuration(),
	}, sa.store, sa.bus, sa.scheduler, classifier, dedup, sa.notifier, sa.log)

	watcher, err := watch.NewWatcher(sa.log)
	if err != nil {
		return err
	}
	sa.watcher = watcher

	sa.commands = command.NewService(sa.store, sa.scheduler, sa.pipeline,
		sa.watcher, sa.bus, sa.notifier, sa.log)

	sa.log.Debug("Registering 'CommandService'...")
	errs.Add(container.Register[command.Service](sa.sc,
		container.WithInstance(sa.commands)))

	return errs.Errors()
}

// Commands exposes the command surface for external collaborators.
func (sa *SnapifyAgent) Commands() *command.Service {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	return sa.commands
}

func (sa *SnapifyAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	sa.mutex.Lock()

	if err := sa.setupServices(); err != nil {
		sa.mutex.Unlock()
		return err
	}

	if err := sa.store.Connect(ctx); err != nil {
		sa.mutex.Unlock()
		return fmt.Errorf("failed to connect item store: %w", err)
	}

	if err := migrations.NewMigrator(sa.store.DB()).Migrate(ctx); err != nil {
		sa.mutex.Unlock()
		return fmt.Errorf("failed to migrate item store: %w", err)
	}

	if err := sa.watcher.SetFolders(sa.cfg.Watch.Folders); err != nil {
		sa.mutex.Unlock()
		return err
	}

	// Scheduler first so startup rescan discoveries can be armed, then the
	// rescan backstop, then live change processing.
	sa.scheduler.Start(ctx)

	if _, err := sa.pipeline.Rescan(ctx); err != nil {
		sa.log.Error("Startup rescan failed: %v", err)
	}

	sa.wait.Add(2)
	go func() {
		defer sa.wait.Done()
		sa.watcher.Run(ctx)
	}()
	go func() {
		defer sa.wait.Done()
		sa.pipeline.Run(ctx, sa.watcher.Changes())
	}()

	sa.mutex.Unlock()
	sa.log.Info("Snapify agent started")
	<-ctx.Done()

	timeout, err := time.ParseDuration(sa.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sa.scheduler.Stop()

	if err := sa.watcher.Close(); err != nil {
		sa.log.Warn("Failed to close watcher: %v", err)
	}

	if err := sa.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	sa.wait.Wait()
	sa.bus.Close()

	if err := sa.store.Close(); err != nil {
		return fmt.Errorf("failed to close item store: %w", err)
	}
	return nil
}
