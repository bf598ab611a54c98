package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"taskmaster/internal/config"
	"taskmaster/internal/metrics"
	"taskmaster/internal/notify"
	"taskmaster/internal/reminder"
	"taskmaster/internal/storage"
	"taskmaster/internal/task"
	"taskmaster/internal/undo"
)

// App owns the wired components and their goroutines.
type App struct {
	Core      *Core
	Store     *task.Store
	Broker    *undo.Broker
	Scheduler *reminder.Scheduler

	cfg      config.Config
	logger   zerolog.Logger
	notifier notify.Notifier
	saver    *storage.Saver
	db       io.Closer

	wg sync.WaitGroup
}

// Open opens the database named by cfg and builds the app on top of it.
func Open(cfg config.Config, logger zerolog.Logger, notifier notify.Notifier) (*App, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := Build(db, cfg, logger, notifier)
	a.db = db
	return a, nil
}

// Build wires every component around backend. A snapshot that cannot be
// loaded is discarded and reported through Core.Warning.
func Build(backend storage.Backend, cfg config.Config, logger zerolog.Logger, notifier notify.Notifier) *App {
	a := &App{cfg: cfg, logger: logger, notifier: notifier}

	durations, invalid := cfg.Durations()
	for _, v := range invalid {
		logger.Warn().Str("setting", v).Msg("invalid duration, using default")
	}

	a.saver = storage.NewSaver(backend, logger,
		storage.OnFailure(func(err error) { a.Core.PersistenceFailed(err) }),
		storage.OnRecovered(func() { a.Core.PersistenceRecovered() }),
	)
	a.Store = task.NewStore(task.WithPersister(a.saver))
	loadWarning := seed(a.Store, backend, logger)

	a.Broker = undo.New(a.Store, durations.UndoWindow, undo.WithLogger(logger))
	a.Scheduler = reminder.New(a.Store, notifier,
		reminder.WithInterval(durations.ReminderInterval),
		reminder.WithGrace(durations.ReminderGrace),
		reminder.WithLogger(logger),
	)
	a.Store.Subscribe(a.Scheduler.HandleEvent)
	a.Broker.OnDiscard(func(t task.Task) { a.Scheduler.Forget(t.ID) })

	a.Core = NewCore(a.Store, a.Broker, logger)
	a.Core.SetStatusFilter(parseStatus(cfg.DefaultStatusFilter, logger))
	a.Core.SetPriorityFilter(parsePriority(cfg.DefaultPriorityFilter, logger))
	if loadWarning != "" {
		a.Core.SetWarning(loadWarning)
	}
	return a
}

// Start asks for notification permission and launches the scheduler and,
// when configured, the metrics endpoint. Both stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	if err := a.notifier.RequestPermission(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("notifications unavailable, reminders will only be tracked")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Scheduler.Run(ctx)
	}()

	if a.cfg.MetricsAddr != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := metrics.Serve(ctx, a.cfg.MetricsAddr, a.logger); err != nil {
				a.logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}
}

// Close waits for Start's goroutines, makes a pending deletion permanent,
// flushes the last snapshot and closes the database. Cancel the context
// passed to Start first.
func (a *App) Close() error {
	a.wg.Wait()
	a.Broker.Close()
	a.saver.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func seed(store *task.Store, backend storage.Backend, logger zerolog.Logger) string {
	tasks, err := backend.Load()
	if err == nil {
		err = store.Load(tasks)
	}
	if err != nil {
		logger.Warn().Err(err).Bool("corrupt", errors.Is(err, storage.ErrCorruptSnapshot)).Msg("discarding saved tasks")
		return "Saved tasks could not be read; starting with an empty list"
	}
	logger.Info().Int("tasks", len(tasks)).Msg("tasks loaded")
	return ""
}

func parseStatus(v string, logger zerolog.Logger) task.StatusFilter {
	f, err := task.ParseStatusFilter(v)
	if err != nil {
		logger.Warn().Err(err).Msg("default_status_filter ignored")
	}
	return f
}

func parsePriority(v string, logger zerolog.Logger) task.PriorityFilter {
	f, err := task.ParsePriorityFilter(v)
	if err != nil {
		logger.Warn().Err(err).Msg("default_priority_filter ignored")
	}
	return f
}
