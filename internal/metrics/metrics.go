package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmaster_mutations_total",
			Help: "Task mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	RemindersSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmaster_reminders_sent_total",
			Help: "Reminder notifications handed to the notifier",
		},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmaster_persistence_failures_total",
			Help: "Snapshot writes that failed",
		},
	)

	// outcome is one of undone, expired, superseded, dismissed, conflict.
	Undo = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmaster_undo_total",
			Help: "Pending deletions by how they ended",
		},
		[]string{"outcome"},
	)

	Tasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmaster_tasks",
			Help: "Live tasks in the store",
		},
	)
)

// Handler routes /metrics to the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
