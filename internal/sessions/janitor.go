package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultStaleAfter bounds how long a session may sit with is_processing
// set before the janitor considers it abandoned (spec.md §5's startup/
// periodic janitor, §4.5's cross-process at-most-once guard).
const DefaultStaleAfter = 10 * time.Minute

// DefaultJanitorSchedule runs the sweep every minute.
const DefaultJanitorSchedule = "@every 1m"

// Janitor periodically resets is_processing on sessions whose processing
// flag has been held past staleAfter, recovering from a crashed or wedged
// worker (spec.md §5). It runs once immediately at Start, then on the given
// cron schedule via robfig/cron/v3.
type Janitor struct {
	store      Store
	staleAfter time.Duration
	schedule   string
	logger     *slog.Logger

	cron *cron.Cron
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.staleAfter = d
		}
	}
}

// WithSchedule overrides DefaultJanitorSchedule with a robfig/cron spec.
func WithSchedule(spec string) JanitorOption {
	return func(j *Janitor) {
		if spec != "" {
			j.schedule = spec
		}
	}
}

// WithJanitorLogger attaches a logger; defaults to slog.Default().
func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewJanitor builds a Janitor over store. Call Start to begin sweeping.
func NewJanitor(store Store, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		store:      store,
		staleAfter: DefaultStaleAfter,
		schedule:   DefaultJanitorSchedule,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs one immediate sweep, then schedules recurring sweeps until ctx
// is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.sweep(ctx)

	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, func() { j.sweep(ctx) })
	if err != nil {
		return err
	}
	j.cron.Start()

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the schedule. Idempotent; safe to call even if Start was never
// called or already stopped.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	reset, err := j.store.ResetStaleProcessing(ctx, j.staleAfter)
	if err != nil {
		j.logger.Error("janitor sweep failed", "error", err)
		return
	}
	if len(reset) > 0 {
		j.logger.Info("janitor reset stale sessions", "count", len(reset), "session_ids", reset)
	}
}
