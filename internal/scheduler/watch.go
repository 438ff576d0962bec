// Package scheduler re-analyzes watched products on a cron schedule and
// reports price and alert changes between runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/monitoring"
)

const defaultRunTimeout = 2 * time.Minute

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Analyzer is the part of the analysis service the watcher drives.
type Analyzer interface {
	Analyze(ctx context.Context, productID string) (*model.Snapshot, error)
	Latest(ctx context.Context, productID string) (*model.Snapshot, error)
}

// Sweeper drops expired cache entries.
type Sweeper interface {
	Sweep() int
}

type Config struct {
	Spec         string
	SweepSpec    string
	Products     []string
	ThresholdPct float64
	ThresholdUSD float64
	// SnapshotDir keeps the last snapshot per product as JSON, so changes
	// are detected across restarts without a database.
	SnapshotDir string
	RunTimeout  time.Duration
}

// RunReport summarises one pass over the watched products.
type RunReport struct {
	Analyzed int
	Failed   int
	Changes  []monitoring.Change
}

type Watcher struct {
	analyzer Analyzer
	sweepers []Sweeper
	cfg      Config
	cron     *cron.Cron
	log      zerolog.Logger
	now      func() time.Time
}

func NewWatcher(analyzer Analyzer, cfg Config, log zerolog.Logger, sweepers ...Sweeper) (*Watcher, error) {
	if analyzer == nil {
		return nil, &model.ValidationError{Field: "analyzer", Message: "is required"}
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, &model.ValidationError{Field: "spec", Message: err.Error()}
	}
	if cfg.SweepSpec != "" {
		if _, err := cron.ParseStandard(cfg.SweepSpec); err != nil {
			return nil, &model.ValidationError{Field: "sweep_spec", Message: err.Error()}
		}
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}

	log = log.With().Str("component", "scheduler").Logger()
	w := &Watcher{
		analyzer: analyzer,
		sweepers: sweepers,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	w.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	return w, nil
}

// Start schedules the jobs and returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.Spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
		defer cancel()
		w.RunOnce(runCtx)
	}); err != nil {
		return fmt.Errorf("scheduling analysis: %w", err)
	}

	if w.cfg.SweepSpec != "" && len(w.sweepers) > 0 {
		if _, err := w.cron.AddFunc(w.cfg.SweepSpec, func() { w.Sweep() }); err != nil {
			return fmt.Errorf("scheduling cache sweep: %w", err)
		}
	}

	w.cron.Start()
	w.log.Info().Str("spec", w.cfg.Spec).Int("products", len(w.cfg.Products)).Msg("watch started")
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (w *Watcher) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.log.Warn().Msg("stopped before running jobs finished")
	}
}

// RunOnce analyzes every watched product and compares it with the
// previous snapshot. Failures are logged and counted, never fatal.
func (w *Watcher) RunOnce(ctx context.Context) RunReport {
	var report RunReport

	for _, id := range w.cfg.Products {
		if ctx.Err() != nil {
			w.log.Warn().Err(ctx.Err()).Msg("watch run cut short")
			break
		}

		prev := w.previous(ctx, id)

		snap, err := w.analyzer.Analyze(ctx, id)
		if err != nil {
			report.Failed++
			w.log.Error().Err(err).Str("product_id", id).Msg("watched analysis failed")
			continue
		}
		report.Analyzed++

		changes := monitoring.CompareSnapshots(prev, snap, w.cfg.ThresholdPct, w.cfg.ThresholdUSD)
		for _, c := range changes {
			ev := w.log.Info()
			if c.Severity == "HIGH" {
				ev = w.log.Warn()
			}
			ev.Str("product_id", c.ProductID).
				Str("field", c.Field).
				Float64("old", c.OldValue).
				Float64("new", c.NewValue).
				Float64("delta_pct", c.DeltaPct).
				Str("old_alert", string(c.OldAlert)).
				Str("new_alert", string(c.NewAlert)).
				Str("severity", c.Severity).
				Msg("product changed")
		}
		report.Changes = append(report.Changes, changes...)

		w.remember(snap)
	}

	w.log.Info().
		Int("analyzed", report.Analyzed).
		Int("failed", report.Failed).
		Int("changes", len(report.Changes)).
		Msg("watch run complete")
	return report
}

// Sweep evicts expired entries from every registered cache.
func (w *Watcher) Sweep() int {
	removed := 0
	for _, s := range w.sweepers {
		removed += s.Sweep()
	}
	if removed > 0 {
		w.log.Debug().Int("removed", removed).Msg("cache sweep")
	}
	return removed
}

func (w *Watcher) previous(ctx context.Context, id string) *model.Snapshot {
	if w.cfg.SnapshotDir != "" {
		snap, err := monitoring.LoadSnapshot(w.snapshotPath(id))
		if err == nil {
			return snap
		}
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warn().Err(err).Str("product_id", id).Msg("reading previous snapshot")
		}
	}

	snap, err := w.analyzer.Latest(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			w.log.Warn().Err(err).Str("product_id", id).Msg("loading previous analysis")
		}
		return nil
	}
	return snap
}

func (w *Watcher) remember(snap *model.Snapshot) {
	if w.cfg.SnapshotDir == "" {
		return
	}
	if err := os.MkdirAll(w.cfg.SnapshotDir, 0755); err != nil {
		w.log.Warn().Err(err).Msg("creating snapshot dir")
		return
	}
	if err := monitoring.SaveSnapshot(w.snapshotPath(snap.ProductID), snap); err != nil {
		w.log.Warn().Err(err).Str("product_id", snap.ProductID).Msg("saving snapshot")
	}
}

func (w *Watcher) snapshotPath(id string) string {
	return filepath.Join(w.cfg.SnapshotDir, unsafeFileChars.ReplaceAllString(id, "_")+".json")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
