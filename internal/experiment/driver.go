package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/logging"
)

// ProgressEvent reports one finished trial. Done and Total count trials
// across every settings document of the run.
type ProgressEvent struct {
	Name  string
	Index int
	Err   error
	Done  int
	Total int
}

// Outcome pairs a settings document with its aggregate or the error that
// prevented it.
type Outcome struct {
	Settings *config.Settings
	Result   *AggregateResult
	Err      error
}

// Driver runs trials on a bounded worker pool.
type Driver struct {
	Registry *Registry
	// Workers bounds the number of concurrent trials; zero or less means
	// GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
	// OnTrial is called from worker goroutines and must be safe for
	// concurrent use.
	OnTrial func(ProgressEvent)
}

func (d *Driver) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Driver) registry() *Registry {
	if d.Registry != nil {
		return d.Registry
	}
	return NewRegistry()
}

// Run executes every trial of s and returns the merged result.
func (d *Driver) Run(ctx context.Context, s *config.Settings) (*AggregateResult, error) {
	out := d.RunAll(ctx, s)
	return out[0].Result, out[0].Err
}

// RunAll executes the trials of all settings on one shared pool. Invalid
// settings fail only their own outcome and failed trials never cancel
// other trials.
func (d *Driver) RunAll(ctx context.Context, settings ...*config.Settings) []Outcome {
	log := d.logger()
	reg := d.registry()

	outcomes := make([]Outcome, len(settings))
	plans := make([]*Plan, len(settings))
	slots := make([][]TrialResult, len(settings))
	total := 0
	for i, s := range settings {
		outcomes[i].Settings = s
		plan, err := reg.Build(s)
		if err != nil {
			name := "<nil>"
			if s != nil {
				name = s.Name
			}
			log.Error("invalid settings", "name", name, "error", err)
			outcomes[i].Err = fmt.Errorf("%s: %w", name, err)
			continue
		}
		plans[i] = plan
		slots[i] = make([]TrialResult, plan.Settings.Trials)
		total += plan.Settings.Trials
	}

	workers := d.workers()
	log.Info("starting simulations", "settings", len(settings), "trials", total, "workers", workers)

	start := time.Now()
	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)

	for i, plan := range plans {
		if plan == nil {
			continue
		}
		name := plan.Settings.Name
		for k := range slots[i] {
			g.Go(func() error {
				log.Log(ctx, logging.LevelTrace, "trial started", "name", name, "trial", k)
				res := plan.RunTrial(ctx, k)
				slots[i][k] = res

				n := int(done.Add(1))
				if res.Err != nil {
					log.Warn("trial failed", "name", name, "trial", k, "error", res.Err)
				} else {
					log.Debug("trial finished", "name", name, "trial", k, "steps", res.Steps)
				}
				if d.OnTrial != nil {
					d.OnTrial(ProgressEvent{Name: name, Index: k, Err: res.Err, Done: n, Total: total})
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	for i, plan := range plans {
		if plan == nil {
			continue
		}
		name := plan.Settings.Name
		agg, err := Reduce(name, slots[i])
		if agg != nil {
			agg.Settings = plan.Settings
			agg.Elapsed = elapsed
		}
		outcomes[i].Result = agg
		switch {
		case err != nil:
			outcomes[i].Err = err
		case ctx.Err() != nil:
			outcomes[i].Err = fmt.Errorf("%s: %w", name, ctx.Err())
		case agg.Completed == 0:
			outcomes[i].Err = fmt.Errorf("%s: all %d trials failed: %w", name, agg.Trials, agg.Failures[0].Err)
		}
		if outcomes[i].Err == nil {
			log.Info("simulation finished", "name", name, "completed", agg.Completed, "failed", len(agg.Failures), "elapsed", elapsed)
		} else {
			log.Error("simulation failed", "name", name, "error", outcomes[i].Err)
		}
	}
	return outcomes
}
