package experiment

import (
	"fmt"
	"slices"
	"time"

	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/observers"
)

// Failure records a trial that did not produce a summary.
type Failure struct {
	Index   int
	Kind    string
	Message string
	Err     error
}

// AggregateResult is the merged outcome of all trials of one settings
// document.
type AggregateResult struct {
	Name      string
	Settings  *config.Settings
	Trials    int
	Completed int
	Failures  []Failure
	Summary   observers.Summary
	Elapsed   time.Duration
}

// Reduce folds the trial summaries in trial index order, so the merged
// summary does not depend on the order in which trials completed.
func Reduce(name string, results []TrialResult) (*AggregateResult, error) {
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b TrialResult) int { return a.Index - b.Index })

	agg := &AggregateResult{Name: name, Trials: len(sorted)}
	for _, r := range sorted {
		if r.Err != nil || r.Summary == nil {
			err := r.Err
			if err == nil {
				err = fmt.Errorf("%w: trial %d produced no summary", dynamo.ErrObserverFailure, r.Index)
			}
			agg.Failures = append(agg.Failures, Failure{
				Index:   r.Index,
				Kind:    dynamo.Classify(err),
				Message: err.Error(),
				Err:     err,
			})
			continue
		}

		if agg.Summary == nil {
			agg.Summary = r.Summary
		} else {
			merged, err := agg.Summary.Merge(r.Summary)
			if err != nil {
				return agg, fmt.Errorf("%s: merging trial %d: %w", name, r.Index, err)
			}
			agg.Summary = merged
		}
		agg.Completed++
	}
	return agg, nil
}

// FailureCounts tallies failures by kind.
func (a *AggregateResult) FailureCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range a.Failures {
		counts[f.Kind]++
	}
	return counts
}
