// Package viz renders simulation results in the terminal.
//
//   - [Outcome] and [Groups]: lipgloss summaries of runs and archives
//   - [Plot]: asciigraph line plots of datasets
//   - [Progress]: a Bubble Tea progress view fed by driver events
//
// # Progress
//
// [RunWithProgress] starts the progress view, runs the given work on its own
// goroutine and forwards every trial event to the view:
//
//	err := viz.RunWithProgress(ctx, os.Stderr, total, func(onTrial func(experiment.ProgressEvent)) error {
//	    driver.OnTrial = onTrial
//	    outcomes = driver.RunAll(ctx, settings...)
//	    return nil
//	})
package viz
