package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/azisim/internal/analysis"
	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/experiment"
	"github.com/san-kum/azisim/internal/logging"
	"github.com/san-kum/azisim/internal/storage"
	"github.com/san-kum/azisim/internal/viz"
)

var (
	dataPath  string
	workers   int
	logLevel  string
	progress  bool
	overwrite bool
	// export-settings
	outDir string
	format string
	// plot
	plotHeight int
	plotWidth  int
	// analyze
	spectrumOf string
	sweepOf    string
	sweepParam string
	discard    float64
	growth     bool
	growthFrom float64
	// export-csv
	outFile string
	// sweep
	sweepRange  config.Sweep
	sweepValues []float64

	rt     config.Runtime
	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "azisim",
		Short:         "stochastic simulator of azimuthal combustion instabilities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			rt, err = config.LoadRuntime()
			if err != nil {
				return fmt.Errorf("runtime config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("data") || rt.Data == "" {
				rt.Data = dataPath
			}
			if flags.Changed("workers") {
				rt.Workers = workers
			}
			if flags.Changed("log-level") {
				rt.LogLevel = logLevel
			}
			logger = logging.NewLogger(rt.LogLevel, os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "azisim.db", "result archive (overrides AZISIM_DATA)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent trials, 0 for all cores (overrides AZISIM_WORKERS)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "error, warn, info, debug or trace (overrides AZISIM_LOG_LEVEL)")

	exampleCmd := &cobra.Command{
		Use:   "example",
		Short: "run the built-in example on a single worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if cmd.Flags().Changed("workers") {
				n = rt.Workers
			}
			return runSettings(cmd.Context(), n, config.Example())
		},
	}

	experimentCmd := &cobra.Command{
		Use:   "experiment",
		Short: "run the gain factor sweep on all cores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettings(cmd.Context(), rt.Workers, config.Experiment()...)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "run settings files in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFiles,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [file]",
		Short: "run one settings document across a parameter range",
		Long: "Run one settings document, or the example when no file is given, once per\n" +
			"parameter value. Parameters: " + strings.Join(config.SweepParameters(), ", ") + ".",
		Args: cobra.MaximumNArgs(1),
		RunE: runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepRange.Parameter, "parameter", "gain_factor", "parameter to vary")
	sweepCmd.Flags().Float64Var(&sweepRange.Min, "min", 1.25, "first value")
	sweepCmd.Flags().Float64Var(&sweepRange.Max, "max", 5, "last value")
	sweepCmd.Flags().IntVar(&sweepRange.Steps, "steps", 4, "number of values")
	sweepCmd.Flags().Float64SliceVar(&sweepValues, "values", nil, "explicit values, overrides the range")

	for _, c := range []*cobra.Command{exampleCmd, experimentCmd, runCmd, sweepCmd} {
		c.Flags().BoolVar(&progress, "progress", isTerminal(os.Stderr), "show a progress view")
		c.Flags().BoolVar(&overwrite, "overwrite", false, "replace archived groups of the same name")
	}

	exportSettingsCmd := &cobra.Command{
		Use:   "export-settings [presets...]",
		Short: "write preset settings files to edit and run",
		RunE:  exportSettings,
	}
	exportSettingsCmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	exportSettingsCmd.Flags().StringVar(&format, "format", "yaml", "yaml or json")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				settings := config.GetPreset(name)
				groups := make([]string, len(settings))
				for i, s := range settings {
					groups[i] = s.Group()
				}
				fmt.Printf("  %s %s\n", viz.Title.Render(name), viz.Subtle.Render(strings.Join(groups, ", ")))
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived results",
		Args:  cobra.NoArgs,
		RunE:  listGroups,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [group] [datasets...]",
		Short: "plot archived datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  plotGroup,
	}
	plotCmd.Flags().IntVar(&plotHeight, "height", viz.DefaultPlotHeight, "plot height")
	plotCmd.Flags().IntVar(&plotWidth, "width", viz.DefaultPlotWidth, "plot width")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [groups...]",
		Short: "describe archived datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  analyzeGroups,
	}
	analyzeCmd.Flags().StringVar(&spectrumOf, "spectrum", "", "dataset to compute the amplitude spectrum of")
	analyzeCmd.Flags().StringVar(&sweepOf, "sweep", "", "dataset to compare across the groups")
	analyzeCmd.Flags().StringVar(&sweepParam, "parameter", "gain", "sweep parameter: gain, damping, noise or gain_ratio")
	analyzeCmd.Flags().Float64Var(&discard, "discard", 0.5, "leading fraction discarded as transient")
	analyzeCmd.Flags().BoolVar(&growth, "growth", false, "fit the exponential growth rate of the mean amplitude")
	analyzeCmd.Flags().Float64Var(&growthFrom, "from", 0, "first time included in the growth rate fit")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [group]",
		Short: "export the datasets of a group to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportXLSXCmd := &cobra.Command{
		Use:   "export-xlsx [file] [groups...]",
		Short: "export groups to a workbook, all groups by default",
		Args:  cobra.MinimumNArgs(1),
		RunE:  exportXLSX,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [groups...]",
		Short: "remove archived groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(st *storage.Store) error {
				var errs []error
				for _, g := range args {
					if err := st.Delete(cmd.Context(), g); err != nil {
						errs = append(errs, err)
						continue
					}
					logger.Info("deleted group", "group", g)
				}
				return errors.Join(errs...)
			})
		},
	}

	rootCmd.AddCommand(exampleCmd, experimentCmd, runCmd, sweepCmd, exportSettingsCmd, presetsCmd,
		listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportXLSXCmd, deleteCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFail.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func withStore(fn func(*storage.Store) error) error {
	st, err := storage.Open(rt.Data)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func runFiles(cmd *cobra.Command, args []string) error {
	var (
		settings []*config.Settings
		errs     []error
	)
	for _, path := range args {
		s, err := config.Load(path)
		if err != nil {
			logger.Error("skipping settings file", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		settings = append(settings, s)
	}
	if len(settings) > 0 {
		errs = append(errs, runSettings(cmd.Context(), rt.Workers, settings...))
	}
	return errors.Join(errs...)
}

func runSweep(cmd *cobra.Command, args []string) error {
	base := config.Example()
	if len(args) == 1 {
		var err error
		if base, err = config.Load(args[0]); err != nil {
			return err
		}
	}

	values := sweepValues
	if len(values) == 0 {
		var err error
		if values, err = sweepRange.Values(); err != nil {
			return err
		}
	}
	settings, err := config.Expand(base, sweepRange.Parameter, values)
	if err != nil {
		return err
	}
	return runSettings(cmd.Context(), rt.Workers, settings...)
}

// runSettings refuses settings whose group is already archived unless
// --overwrite is set, runs the rest on one pool and archives every aggregate
// that has a summary. An overwritten group is replaced only once its new
// results are saved.
func runSettings(ctx context.Context, n int, settings ...*config.Settings) error {
	return withStore(func(st *storage.Store) error {
		var (
			runnable []*config.Settings
			errs     []error
		)
		for _, s := range settings {
			err := st.Check(ctx, s.Group())
			if errors.Is(err, storage.ErrGroupExists) && overwrite {
				err = nil
			}
			if err != nil {
				logger.Error("skipping settings", "name", s.Name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
				continue
			}
			runnable = append(runnable, s)
		}
		if len(runnable) == 0 {
			return errors.Join(errs...)
		}

		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		driver := &experiment.Driver{Workers: n, Logger: logger}
		if progress {
			// Keep the progress view readable; failures show up in the outcomes.
			driver.Logger = logging.NewLogger("error", os.Stderr)
		}

		total := 0
		for _, s := range runnable {
			total += max(s.Trials, 0)
		}

		var outcomes []experiment.Outcome
		run := func(onTrial func(experiment.ProgressEvent)) error {
			driver.OnTrial = onTrial
			outcomes = driver.RunAll(ctx, runnable...)
			return nil
		}
		if progress {
			if err := viz.RunWithProgress(ctx, os.Stderr, total, run); err != nil {
				return err
			}
		} else {
			_ = run(nil)
		}

		for _, o := range outcomes {
			runID := ""
			if o.Result != nil && o.Result.Summary != nil {
				save := st.Save
				if overwrite {
					save = st.Replace
				}
				id, err := save(ctx, o.Settings.Group(), o.Result)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: saving: %w", o.Settings.Name, err))
				} else {
					runID = id
					logger.Info("archived results", "name", o.Settings.Name, "group", o.Settings.Group(), "run", id)
				}
			}
			if o.Err != nil {
				errs = append(errs, o.Err)
			}
			fmt.Println(viz.Outcome(o, runID))
		}
		return errors.Join(errs...)
	})
}

func exportSettings(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = config.ListPresets()
	}
	ext := ".yaml"
	switch strings.ToLower(format) {
	case "yaml", "yml":
	case "json":
		ext = ".json"
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	for _, name := range args {
		settings := config.GetPreset(name)
		if settings == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
		for _, s := range settings {
			path := filepath.Join(outDir, s.Name+ext)
			if err := config.Save(path, s); err != nil {
				return err
			}
			fmt.Println(path)
		}
	}
	return nil
}

func listGroups(cmd *cobra.Command, args []string) error {
	return withStore(func(st *storage.Store) error {
		groups, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(viz.Groups(groups))
		return nil
	})
}

func defaultDatasets(kind string) []string {
	if kind == "histogram" {
		return []string{"amplitude_pdf", "nature_pdf"}
	}
	return []string{"amplitude", "nature"}
}

func plotGroup(cmd *cobra.Command, args []string) error {
	return withStore(func(st *storage.Store) error {
		a, err := st.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		names := args[1:]
		if len(names) == 0 {
			names = defaultDatasets(a.Group.Kind)
		}

		fmt.Println(viz.Datasets(a))
		for _, name := range names {
			values, err := st.Dataset(cmd.Context(), a.Group.Name, name)
			if err != nil {
				return err
			}
			fmt.Println(viz.Plot(values, fmt.Sprintf("%s / %s", a.Group.Name, name), plotHeight, plotWidth))
			fmt.Println()
		}
		return nil
	})
}

func analyzeGroups(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStore(func(st *storage.Store) error {
		if sweepOf != "" {
			return analyzeSweep(ctx, st, args)
		}
		for _, group := range args {
			a, err := st.Load(ctx, group)
			if err != nil {
				return err
			}
			fmt.Println(viz.Title.Render(group))

			var (
				names []string
				ds    []analysis.Description
			)
			for _, d := range a.Datasets {
				desc, err := analysis.Describe(d.Values)
				if err != nil {
					logger.Debug("skipping dataset", "group", group, "dataset", d.Name, "error", err)
					continue
				}
				names = append(names, d.Name)
				ds = append(ds, desc)
			}
			fmt.Println(viz.Descriptions(names, ds))

			if spectrumOf != "" {
				if err := printSpectrum(ctx, st, a); err != nil {
					return err
				}
			}
			if growth {
				if err := printGrowth(ctx, st, group); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func printSpectrum(ctx context.Context, st *storage.Store, a *storage.Archive) error {
	var s config.Settings
	if err := a.Group.Decode(&s); err != nil {
		return err
	}
	values, err := st.Dataset(ctx, a.Group.Name, spectrumOf)
	if err != nil {
		return err
	}
	dt := s.Parameters.Timestep * float64(s.Observer.Stride)
	sp, err := analysis.Spectrum(values, dt)
	if err != nil {
		return err
	}
	fmt.Println(viz.Plot(sp.Amplitudes, fmt.Sprintf("amplitude spectrum of %s", spectrumOf), plotHeight, plotWidth))
	fmt.Printf("dominant frequency: %.6g\n", sp.Dominant)
	if sp.Dominant > 0 {
		fmt.Printf("period: %.6g\n", 1/sp.Dominant)
	}
	return nil
}

func printGrowth(ctx context.Context, st *storage.Store, group string) error {
	times, err := st.Dataset(ctx, group, "time")
	if err != nil {
		return err
	}
	amps, err := st.Dataset(ctx, group, "amplitude")
	if err != nil {
		return err
	}
	rate, err := analysis.GrowthRate(times, amps, growthFrom)
	if err != nil {
		return err
	}
	fmt.Printf("growth rate: %.6g 1/s\n", rate)
	return nil
}

func analyzeSweep(ctx context.Context, st *storage.Store, groups []string) error {
	labels := make([]string, len(groups))
	params := make([]float64, len(groups))
	series := make([][]float64, len(groups))
	for i, group := range groups {
		a, err := st.Load(ctx, group)
		if err != nil {
			return err
		}
		var s config.Settings
		if err := a.Group.Decode(&s); err != nil {
			return err
		}
		switch sweepParam {
		case "gain":
			params[i] = s.Parameters.Gain
		case "damping":
			params[i] = s.Parameters.Damping
		case "noise":
			params[i] = s.Parameters.Noise
		case "gain_ratio":
			params[i] = s.Flame.GainRatio
		default:
			return fmt.Errorf("unknown sweep parameter %q", sweepParam)
		}
		values, err := st.Dataset(ctx, group, sweepOf)
		if err != nil {
			return err
		}
		labels[i], series[i] = group, values
	}

	points, err := analysis.Sweep(labels, params, series, discard)
	if err != nil {
		return err
	}
	fmt.Println(viz.SweepTable(sweepParam, points))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	return withStore(func(st *storage.Store) error {
		if outFile == "" {
			return st.ExportCSV(cmd.Context(), os.Stdout, args[0])
		}
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		if err := st.ExportCSV(cmd.Context(), f, args[0]); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

func exportXLSX(cmd *cobra.Command, args []string) error {
	return withStore(func(st *storage.Store) error {
		groups := args[1:]
		if len(groups) == 0 {
			all, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range all {
				groups = append(groups, g.Name)
			}
		}
		if err := st.ExportWorkbook(cmd.Context(), args[0], groups...); err != nil {
			return err
		}
		logger.Info("exported workbook", "path", args[0], "groups", len(groups))
		return nil
	})
}
