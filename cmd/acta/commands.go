package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kingrea/acta/internal/batch"
	"github.com/kingrea/acta/internal/config"
	"github.com/kingrea/acta/internal/logging"
	"github.com/kingrea/acta/internal/sim"
	"github.com/kingrea/acta/internal/tui"
)

type scenarioFlags struct {
	path          string
	out           string
	params        keyValueFlag
	failureParams keyValueFlag
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "scenario", "s", "", "path to the scenario YAML file")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (defaults to the scenario's output_dir)")
	cmd.Flags().Var(&f.params, "param", "task selection parameter override (key=value, repeatable)")
	cmd.Flags().Var(&f.failureParams, "failure-param", "failure model parameter override (key=value, repeatable)")
	_ = cmd.MarkFlagRequired("scenario")
}

// load reads the scenario, applies overrides and checks that the failure
// model and selector resolve.
func (f *scenarioFlags) load() (*config.Scenario, error) {
	sc, err := config.Load(f.path)
	if err != nil {
		return nil, err
	}
	if err := f.params.apply(sc.TaskSelection.Params); err != nil {
		return nil, config.Wrap("task_selection.params", err)
	}
	if err := f.failureParams.apply(sc.FailureModel.Params); err != nil {
		return nil, config.Wrap("failure_model.params", err)
	}
	if _, err := sim.New(sc, 0); err != nil {
		return nil, err
	}
	return sc, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "acta",
		Short:         "acta - task allocation for failure-prone workers under degraded communication",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newBatchCmd(), newValidateCmd(), newSchemaCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		flags   scenarioFlags
		seed    uint64
		workers bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario for one seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := flags.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			dir := batch.OutputDir(sc, flags.out)
			logger, err := logging.New(dir)
			if err != nil {
				return err
			}
			defer logger.Close()
			logger.Printf("run %s seed %d -> %s", sc.Name, seed, dir)

			res, err := batch.RunSeed(ctx, sc, seed, dir, nil, 0)
			if err != nil {
				logger.Printf("run %s seed %d failed: %v", sc.Name, seed, err)
				return err
			}
			logger.Printf("run %s seed %d finished in %d steps", sc.Name, seed, res.Steps)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tui.Summary([]sim.Result{res}))
			if workers {
				fmt.Fprintln(out, tui.Workers(res))
			}
			fmt.Fprintf(out, "streams written to %s\n", dir)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().BoolVar(&workers, "workers", false, "also print the per-worker summary")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		flags    scenarioFlags
		seeds    string
		parallel int
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a scenario over many seeds concurrently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := flags.load()
			if err != nil {
				return err
			}
			list, err := batch.ParseSeeds(seeds)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			dir := batch.OutputDir(sc, flags.out)
			logger, err := logging.New(dir)
			if err != nil {
				return err
			}
			defer logger.Close()
			logger.Printf("batch %s seeds %s parallel %d -> %s", sc.Name, seeds, parallel, dir)

			opts := batch.Options{Seeds: list, Parallel: parallel, OutputDir: flags.out}
			var report batch.Report
			if progress && isTerminal(cmd.OutOrStdout()) {
				report, err = runWithProgress(ctx, sc, opts)
			} else {
				report, err = batch.Run(ctx, sc, opts)
			}
			if err != nil {
				logger.Printf("batch %s failed: %v", sc.Name, err)
				return err
			}
			logger.Printf("batch %s finished: %d run(s)", sc.Name, len(report.Results))
			fmt.Fprintln(cmd.OutOrStdout(), tui.Summary(report.Results))
			fmt.Fprintf(cmd.OutOrStdout(), "streams written to %s\n", report.Dir)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&seeds, "seeds", "0", "seeds to run, e.g. 0-9,12")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "concurrent seeds (0 = number of CPUs)")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a live progress view when attached to a terminal")
	return cmd
}

// runWithProgress drives the batch from a goroutine and renders it with the
// progress model until the batch returns or the user quits.
func runWithProgress(ctx context.Context, sc *config.Scenario, opts batch.Options) (batch.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	model := tui.New(sc.Name, opts.Seeds, cancel)
	p := tea.NewProgram(model)
	opts.OnEvent = func(e batch.Event) { p.Send(tui.EventMsg(e)) }
	opts.Progress = max(1, sc.Sim.MaxSteps/50)
	go func() {
		report, err := batch.Run(ctx, sc, opts)
		p.Send(tui.DoneMsg{Report: report, Err: err})
	}()
	if _, err := p.Run(); err != nil {
		return batch.Report{}, fmt.Errorf("progress view: %w", err)
	}
	report, err := model.Report()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return report, err
}

func newValidateCmd() *cobra.Command {
	var flags scenarioFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := flags.load()
			if err != nil {
				var cfgErr *config.ConfigurationError
				if errors.As(err, &cfgErr) {
					return fmt.Errorf("invalid scenario %s: %w", flags.path, err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d workers, %d tasks, selector %s, failure model %s)\n",
				sc.Name, len(sc.Workers), len(sc.Tasks), sc.TaskSelection.Class, sc.FailureModel.Class)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of scenario files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of acta",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "acta version %s\n", version)
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
