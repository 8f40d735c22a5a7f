package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/go-drift/fiber/pkg/scenario"
)

type benchOptions struct {
	*globalOptions
	iterations int
}

func newBenchCmd(g *globalOptions) *cobra.Command {
	opts := &benchOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "bench FILE...",
		Short: "Measure render and commit latency of scenario files",
		Long: `Replay each scenario file N times and report latency percentiles for
whole runs and for each render or flush step.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return benchScenarios(cmd, cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 100, "runs per scenario")
	return cmd
}

func benchScenarios(cmd *cobra.Command, w io.Writer, opts *benchOptions, paths []string) error {
	if opts.iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", opts.iterations)
	}
	scenarios, err := loadScenarios(paths)
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetTitle("Scenario latency (%s runs)", humanize.Comma(int64(opts.iterations)))
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"scenario", "measure", "samples", "avg", "min", "p50", "p75", "p99", "max"})

	for _, sc := range scenarios {
		runs := tachymeter.New(&tachymeter.Config{Size: opts.iterations})
		steps := tachymeter.New(&tachymeter.Config{Size: opts.iterations * len(sc.Steps)})
		var commits int
		for range opts.iterations {
			res, err := scenario.Run(cmd.Context(), sc, scenario.Options{
				Config: opts.cfg,
				OnStep: func(_ int, step scenario.Step, elapsed time.Duration) {
					if step.Render != nil || step.Flush != nil {
						steps.AddTime(elapsed)
					}
				},
			})
			if err != nil {
				return err
			}
			runs.AddTime(res.Elapsed)
			commits += len(res.Commits)
		}
		for _, m := range []struct {
			name string
			t    *tachymeter.Tachymeter
		}{{"run", runs}, {"step", steps}} {
			calc := m.t.Calc()
			tbl.AppendRow(table.Row{
				sc.Name, m.name, humanize.Comma(int64(calc.Count)),
				calc.Time.Avg, calc.Time.Min, calc.Time.P50, calc.Time.P75, calc.Time.P99, calc.Time.Max,
			})
		}
		tbl.AppendFooter(table.Row{sc.Name, "commits", humanize.Comma(int64(commits))})
	}
	tbl.Render()
	return nil
}
