package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/go-drift/fiber/pkg/scenario"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

type runOptions struct {
	*globalOptions
	trace string
	jobs  int
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Replay scenario files and print the host mutations",
		Long: `Replay one or more scenario files.

Each file runs on its own reconciler, so files run concurrently. Output is
printed in argument order: the host mutation log, one line per commit, any
render errors, the final host tree and its digest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.trace, "trace", "", "write the mutation log and commits to this msgpack file")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "number of files to run at once (default GOMAXPROCS)")
	return cmd
}

func loadScenarios(paths []string) ([]*scenario.Scenario, error) {
	out := make([]*scenario.Scenario, len(paths))
	for i, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		out[i] = sc
	}
	return out, nil
}

// runAll replays scenarios concurrently. Results keep the input order.
func runAll(ctx context.Context, scenarios []*scenario.Scenario, opts scenario.Options, jobs int) ([]*scenario.Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*scenario.Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(scenarios)))
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := scenario.Run(gctx, sc, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runScenarios(ctx context.Context, w io.Writer, opts *runOptions, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scenarios, err := loadScenarios(paths)
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := runAll(ctx, scenarios, scenario.Options{Config: opts.cfg}, opts.jobs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var mutations, commits int
	for _, res := range results {
		printResult(w, res, opts.quiet)
		mutations += len(res.Mutations)
		commits += len(res.Commits)
	}
	fmt.Fprintf(w, "%s %s, %s host mutations, %s commits in %s\n",
		successText("ran"),
		plural(len(results), "scenario"),
		humanize.Comma(int64(mutations)),
		humanize.Comma(int64(commits)),
		elapsed.Round(time.Microsecond))

	if opts.trace != "" {
		if err := writeTrace(opts.trace, results); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
		fmt.Fprintf(w, "trace written to %s\n", opts.trace)
	}
	return nil
}

// CommitTrace is a commit summary in a trace file.
type CommitTrace struct {
	Lanes      string `msgpack:"lanes"`
	Placements int    `msgpack:"placements"`
	Moves      int    `msgpack:"moves"`
	Updates    int    `msgpack:"updates"`
	Deletions  int    `msgpack:"deletions"`
}

// Trace is the record written by run --trace for one scenario.
type Trace struct {
	Scenario  string                   `msgpack:"scenario"`
	Tree      string                   `msgpack:"tree"`
	Digest    string                   `msgpack:"digest"`
	Mutations []fibertest.Mutation     `msgpack:"mutations"`
	Commits   []CommitTrace            `msgpack:"commits"`
	Errors    []scenario.RenderedError `msgpack:"errors,omitempty"`
}

func newTrace(res *scenario.Result) Trace {
	t := Trace{
		Scenario:  res.Name,
		Tree:      res.Tree,
		Digest:    formatDigest(res.Digest),
		Mutations: res.Mutations,
		Errors:    res.Errors,
	}
	for _, c := range res.Commits {
		t.Commits = append(t.Commits, CommitTrace{
			Lanes:      c.Lanes.String(),
			Placements: c.Placements,
			Moves:      c.Moves,
			Updates:    c.Updates,
			Deletions:  c.Deletions,
		})
	}
	return t
}

func writeTrace(path string, results []*scenario.Result) (err error) {
	traces := make([]Trace, len(results))
	for i, res := range results {
		traces[i] = newTrace(res)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return msgpack.NewEncoder(f).Encode(traces)
}

// ReadTrace decodes a file written by run --trace.
func ReadTrace(path string) ([]Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var traces []Trace
	if err := msgpack.NewDecoder(f).Decode(&traces); err != nil {
		return nil, err
	}
	return traces, nil
}
