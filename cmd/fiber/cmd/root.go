// Package cmd implements the fiber CLI commands.
//
// The root command loads the optional fiber.yaml / fiber.toml config and
// dispatches to run, bench and version.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/go-drift/fiber/pkg/config"
	fibererrors "github.com/go-drift/fiber/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

type globalOptions struct {
	configPath string
	colorMode  string
	verbose    bool
	quiet      bool

	cfg *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "fiber",
		Short: "Replay and benchmark reconciler scenarios",
		Long: `fiber replays scripted render sessions against an in-memory host and
prints the host mutations, commit summaries and final tree.

Scenario files are YAML documents with a version and a list of steps
(render, flush, advance, resolve, reject).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}
	root.SetVersionTemplate("fiber version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: fiber.yaml or fiber.toml in the working directory)")
	flags.StringVar(&opts.colorMode, "color", "auto", "colorize output (auto|on|off)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print stack traces for reported errors")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress per-step output")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newBenchCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		return err
	}
	return nil
}

func (o *globalOptions) setup(stderr io.Writer) error {
	switch strings.ToLower(o.colorMode) {
	case "on", "always":
		color.NoColor = false
	case "off", "never":
		color.NoColor = true
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (want auto, on or off)", o.colorMode)
	}
	var err error
	if o.configPath != "" {
		o.cfg, err = config.Load(o.configPath)
	} else {
		o.cfg, err = config.Find(".")
	}
	if err != nil {
		return err
	}
	fibererrors.SetHandler(&fibererrors.LogHandler{
		Verbose: o.verbose || o.cfg.Reconciler.Verbose,
		Out:     stderr,
	})
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
