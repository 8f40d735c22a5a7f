package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-drift/fiber/pkg/scenario"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	Scenarios string `json:"scenario_format"`
	Go        string `json:"go"`
}

func newVersionCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := versionPayload{
				Tool:      "fiber",
				Version:   Version,
				BuildTime: BuildTime,
				Scenarios: scenario.SupportedMajor + ".x",
				Go:        runtime.Version(),
			}
			w := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			case "pretty", "":
				fmt.Fprintf(w, "fiber version %s (built %s, %s)\n", p.Version, p.BuildTime, p.Go)
				fmt.Fprintf(w, "scenario format %s\n", p.Scenarios)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want pretty or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	return cmd
}
