package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/go-drift/fiber/pkg/scenario"
)

var (
	headerText  = color.New(color.FgCyan, color.Bold).SprintFunc()
	labelText   = color.New(color.Bold).SprintFunc()
	successText = color.New(color.FgGreen).SprintFunc()
	caughtText  = color.New(color.FgYellow).SprintFunc()
	failText    = color.New(color.FgRed).SprintFunc()
	dimText     = color.New(color.Faint).SprintFunc()
)

func formatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func printResult(w io.Writer, res *scenario.Result, quiet bool) {
	fmt.Fprintf(w, "%s %s\n", headerText("=="), headerText(res.Name))
	if !quiet {
		fmt.Fprintf(w, "%s\n", labelText("mutations:"))
		for _, m := range res.Mutations {
			fmt.Fprintf(w, "  %s\n", m)
		}
		fmt.Fprintf(w, "%s\n", labelText("commits:"))
		for i, c := range res.Commits {
			fmt.Fprintf(w, "  #%d %s placements=%d moves=%d updates=%d deletions=%d\n",
				i+1, c.Lanes, c.Placements, c.Moves, c.Updates, c.Deletions)
		}
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "%s\n", labelText("errors:"))
		for _, e := range res.Errors {
			state := failText("uncaught")
			if e.Caught {
				state = caughtText("caught")
			}
			fmt.Fprintf(w, "  step %d %s: %s\n", e.Step, state, e.Message)
		}
	}
	if res.Simulated > 0 {
		fmt.Fprintf(w, "%s %s\n", labelText("clock:"), res.Simulated)
	}
	fmt.Fprintf(w, "%s %s\n", labelText("tree:"), res.Tree)
	fmt.Fprintf(w, "%s %s %s\n", labelText("digest:"), formatDigest(res.Digest),
		dimText(fmt.Sprintf("(%s, %s)", plural(len(res.Mutations), "mutation"), plural(len(res.Commits), "commit"))))
}
