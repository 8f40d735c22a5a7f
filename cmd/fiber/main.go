// Command fiber replays reconciler scenarios and benchmarks them.
package main

import (
	"os"

	"github.com/go-drift/fiber/cmd/fiber/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
