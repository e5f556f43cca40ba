// Command remap migrates configuration records between environments,
// remapping built-in identities onto the target's.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/remap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// stdout carries the command's own report; the error goes to stderr
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
