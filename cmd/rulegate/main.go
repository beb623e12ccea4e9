// Command rulegate runs the writing-prompt game and its rule-set tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rulegate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
