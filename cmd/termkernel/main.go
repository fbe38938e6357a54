// Command termkernel runs theories and scenarios against the term kernel.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/termkernel/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
