// Package main provides the dmap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dmap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
