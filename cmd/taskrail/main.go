package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/taskrail/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own formatted errors; flag and usage
		// errors from cobra still need surfacing here, and count as
		// command errors rather than domain failures.
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
}
