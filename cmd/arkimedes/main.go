package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"arkimedes/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var partial *partialFailureError
	if errors.As(err, &partial) {
		return services.ExitPartial
	}
	return services.ExitCode(err)
}
