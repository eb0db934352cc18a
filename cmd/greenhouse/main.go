package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/verdantlab/greenhouse/internal/app"
	"github.com/verdantlab/greenhouse/internal/cli"
)

// main is the entrypoint for the greenhouse application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	greenhouseApp, err := app.New(outW, os.Stderr, inv)
	if err != nil {
		return err
	}

	return greenhouseApp.Run(context.Background())
}
