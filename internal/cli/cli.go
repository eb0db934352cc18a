// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into an invocation the app layer can execute.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Mode selects what the invocation does with the experiment.
type Mode int

const (
	// ModeRun executes the experiment.
	ModeRun Mode = iota
	// ModeValidate checks everything and executes nothing.
	ModeValidate
	// ModeVisualize prints the execution plan and exits.
	ModeVisualize
)

// Invocation is a parsed command line. Empty override fields mean "use the
// configuration file's value".
type Invocation struct {
	ExperimentPath string
	ConfigPath     string
	Mode           Mode
	Profile        string // override, optional
	LogLevel       string // override, optional
	LogFormat      string // override, optional
}

// Parse processes command-line arguments. It returns a populated Invocation,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	flagSet := flag.NewFlagSet("greenhouse", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Greenhouse - a declarative experiment pipeline orchestrator.

Usage:
  greenhouse [options] [EXPERIMENT_PATH]

Arguments:
  EXPERIMENT_PATH
    Path to an experiment .yml file, or (with -validate) a directory of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	experimentFlag := flagSet.String("experiment", "", "Path to the experiment file.")
	eFlag := flagSet.String("e", "", "Path to the experiment file (shorthand).")
	configFlag := flagSet.String("config", "", "Path to the configuration file.")
	profileFlag := flagSet.String("profile", "", "Hashing profile override. Options: 'full', 'dev', 'test'.")
	validateFlag := flagSet.Bool("validate", false, "Validate without executing.")
	visualizeFlag := flagSet.Bool("visualize", false, "Print the execution plan and exit.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format override. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level override. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *experimentFlag != "" {
		path = *experimentFlag
	} else if *eFlag != "" {
		path = *eFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	if *validateFlag && *visualizeFlag {
		return nil, false, &ExitError{Code: 2, Message: "-validate and -visualize are mutually exclusive"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	profile := strings.ToLower(*profileFlag)
	switch profile {
	case "", "full", "dev", "test":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid profile: must be 'full', 'dev', or 'test'"}
	}

	mode := ModeRun
	if *validateFlag {
		mode = ModeValidate
	}
	if *visualizeFlag {
		mode = ModeVisualize
	}

	return &Invocation{
		ExperimentPath: path,
		ConfigPath:     *configFlag,
		Mode:           mode,
		Profile:        profile,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
	}, false, nil
}
