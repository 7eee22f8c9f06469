package types

import (
	"fmt"
	"strings"
)

// ProcessError is returned when an external binary is missing, exits with
// a non-zero code or prints something that cannot be used.
type ProcessError struct {
	Binary   string
	Args     []string
	ExitCode int // -1 when the process did not run to completion
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s exited with code %d: %v", e.Binary, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Binary, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func (e *ProcessError) CommandLine() string {
	return strings.Join(append([]string{e.Binary}, e.Args...), " ")
}

// IOError is returned when a template or manifest file cannot be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid or missing option.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
