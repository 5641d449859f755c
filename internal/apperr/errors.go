// Package apperr defines the error taxonomy shared across pipeline stages.
//
// Input and tool errors on single-invocation stages are fatal; data and
// consistency errors on a single homolog group are recorded as exclusions
// and never abort the run.
package apperr

import "fmt"

// InputError reports malformed genome/gene input. Always fatal, and always
// raised before any external tool has been invoked.
type InputError struct {
	Path string
	Msg  string
}

func (e *InputError) Error() string {
	if e.Path == "" {
		return "input error: " + e.Msg
	}
	return fmt.Sprintf("input error: %s: %s", e.Path, e.Msg)
}

// ToolError reports an external tool that exited abnormally or produced
// unparsable output. Fatal for single-invocation stages, isolated to the
// group for per-group stages.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("external tool %s failed (exit %d): %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// DataError reports a group (or the whole locus) lacking enough genomes or
// leaves for a meaningful tree or score. Never fatal.
type DataError struct {
	Subject string
	Msg     string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Subject, e.Msg)
}

// ConsistencyError reports a codon/protein length mismatch or a leaf-set
// mismatch between trees. Treated as a per-group failure, never coerced.
type ConsistencyError struct {
	Subject string
	Msg     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error in %s: %s", e.Subject, e.Msg)
}
