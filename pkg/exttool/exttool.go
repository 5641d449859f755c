// Package exttool runs delegated bioinformatics binaries (diamond, mafft,
// fasttree) as blocking subprocesses and normalizes their failures into
// apperr.ToolError. No retries: the tools are deterministic, a second
// invocation with identical input is not expected to succeed where the
// first failed.
package exttool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/yumyai/ggphylo/internal/apperr"
)

// Run executes name with args, feeding stdin (may be empty) and returning
// stdout. Stderr is captured and attached to the error on failure.
func Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, toolError(name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunToFile is Run for tools that only write to a path; stdout is discarded.
func RunToFile(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return toolError(name, err, string(output))
	}
	return nil
}

func toolError(name string, err error, output string) *apperr.ToolError {
	code := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	}
	return &apperr.ToolError{
		Tool:     name,
		ExitCode: code,
		Output:   strings.TrimSpace(output),
		Err:      err,
	}
}
