package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// result is the outcome of one bridge run.
type result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// executor abstracts command execution for testing.
type executor interface {
	Run(ctx context.Context, name string, args []string, dir string, stdin []byte) (result, error)
}

// osExecutor is the production executor backed by os/exec.
// A non-zero exit is reported through ExitCode, not as an error.
type osExecutor struct {
	waitDelay time.Duration
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, dir string, stdin []byte) (result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = o.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("run %s: %w", name, err)
	}
}
