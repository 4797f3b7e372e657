package command

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/macstatd/internal/errors"
)

// DefaultTimeout bounds a single command invocation.
const DefaultTimeout = 3 * time.Second

type execRunner struct {
	timeout time.Duration
}

// NewRunner returns a Runner that executes commands with DefaultTimeout.
func NewRunner() Runner {
	return NewRunnerWithTimeout(DefaultTimeout)
}

// NewRunnerWithTimeout returns a Runner with a custom per-command timeout.
func NewRunnerWithTimeout(timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &execRunner{timeout: timeout}
}

func (r *execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, r.wrapError(ctx, name, err)
	}

	return out, nil
}

func (r *execRunner) wrapError(ctx context.Context, name string, err error) error {
	errFactory := errors.New()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errFactory.Wrap(errors.ErrCommandTimeout, err).WithData(name)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return errFactory.Wrap(errors.ErrCommandNotFound, err).WithData(name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return errFactory.Wrap(errors.ErrCommandFailed, err).
			WithData(name + ": " + strings.TrimSpace(string(exitErr.Stderr)))
	}

	return errFactory.Wrap(errors.ErrCommandFailed, err).WithData(name)
}
