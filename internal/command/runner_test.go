package command_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSuccess(t *testing.T) {
	r := command.NewRunner()

	out, err := r.Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestOutputMissingCommand(t *testing.T) {
	r := command.NewRunner()

	_, err := r.Output(context.Background(), "macstatd-no-such-command")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCommandNotFound))
}

func TestOutputTimeout(t *testing.T) {
	r := command.NewRunnerWithTimeout(50 * time.Millisecond)

	_, err := r.Output(context.Background(), "sleep", "2")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCommandTimeout))
}

func TestOutputCapturesStderr(t *testing.T) {
	r := command.NewRunner()

	_, err := r.Output(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCommandFailed))
	assert.Contains(t, err.Error(), "boom")
}

func TestOutputRespectsCallerDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := command.NewRunner()

	_, err := r.Output(ctx, "sleep", "2")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCommandTimeout))
}
