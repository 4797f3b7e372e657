package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/macstatd/internal/errors"
)

func TestWriteDetectsRunningInstance(t *testing.T) {
	require.NoError(t, Remove())
	t.Cleanup(func() { _ = Remove() })

	require.NoError(t, Write())

	// The file now names this live process.
	err := Write()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyRunning))

	require.NoError(t, Remove())
	require.NoError(t, Write())
}

func TestWriteReplacesStaleFile(t *testing.T) {
	require.NoError(t, Remove())
	t.Cleanup(func() { _ = Remove() })

	path := filepath.Join(os.TempDir(), pidFile)
	require.NoError(t, os.WriteFile(path, []byte("99999999"), 0o600))

	require.NoError(t, Write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestRemoveMissingFileIsNoop(t *testing.T) {
	require.NoError(t, Remove())
	require.NoError(t, Remove())
}
