package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cpuSortedListing = `  PID  %CPU %MEM COMM
  345  15.0  3.2 Google Chrome
  567   7.2  1.0 WindowServer
    1   2.5  0.4 launchd
  456   0.0  0.1 distnoted
  678   0.0  0.0 mdworker
  789   0.0  0.0 cfprefsd
`

func TestTopCPURanksDescending(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["ps -Aceo pid,pcpu,pmem,comm -r"] = cpuSortedListing

	p := NewProcessCollector(runner)
	top, err := p.TopCPU(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, top, 3)
	assert.Equal(t, "Google Chrome", top[0].Name)
	assert.Equal(t, int32(345), top[0].PID)
	assert.Equal(t, 15.0, top[0].CPU)
	assert.Equal(t, "WindowServer", top[1].Name)
	assert.Equal(t, "launchd", top[2].Name)
}

func TestTopCPUKeepsQuietRowsUpToN(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["ps -Aceo pid,pcpu,pmem,comm -r"] = `  PID  %CPU %MEM COMM
  100   0.0  0.1 quiet-one
  200   0.0  0.2 quiet-two
  300   0.0  0.3 quiet-three
  400   0.0  0.4 quiet-four
`

	p := NewProcessCollector(runner)
	top, err := p.TopCPU(context.Background(), 3)
	require.NoError(t, err)

	// all below the noise floor, yet n candidates are still returned
	require.Len(t, top, 3)
	assert.Equal(t, "quiet-one", top[0].Name)
}

func TestTopCPUSkipsMalformedRows(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["ps -Aceo pid,pcpu,pmem,comm -r"] = `  PID  %CPU %MEM COMM
  345  15.0  3.2 Google Chrome
  notanumber  1.0  1.0 broken
  567   bad  1.0 alsobroken
  toofew 1.0
    1   2.5  0.4 launchd
`

	p := NewProcessCollector(runner)
	top, err := p.TopCPU(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, top, 2)
	assert.Equal(t, "Google Chrome", top[0].Name)
	assert.Equal(t, "launchd", top[1].Name)
}

func TestTopMemoryKeepsSourceOrder(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["ps -Aceo pid,pcpu,pmem,comm -m"] = `  PID  %CPU %MEM COMM
  345   1.0  8.1 Google Chrome
  567   0.5  5.5 WindowServer
  456   0.0  0.05 distnoted
  100   0.1  3.3 Mail
`

	p := NewProcessCollector(runner)
	top, err := p.TopMemory(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, top, 2)
	assert.Equal(t, "Google Chrome", top[0].Name)
	assert.Equal(t, 8.1, top[0].Memory)
	assert.Equal(t, "WindowServer", top[1].Name)
}

func TestTopMemoryScansBoundedWindow(t *testing.T) {
	runner := newFakeRunner()
	// with n=1 only the first 6 rows are scanned; the qualifying row at
	// position 7 must not be reached
	runner.outputs["ps -Aceo pid,pcpu,pmem,comm -m"] = `  PID  %CPU %MEM COMM
  100   0.0  0.01 a
  200   0.0  0.01 b
  300   0.0  0.01 c
  400   0.0  0.01 d
  500   0.0  0.01 e
  600   0.0  0.01 f
  700   0.0  9.9 too-late
`

	p := NewProcessCollector(runner)
	top, err := p.TopMemory(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, top)
}

func TestTopProcessCommandFailure(t *testing.T) {
	p := NewProcessCollector(newFakeRunner())

	_, err := p.TopCPU(context.Background(), 3)
	require.Error(t, err)

	_, err = p.TopMemory(context.Background(), 3)
	require.Error(t, err)
}

func TestParseProcessRowJoinsCommandWords(t *testing.T) {
	entry, ok := parseProcessRow("  345  15.0  3.2 Google Chrome Helper (Renderer)")
	require.True(t, ok)
	assert.Equal(t, "Google Chrome Helper (Renderer)", entry.Name)
	assert.Equal(t, int32(345), entry.PID)
}
