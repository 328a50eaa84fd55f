package shell

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesBothStreams(t *testing.T) {
	r := NewRunner(Config{}, nil)

	res := r.Run(context.Background(), `echo out; echo err >&2`, 10*time.Second)

	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.TimedOut)
	assert.Empty(t, res.Err)
}

func TestRun_NonzeroExitIsDataNotError(t *testing.T) {
	r := NewRunner(Config{}, nil)

	res := r.Run(context.Background(), "exit 7", 10*time.Second)

	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 7, *res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Empty(t, res.Err)
}

func TestRun_Timeout(t *testing.T) {
	r := NewRunner(Config{}, nil)

	res := r.Run(context.Background(), "sleep 5", 100*time.Millisecond)

	assert.True(t, res.TimedOut)
	assert.Nil(t, res.ExitCode)
	assert.Empty(t, res.Err)
}

func TestRun_HostFaultWhenShellMissing(t *testing.T) {
	r := NewRunner(Config{Shell: []string{"/nonexistent/shell", "-c"}}, nil)

	res := r.Run(context.Background(), "echo hi", time.Second)

	assert.Nil(t, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.NotEmpty(t, res.Err)
}

func TestRun_OutputTruncatedAtCap(t *testing.T) {
	r := NewRunner(Config{MaxOutputBytes: 64}, nil)

	res := r.Run(context.Background(), `yes x | head -c 4096`, 10*time.Second)

	require.NotNil(t, res.ExitCode)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 64)
}

func TestRun_ZeroTimeoutUsesDefault(t *testing.T) {
	r := NewRunner(Config{}, nil)

	res := r.Run(context.Background(), "true", 0)

	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
}

func TestRun_WorkDir(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(Config{WorkDir: dir}, nil)

	res := r.Run(context.Background(), "pwd", 10*time.Second)

	require.NotNil(t, res.ExitCode)
	assert.Equal(t, dir, strings.TrimSpace(res.Stdout))
}
