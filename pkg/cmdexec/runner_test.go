package cmdexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputCapturesStdoutOnly(t *testing.T) {
	run := NewRunner()

	out, err := run.Output(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", out)
}

func TestOutputFailsOnNonZeroExit(t *testing.T) {
	run := NewRunner()

	out, err := run.Output(context.Background(), "sh", "-c", "echo out; exit 3")
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestCombinedMergesStderr(t *testing.T) {
	run := NewRunner()

	out, err := run.Combined(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n")
}

func TestCombinedKeepsOutputOnFailure(t *testing.T) {
	run := NewRunner()

	// The exit error and the captured text both reach the caller; the tool
	// drivers decide success from the text alone.
	out, err := run.Combined(context.Background(), "sh", "-c", "echo diagnostics >&2; exit 22")
	assert.Error(t, err)
	assert.Contains(t, out, "diagnostics")
}

func TestOutputRejectsBinaryOutput(t *testing.T) {
	run := NewRunner()

	_, err := run.Output(context.Background(), "sh", "-c", `printf '\377\376'`)
	assert.ErrorIs(t, err, ErrOutputNotText)
}

func TestOutputHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Output(ctx, "sh", "-c", "sleep 5")
	assert.Error(t, err)
}
