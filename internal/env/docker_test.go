package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimedOutResultReportsElapsedTime(t *testing.T) {
	res := timedOutResult("partial stdout", "partial stderr", 90*time.Second)

	require.Equal(t, 124, res.ExitCode)
	require.Equal(t, 90*time.Second, res.Duration)
	require.Equal(t, "partial stdout", res.Stdout)
	require.Contains(t, res.Stderr, "partial stderr")
	require.Contains(t, res.Stderr, "command timed out after 1m30s")
	require.NotContains(t, res.Stderr, "after 0s",
		"message must reflect observed time even without a per-command limit")
}
