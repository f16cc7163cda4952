package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fixagent/prverify/internal/model"
	"github.com/fixagent/prverify/internal/runner"
)

func sampleBatch() *runner.BatchResult {
	start := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	pass := &model.TrialResult{
		TrialID:      uuid.New(),
		PRNumber:     1,
		StartedAt:    &start,
		FinishedAt:   &end,
		Verification: &model.VerificationResult{Success: true, TasksRun: []string{"clean", "build"}},
	}
	fail := &model.TrialResult{
		TrialID:    uuid.New(),
		PRNumber:   2,
		StartedAt:  &start,
		FinishedAt: &end,
		Verification: &model.VerificationResult{
			Success:      false,
			ErrorMessage: "Compilation failed - see output",
			TasksRun:     []string{"clean", "build"},
		},
	}
	errored := &model.TrialResult{
		TrialID:   uuid.New(),
		PRNumber:  3,
		Exception: &model.ExceptionInfo{Type: "ProvisioningError", Message: "no daemon"},
	}

	return &runner.BatchResult{
		Results: map[string]*model.TrialResult{
			"task-pass": pass,
			"task-fail": fail,
			"task-err":  errored,
		},
		Summary: runner.Summary{
			Total:     3,
			Succeeded: 1,
			Failed:    2,
			FailedIDs: []string{"task-err", "task-fail"},
		},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleBatch(), "table", &buf))
	out := buf.String()

	require.Contains(t, out, "TASK")
	require.Contains(t, out, "PASS")
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, "ERROR")
	require.Contains(t, out, "ProvisioningError")
	require.Contains(t, out, "Compilation failed - see output")
	require.Contains(t, out, "TOTAL 3")
	require.Contains(t, out, "90.0s")
}

func TestWriteTableOrdersByKey(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleBatch(), "table", &buf))
	out := buf.String()
	require.Less(t, strings.Index(out, "task-err"), strings.Index(out, "task-fail"))
	require.Less(t, strings.Index(out, "task-fail"), strings.Index(out, "task-pass"))
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleBatch(), "markdown", &buf))
	out := buf.String()

	require.Contains(t, out, "| Task | PR | Status | Duration | Detail |")
	require.Contains(t, out, "| task-pass | #1 | PASS |")
	require.Contains(t, out, "**Total:** 3, **passed:** 1, **failed:** 2")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleBatch(), "json", &buf))

	var decoded struct {
		Summary runner.Summary                `json:"summary"`
		Results map[string]*model.TrialResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, 3, decoded.Summary.Total)
	require.Len(t, decoded.Results, 3)
	require.Equal(t, "ProvisioningError", decoded.Results["task-err"].Exception.Type)
}

func TestStatusDistinctions(t *testing.T) {
	pass := &model.TrialResult{Verification: &model.VerificationResult{Success: true}}
	fail := &model.TrialResult{Verification: &model.VerificationResult{Success: false}}
	errored := &model.TrialResult{Exception: &model.ExceptionInfo{Type: "WorkspaceError"}}

	require.Equal(t, "PASS", statusOf(pass))
	require.Equal(t, "FAIL", statusOf(fail))
	require.Equal(t, "ERROR", statusOf(errored))
}
