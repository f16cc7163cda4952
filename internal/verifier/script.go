package verifier

import (
	"context"
	"time"

	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
)

const remoteScriptPath = "/tmp/prverify-verify.sh"

// ScriptVerifier uploads a caller-supplied verification script into the
// environment and judges pass/fail by its exit code.
type ScriptVerifier struct {
	// ScriptPath is a local path to the script.
	ScriptPath string
}

func (s *ScriptVerifier) Verify(ctx context.Context, environment env.Environment, timeout time.Duration) *model.VerificationResult {
	start := time.Now()

	if err := environment.UploadFile(ctx, s.ScriptPath, remoteScriptPath); err != nil {
		return exceptionResult(err, nil, start)
	}
	chmodRes, err := environment.Exec(ctx, "chmod +x "+remoteScriptPath, env.ExecOpts{Timeout: 10 * time.Second})
	if err != nil {
		return exceptionResult(err, nil, start)
	}
	if chmodRes.ExitCode != 0 {
		return &model.VerificationResult{
			Success:           false,
			CompilationOutput: chmodRes.Stderr,
			DurationSec:       time.Since(start).Seconds(),
			ErrorMessage:      "Failed to make verify script executable",
			TasksRun:          []string{},
		}
	}

	return runBuild(ctx, environment, remoteScriptPath, []string{"verify"}, timeout, start)
}
