// Package verifier runs the build command for a detected project ecosystem
// and judges pass/fail. Verifiers never return errors: every failure mode,
// including backend exceptions, becomes a failed VerificationResult.
package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
)

// Verifier judges whether the workspace inside an environment builds.
type Verifier interface {
	Verify(ctx context.Context, environment env.Environment, timeout time.Duration) *model.VerificationResult
}

// New selects a verifier for the configured project type. A custom script
// overrides ecosystem selection.
func New(cfg model.VerifierConfig) (Verifier, error) {
	if cfg.CustomScript != "" {
		return &ScriptVerifier{ScriptPath: cfg.CustomScript}, nil
	}
	switch cfg.ProjectType {
	case detect.JavaGradle:
		return &GradleVerifier{}, nil
	case detect.JavaMaven:
		return &MavenVerifier{}, nil
	default:
		spec, ok := detect.Specs[cfg.ProjectType]
		if !ok {
			return nil, fmt.Errorf("no verifier for project type %q", cfg.ProjectType)
		}
		return &CommandVerifier{Type: cfg.ProjectType, Spec: spec}, nil
	}
}

// runBuild executes the build command and maps its exit status to a result.
// Success is exactly "exit code zero"; stdout and stderr are concatenated
// verbatim, stdout first.
func runBuild(ctx context.Context, environment env.Environment, command string, tasksRun []string, timeout time.Duration, start time.Time) *model.VerificationResult {
	res, err := environment.Exec(ctx, command, env.ExecOpts{Timeout: timeout})
	if err != nil {
		return exceptionResult(err, tasksRun, start)
	}
	success := res.ExitCode == 0
	errMsg := ""
	if !success {
		errMsg = "Compilation failed - see output"
	}
	return &model.VerificationResult{
		Success:           success,
		CompilationOutput: res.Stdout + "\n" + res.Stderr,
		DurationSec:       time.Since(start).Seconds(),
		ErrorMessage:      errMsg,
		TasksRun:          tasksRun,
	}
}

// exceptionResult converts a backend exception into a failed result, keeping
// the verifier's never-raises contract.
func exceptionResult(err error, tasksRun []string, start time.Time) *model.VerificationResult {
	if tasksRun == nil {
		tasksRun = []string{}
	}
	return &model.VerificationResult{
		Success:           false,
		CompilationOutput: err.Error(),
		DurationSec:       time.Since(start).Seconds(),
		ErrorMessage:      fmt.Sprintf("Verification exception: %v", err),
		TasksRun:          tasksRun,
	}
}
