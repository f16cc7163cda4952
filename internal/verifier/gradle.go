package verifier

import (
	"context"
	"strings"
	"time"

	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
)

// GradleVerifier builds Gradle projects, preferring the bundled wrapper over
// a system-installed gradle.
type GradleVerifier struct{}

func (g *GradleVerifier) Verify(ctx context.Context, environment env.Environment, timeout time.Duration) *model.VerificationResult {
	start := time.Now()

	wrapperCheck, err := environment.Exec(ctx, "test -f ./gradlew && echo 'yes' || echo 'no'", env.ExecOpts{Timeout: 10 * time.Second})
	if err != nil {
		return exceptionResult(err, nil, start)
	}

	gradleCmd := "gradle"
	if strings.Contains(wrapperCheck.Stdout, "yes") {
		gradleCmd = "./gradlew"
		chmodRes, err := environment.Exec(ctx, "chmod +x ./gradlew", env.ExecOpts{Timeout: 10 * time.Second})
		if err != nil {
			return exceptionResult(err, nil, start)
		}
		if chmodRes.ExitCode != 0 {
			return &model.VerificationResult{
				Success:           false,
				CompilationOutput: chmodRes.Stderr,
				DurationSec:       time.Since(start).Seconds(),
				ErrorMessage:      "Failed to make gradlew executable",
				TasksRun:          []string{},
			}
		}
	}

	tasksRun := []string{"clean", "build"}
	buildCmd := gradleCmd + " clean build -x test --no-daemon --stacktrace"
	return runBuild(ctx, environment, buildCmd, tasksRun, timeout, start)
}
