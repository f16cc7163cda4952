package verifier

import (
	"context"
	"strings"
	"time"

	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
)

// MavenVerifier compiles Maven projects, preferring the bundled wrapper over
// a system-installed mvn.
type MavenVerifier struct{}

func (m *MavenVerifier) Verify(ctx context.Context, environment env.Environment, timeout time.Duration) *model.VerificationResult {
	start := time.Now()

	wrapperCheck, err := environment.Exec(ctx, "test -f ./mvnw && echo 'yes' || echo 'no'", env.ExecOpts{Timeout: 10 * time.Second})
	if err != nil {
		return exceptionResult(err, nil, start)
	}

	mvnCmd := "mvn"
	if strings.Contains(wrapperCheck.Stdout, "yes") {
		mvnCmd = "./mvnw"
		chmodRes, err := environment.Exec(ctx, "chmod +x ./mvnw", env.ExecOpts{Timeout: 10 * time.Second})
		if err != nil {
			return exceptionResult(err, nil, start)
		}
		if chmodRes.ExitCode != 0 {
			return &model.VerificationResult{
				Success:           false,
				CompilationOutput: chmodRes.Stderr,
				DurationSec:       time.Since(start).Seconds(),
				ErrorMessage:      "Failed to make mvnw executable",
				TasksRun:          []string{},
			}
		}
	}

	tasksRun := []string{"clean", "compile"}
	buildCmd := mvnCmd + " clean compile -DskipTests -B"
	return runBuild(ctx, environment, buildCmd, tasksRun, timeout, start)
}
