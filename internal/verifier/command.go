package verifier

import (
	"context"
	"time"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
)

// CommandVerifier runs the ecosystem's table-driven build command for
// project types without wrapper-script handling.
type CommandVerifier struct {
	Type detect.ProjectType
	Spec detect.BuildSpec
}

func (c *CommandVerifier) Verify(ctx context.Context, environment env.Environment, timeout time.Duration) *model.VerificationResult {
	start := time.Now()
	return runBuild(ctx, environment, c.Spec.BuildCmd, []string{"build"}, timeout, start)
}
