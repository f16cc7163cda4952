package env

import (
	"context"
	"fmt"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog/log"

	"github.com/fixagent/prverify/internal/model"
)

// mergeBranch is the throwaway branch holding the trial merge.
const mergeBranch = "mock-merge"

// SetupPRWorkspace turns a freshly started environment into a checked-out,
// PR-merged source tree:
//
//  1. shallow-clone the target repo at the target branch
//  2. fetch history to the target commit and the PR head ref
//  3. check out the exact target commit
//  4. branch off it for the trial merge
//  5. merge the PR head without committing
//
// Steps 1-4 are fatal. A merge conflict in step 5 is swallowed: the verifier
// surfaces the consequence as a failing build, so "doesn't apply" and
// "applies but breaks the build" share one signal path.
func SetupPRWorkspace(ctx context.Context, environment Environment, workingDir string, pr *model.PRInfo) error {
	cloneCmd := fmt.Sprintf("git clone --depth=1 --branch %s %s %s",
		shellescape.Quote(pr.TargetBranch), shellescape.Quote(pr.TargetRepoURL), shellescape.Quote(workingDir))
	if err := runStep(ctx, environment, "clone", cloneCmd, ExecOpts{WorkDir: "/"}); err != nil {
		return err
	}

	fetchCmd := fmt.Sprintf("git fetch --depth=50 origin %s && git fetch origin %s",
		shellescape.Quote(pr.TargetCommit),
		shellescape.Quote(fmt.Sprintf("pull/%d/head:pr-source", pr.PRNumber)))
	if err := runStep(ctx, environment, "fetch", fetchCmd, ExecOpts{}); err != nil {
		return err
	}

	checkoutCmd := "git checkout " + shellescape.Quote(pr.TargetCommit)
	if err := runStep(ctx, environment, "checkout", checkoutCmd, ExecOpts{}); err != nil {
		return err
	}

	if err := runStep(ctx, environment, "branch", "git checkout -b "+mergeBranch, ExecOpts{}); err != nil {
		return err
	}

	mergeRes, err := environment.Exec(ctx, "git merge pr-source --no-commit --no-edit", ExecOpts{})
	if err != nil {
		return err
	}
	if mergeRes.ExitCode != 0 {
		log.Warn().Int("pr", pr.PRNumber).Msg("merge conflicts detected, continuing; build will surface the consequence")
	}
	return nil
}

func runStep(ctx context.Context, environment Environment, step, command string, opts ExecOpts) error {
	res, err := environment.Exec(ctx, command, opts)
	if err != nil {
		return &WorkspaceError{Step: step, Err: err}
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		return &WorkspaceError{Step: step, Err: fmt.Errorf("exit %d: %s", res.ExitCode, detail)}
	}
	return nil
}
