package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/github"
	"github.com/fixagent/prverify/internal/model"
	"github.com/fixagent/prverify/internal/runner"
)

// displayTailLines bounds build output shown on failure. Storage keeps the
// full text; only the display is truncated.
const displayTailLines = 50

var (
	flagPRURL       string
	flagProjectType string
	flagOutputDir   string
	flagCPUs        int
	flagMemoryMB    int
	flagTimeoutSec  float64
	flagRetries     int
	flagScript      string
	flagNoInternet  bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify a single PR by URL",
		RunE:  runSingle,
	}
	cmd.Flags().StringVar(&flagPRURL, "pr-url", "", "GitHub PR URL to verify")
	cmd.Flags().StringVar(&flagProjectType, "project-type", "", "project type (auto-detect if empty)")
	cmd.Flags().StringVarP(&flagOutputDir, "output", "o", "results", "output directory")
	cmd.Flags().IntVar(&flagCPUs, "cpus", 2, "CPU cores for the sandbox")
	cmd.Flags().IntVar(&flagMemoryMB, "memory", 4096, "memory limit in MB")
	cmd.Flags().Float64Var(&flagTimeoutSec, "timeout", 1800, "verification timeout in seconds")
	cmd.Flags().IntVar(&flagRetries, "retries", 0, "extra attempts after an infrastructure exception")
	cmd.Flags().StringVar(&flagScript, "verify-script", "", "custom verification script (overrides project type)")
	cmd.Flags().BoolVar(&flagNoInternet, "no-internet", false, "run the sandbox without network access")
	_ = cmd.MarkFlagRequired("pr-url")
	return cmd
}

func runSingle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pr, projectType, err := resolvePR(ctx, flagPRURL, flagProjectType)
	if err != nil {
		return err
	}
	fmt.Printf("PR #%d: %s\n", pr.PRNumber, pr.Title)
	fmt.Printf("  repository: %s/%s\n", pr.RepoOwner, pr.RepoName)
	fmt.Printf("  source: %s @ %.7s\n", pr.SourceBranch, pr.SourceCommit)
	fmt.Printf("  target: %s @ %.7s\n", pr.TargetBranch, pr.TargetCommit)
	fmt.Printf("  project type: %s\n\n", projectType)

	task := model.TaskConfig{
		TaskID:             fmt.Sprintf("pr-%d", pr.PRNumber),
		PRURL:              flagPRURL,
		ProjectType:        projectType,
		TimeoutSec:         flagTimeoutSec,
		CPUs:               flagCPUs,
		MemoryMB:           flagMemoryMB,
		AllowInternet:      !flagNoInternet,
		CustomVerifyScript: flagScript,
	}
	trial := model.NewTrialConfig(task, *pr, flagOutputDir, flagRetries)

	result := runner.New().Run(ctx, trial)
	printTrialResult(result)
	if !result.Success() {
		return fmt.Errorf("verification failed")
	}
	return nil
}

// resolvePR fetches PR metadata and settles the project type, detecting it
// from the target branch when not supplied.
func resolvePR(ctx context.Context, prURL, typeFlag string) (*model.PRInfo, detect.ProjectType, error) {
	client := github.NewClient(flagToken)
	pr, err := client.GetPRInfo(ctx, prURL)
	if err != nil {
		return nil, detect.Unknown, fmt.Errorf("fetching PR info: %w", err)
	}

	if typeFlag != "" {
		pt, ok := detect.Parse(typeFlag)
		if !ok {
			return nil, detect.Unknown, fmt.Errorf("unknown project type %q", typeFlag)
		}
		return pr, pt, nil
	}
	pt := detect.NewDetector(flagToken).FromGitHub(ctx, pr.RepoOwner, pr.RepoName, pr.TargetBranch)
	if pt == detect.Unknown {
		return nil, detect.Unknown, fmt.Errorf("unable to detect project type for %s/%s; pass --project-type", pr.RepoOwner, pr.RepoName)
	}
	return pr, pt, nil
}

func printTrialResult(result *model.TrialResult) {
	if result.Success() {
		fmt.Println("✓ Verification PASSED")
	} else {
		fmt.Println("✗ Verification FAILED")
	}

	if v := result.Verification; v != nil {
		fmt.Printf("  build duration: %.1fs\n", v.DurationSec)
		fmt.Printf("  tasks run: %s\n", strings.Join(v.TasksRun, ", "))
	}
	if d, ok := result.Duration(); ok {
		fmt.Printf("  total duration: %.1fs\n", d.Seconds())
	}
	fmt.Printf("  artifacts: %s\n", result.TrialDir)

	if e := result.Exception; e != nil {
		fmt.Printf("\nException (%s): %s\n", e.Type, e.Message)
	}
	if v := result.Verification; v != nil && !v.Success {
		fmt.Printf("\nBuild output (last %d lines):\n", displayTailLines)
		lines := strings.Split(v.CompilationOutput, "\n")
		if len(lines) > displayTailLines {
			lines = lines[len(lines)-displayTailLines:]
		}
		for _, line := range lines {
			fmt.Printf("  %s\n", line)
		}
	}
}
