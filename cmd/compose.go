package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fixagent/prverify/internal/compose"
	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/github"
)

var (
	flagTasksDir     string
	flagComposeType  string
	flagComposePRURL string
	flagComposeTask  string
	flagNoFollow     bool
	flagNoCleanup    bool
	flagConcurrent   int
	flagPattern      string
	flagSkipVerified bool
)

func newGenerateComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-compose",
		Short: "Generate a docker-compose verification task from a PR URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pr, projectType, err := resolvePR(ctx, flagComposePRURL, flagComposeType)
			if err != nil {
				return err
			}

			gen := &compose.Generator{TasksDir: flagTasksDir}
			taskDir, err := gen.Generate(pr, projectType)
			if err != nil {
				return err
			}
			fmt.Printf("Task generated: %s\n", taskDir)
			fmt.Printf("Run it with: prverify run-compose --task %s\n", filepath.Base(taskDir))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagComposePRURL, "pr-url", "", "GitHub PR URL")
	cmd.Flags().StringVar(&flagComposeType, "project-type", "", "project type (auto-detect if empty)")
	cmd.Flags().StringVar(&flagTasksDir, "tasks-dir", "tasks", "tasks directory")
	_ = cmd.MarkFlagRequired("pr-url")
	return cmd
}

func newRunComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-compose",
		Short: "Run a generated docker-compose task",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskDir := filepath.Join(flagTasksDir, flagComposeTask)
			outcome, err := compose.RunTask(context.Background(), taskDir, !flagNoFollow, !flagNoCleanup)
			if err != nil {
				return err
			}
			if outcome.Verified {
				fmt.Println("✓ Verification PASSED")
			} else {
				fmt.Println("✗ Verification FAILED")
			}
			fmt.Printf("  exit code: %s\n", outcome.ExitCode)
			fmt.Printf("  results: %s\n", filepath.Join(taskDir, "logs", "verifier"))
			if !outcome.Verified {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagComposeTask, "task", "", "task name (e.g. myrepo_123)")
	cmd.Flags().StringVar(&flagTasksDir, "tasks-dir", "tasks", "tasks directory")
	cmd.Flags().BoolVar(&flagNoFollow, "no-follow", false, "suppress build output instead of streaming it")
	cmd.Flags().BoolVar(&flagNoCleanup, "no-cleanup", false, "leave the compose stack up after the run")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newRunAllComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-all-compose",
		Short: "Run all docker-compose tasks with bounded concurrency",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := compose.RunAll(context.Background(), flagTasksDir, flagPattern, flagConcurrent, flagSkipVerified)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No tasks found matching criteria")
				return nil
			}

			total, success := len(results), 0
			var failed []string
			for name, ok := range results {
				if ok {
					success++
				} else {
					failed = append(failed, name)
				}
			}
			fmt.Printf("\nSummary: total=%d success=%d failed=%d\n", total, success, len(failed))
			for _, name := range failed {
				fmt.Printf("  failed: %s\n", name)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d tasks failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagTasksDir, "tasks-dir", "tasks", "tasks directory")
	cmd.Flags().IntVarP(&flagConcurrent, "concurrent", "c", 4, "max concurrent tasks")
	cmd.Flags().StringVar(&flagPattern, "pattern", "*", "task name pattern")
	cmd.Flags().BoolVar(&flagSkipVerified, "skip-verified", false, "skip already verified tasks")
	return cmd
}

func newListComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-compose",
		Short: "List generated docker-compose tasks and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := compose.ListTasks(flagTasksDir)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No tasks found")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tPR\tSTATUS")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%s\t#%s\t%s\n", s.Name, s.PRNumber, s.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&flagTasksDir, "tasks-dir", "tasks", "tasks directory")
	return cmd
}

func newDetectCmd() *cobra.Command {
	var repoPath string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the project type of a PR's target repo or a local path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoPath != "" {
				fmt.Println(detect.NewDetector(flagToken).FromLocal(repoPath))
				return nil
			}
			ctx := context.Background()
			client := github.NewClient(flagToken)
			pr, err := client.GetPRInfo(ctx, flagComposePRURL)
			if err != nil {
				return err
			}
			pt := detect.NewDetector(flagToken).FromGitHub(ctx, pr.RepoOwner, pr.RepoName, pr.TargetBranch)
			fmt.Println(pt)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagComposePRURL, "pr-url", "", "GitHub PR URL")
	cmd.Flags().StringVar(&repoPath, "path", "", "local repository path")
	return cmd
}
