package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fixagent/prverify/internal/config"
	"github.com/fixagent/prverify/internal/github"
	"github.com/fixagent/prverify/internal/model"
	"github.com/fixagent/prverify/internal/report"
	"github.com/fixagent/prverify/internal/runner"
)

var (
	flagBatchFile   string
	flagBatchFormat string
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a batch of verification tasks from a yaml file",
		RunE:  runBatch,
	}
	cmd.Flags().StringVarP(&flagBatchFile, "config", "c", "prverify.yaml", "batch file path")
	cmd.Flags().StringVar(&flagBatchFormat, "format", "table", "summary format: table, markdown, json")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(flagBatchFile)
	if err != nil {
		return err
	}

	client := github.NewClient(flagToken)
	configs := make([]*model.TrialConfig, 0, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		pr, err := client.GetPRInfo(ctx, task.PRURL)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.TaskID, err)
		}
		configs = append(configs, model.NewTrialConfig(task, *pr, cfg.OutputDir, cfg.Retries))
	}

	fmt.Printf("Running %d trials (concurrency %d)...\n\n", len(configs), cfg.Concurrency)
	batch := runner.New().RunBatch(ctx, configs, cfg.Concurrency)

	if err := report.Write(batch, flagBatchFormat, os.Stdout); err != nil {
		return err
	}
	if !batch.Summary.OK() {
		return fmt.Errorf("%d of %d trials failed", batch.Summary.Failed, batch.Summary.Total)
	}
	return nil
}
