package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fixagent/prverify/internal/model"
)

// Summary aggregates a batch outcome.
type Summary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// OK reports whether every trial in the batch verified.
func (s *Summary) OK() bool { return s.Failed == 0 }

// BatchResult holds per-trial results keyed by task identity, plus the
// aggregate summary.
type BatchResult struct {
	Results map[string]*model.TrialResult
	Summary Summary
}

// batchKey identifies a trial within a batch.
func batchKey(cfg *model.TrialConfig) string {
	if cfg.Task.TaskID != "" {
		return cfg.Task.TaskID
	}
	return cfg.TrialID.String()
}

// RunBatch executes the trials with at most concurrency running at any
// instant. Each trial is fully independent: its own sandbox identity, output
// directory, and failure domain. A panic inside one trial is captured at the
// scheduler boundary and recorded as that trial's failure.
func (r *Runner) RunBatch(ctx context.Context, configs []*model.TrialConfig, concurrency int) *BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*model.TrialResult, len(configs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, cfg := range configs {
		cfg := cfg
		g.Go(func() error {
			res := r.runGuarded(gctx, cfg)
			mu.Lock()
			results[batchKey(cfg)] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Total: len(results)}
	for key, res := range results {
		if res.Success() {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, key)
		}
	}
	sort.Strings(summary.FailedIDs)

	return &BatchResult{Results: results, Summary: summary}
}

// runGuarded isolates scheduler-level faults: the orchestrator already
// catches its own exceptions, so only a panic can escape it.
func (r *Runner) runGuarded(ctx context.Context, cfg *model.TrialConfig) (res *model.TrialResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("trial", cfg.TrialID.String()).Interface("panic", rec).Msg("trial panicked")
			res = &model.TrialResult{
				TrialID:   cfg.TrialID,
				TrialName: cfg.TrialName,
				TaskID:    cfg.Task.TaskID,
				PRURL:     cfg.PR.PRURL,
				PRNumber:  cfg.PR.PRNumber,
				TrialDir:  model.TrialDir(cfg.OutputDir, cfg),
				Exception: &model.ExceptionInfo{
					Type:    "SchedulerPanic",
					Message: fmt.Sprint(rec),
				},
			}
		}
	}()
	return r.Run(ctx, cfg)
}
