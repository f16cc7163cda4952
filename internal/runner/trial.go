// Package runner sequences environment, workspace setup, and verification
// for single trials, and schedules batches of them with bounded concurrency.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/env"
	"github.com/fixagent/prverify/internal/model"
	"github.com/fixagent/prverify/internal/verifier"
)

// setupGrace is added to the verification timeout to form the whole-trial
// wall-clock budget, covering provisioning and workspace setup.
const setupGrace = 10 * time.Minute

// fallbackImage hosts custom verify scripts when no ecosystem image applies.
const fallbackImage = "ubuntu:22.04"

// EnvironmentFactory builds the sandbox for one trial. The sandbox identity
// must be derived from the trial id so concurrent trials never collide.
type EnvironmentFactory func(cfg *model.TrialConfig) (env.Environment, error)

// Runner executes verification trials.
type Runner struct {
	Factory EnvironmentFactory
}

// New returns a Runner backed by Docker environments.
func New() *Runner {
	return &Runner{Factory: dockerFactory}
}

func dockerFactory(cfg *model.TrialConfig) (env.Environment, error) {
	image := fallbackImage
	if spec, ok := detect.Specs[cfg.Verifier.ProjectType]; ok {
		image = spec.Image
	} else if cfg.Verifier.CustomScript == "" {
		return nil, fmt.Errorf("no environment image for project type %q", cfg.Verifier.ProjectType)
	}
	return env.NewDockerEnvironment(env.DockerOpts{
		ContainerName: "prverify-" + cfg.TrialID.String(),
		Image:         image,
		CPUs:          cfg.Environment.CPUs,
		MemoryMB:      cfg.Environment.MemoryMB,
		AllowInternet: cfg.Environment.AllowInternet,
	})
}

// Run executes a trial, re-running it up to cfg.RetryAttempts extra times
// when an attempt ends in an infrastructure exception. A verified build
// failure is a terminal answer and is never retried. Run never returns an
// error: every outcome is recorded in the result.
func (r *Runner) Run(ctx context.Context, cfg *model.TrialConfig) *model.TrialResult {
	for attempt := 1; ; attempt++ {
		result := r.runOnce(ctx, cfg, attempt)
		if result.Exception == nil || attempt > cfg.RetryAttempts || ctx.Err() != nil {
			return result
		}
		log.Warn().
			Str("trial", cfg.TrialID.String()).
			Int("attempt", attempt).
			Str("exception", result.Exception.Type).
			Msg("retrying trial after infrastructure exception")
	}
}

// runOnce is one full pass through the trial state machine: artifacts-first
// config persistence, environment start, workspace setup, verification, and
// teardown plus result persistence on every exit path.
func (r *Runner) runOnce(ctx context.Context, cfg *model.TrialConfig, attempt int) *model.TrialResult {
	trialDir := model.TrialDir(cfg.OutputDir, cfg)
	started := time.Now()
	result := &model.TrialResult{
		TrialID:   cfg.TrialID,
		TrialName: cfg.TrialName,
		TaskID:    cfg.Task.TaskID,
		PRURL:     cfg.PR.PRURL,
		PRNumber:  cfg.PR.PRNumber,
		StartedAt: &started,
		TrialDir:  trialDir,
		Attempt:   attempt,
	}

	// Persist the config before any environment exists so a crashed trial
	// still leaves a reconstructable record.
	if err := model.WriteTrialConfig(trialDir, cfg); err != nil {
		result.Exception = toExceptionInfo(err)
		finished := time.Now()
		result.FinishedAt = &finished
		return result
	}

	trialCtx, cancel := context.WithTimeout(ctx, cfg.Verifier.Timeout()+setupGrace)
	defer cancel()

	var environment env.Environment
	err := func() error {
		e, err := r.Factory(cfg)
		if err != nil {
			return err
		}
		environment = e

		log.Info().Str("trial", cfg.TrialID.String()).Msg("starting environment")
		if err := environment.Start(trialCtx, false); err != nil {
			return err
		}
		if spec, ok := detect.Specs[cfg.Verifier.ProjectType]; ok && spec.Setup != "" {
			res, err := environment.Exec(trialCtx, spec.Setup, env.ExecOpts{WorkDir: "/"})
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("environment setup failed (exit %d): %s", res.ExitCode, res.Stderr)
			}
		}

		log.Info().Str("trial", cfg.TrialID.String()).Int("pr", cfg.PR.PRNumber).Msg("setting up PR workspace")
		if err := env.SetupPRWorkspace(trialCtx, environment, "/workspace", &cfg.PR); err != nil {
			return err
		}

		v, err := verifier.New(cfg.Verifier)
		if err != nil {
			return err
		}
		log.Info().Str("trial", cfg.TrialID.String()).Msg("running verification")
		result.Verification = v.Verify(trialCtx, environment, cfg.Verifier.Timeout())
		return nil
	}()
	if err != nil {
		result.Exception = toExceptionInfo(err)
		if writeErr := model.WriteException(trialDir, result.Exception); writeErr != nil {
			log.Warn().Err(writeErr).Str("trial", cfg.TrialID.String()).Msg("writing exception artifact")
		}
	}

	// Teardown and result persistence run on every exit path. Cleanup
	// failures are logged, never allowed to mask the trial's outcome, and
	// use a fresh context so they still run after budget expiry.
	if environment != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
		if stopErr := environment.Stop(stopCtx, true); stopErr != nil {
			log.Warn().Err(stopErr).Str("trial", cfg.TrialID.String()).Msg("stopping environment")
		}
		stopCancel()
	}
	finished := time.Now()
	result.FinishedAt = &finished
	if writeErr := model.WriteTrialResult(trialDir, result); writeErr != nil {
		log.Warn().Err(writeErr).Str("trial", cfg.TrialID.String()).Msg("writing result artifact")
	}
	if result.Verification != nil {
		if writeErr := model.WriteCompilationLog(trialDir, result.Verification.CompilationOutput); writeErr != nil {
			log.Warn().Err(writeErr).Str("trial", cfg.TrialID.String()).Msg("writing compilation log")
		}
	}
	return result
}

// toExceptionInfo classifies an orchestrator-level failure.
func toExceptionInfo(err error) *model.ExceptionInfo {
	kind := "UnexpectedError"
	var provErr *env.ProvisioningError
	var wsErr *env.WorkspaceError
	switch {
	case errors.As(err, &provErr):
		kind = "ProvisioningError"
	case errors.As(err, &wsErr):
		kind = "WorkspaceError"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = "Cancelled"
	}
	return &model.ExceptionInfo{
		Type:    kind,
		Message: err.Error(),
		Trace:   fmt.Sprintf("%v\n\n%s", err, debug.Stack()),
	}
}
