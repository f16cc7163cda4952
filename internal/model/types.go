// Package model holds the shared data model for verification trials and the
// on-disk artifact layout each trial produces.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fixagent/prverify/internal/detect"
)

// PRInfo describes a pull request as reported by the hosting service.
// Repo URLs are resolvable clone endpoints; commits are full SHAs.
type PRInfo struct {
	PRURL     string `json:"pr_url" yaml:"pr_url"`
	RepoOwner string `json:"repo_owner" yaml:"repo_owner"`
	RepoName  string `json:"repo_name" yaml:"repo_name"`
	PRNumber  int    `json:"pr_number" yaml:"pr_number"`

	SourceBranch  string `json:"source_branch" yaml:"source_branch"`
	SourceCommit  string `json:"source_commit" yaml:"source_commit"`
	SourceRepoURL string `json:"source_repo_url" yaml:"source_repo_url"`

	TargetBranch  string `json:"target_branch" yaml:"target_branch"`
	TargetCommit  string `json:"target_commit" yaml:"target_commit"`
	TargetRepoURL string `json:"target_repo_url" yaml:"target_repo_url"`

	Title string `json:"title" yaml:"title"`
	State string `json:"state" yaml:"state"`
}

// CloneURL returns the clone endpoint of the target repository.
func (p *PRInfo) CloneURL() string {
	return p.TargetRepoURL
}

// TaskConfig is one verification intent. Immutable once created.
type TaskConfig struct {
	TaskID      string             `json:"task_id" yaml:"task_id"`
	PRURL       string             `json:"pr_url" yaml:"pr_url"`
	ProjectType detect.ProjectType `json:"project_type" yaml:"project_type"`

	TimeoutSec    float64 `json:"timeout_sec" yaml:"timeout_sec"`
	CPUs          int     `json:"cpus" yaml:"cpus"`
	MemoryMB      int     `json:"memory_mb" yaml:"memory_mb"`
	AllowInternet bool    `json:"allow_internet" yaml:"allow_internet"`

	CustomVerifyScript string `json:"custom_verify_script,omitempty" yaml:"custom_verify_script,omitempty"`
	Priority           string `json:"priority" yaml:"priority"`
}

// EnvironmentConfig sizes the sandbox for one trial.
type EnvironmentConfig struct {
	Type          string `json:"type"`
	CPUs          int    `json:"cpus"`
	MemoryMB      int    `json:"memory_mb"`
	AllowInternet bool   `json:"allow_internet"`
}

// VerifierConfig parameterizes the verification step.
type VerifierConfig struct {
	TimeoutSec   float64            `json:"timeout_sec"`
	ProjectType  detect.ProjectType `json:"project_type"`
	CustomScript string             `json:"custom_script,omitempty"`
}

// Timeout returns the verification timeout as a duration.
func (v VerifierConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSec * float64(time.Second))
}

// TrialConfig is one unit of work. Created once per trial invocation and
// immutable for the trial's lifetime.
type TrialConfig struct {
	TrialID     uuid.UUID         `json:"trial_id"`
	TrialName   string            `json:"trial_name"`
	Task        TaskConfig        `json:"task"`
	PR          PRInfo            `json:"pr_info"`
	Environment EnvironmentConfig `json:"environment"`
	Verifier    VerifierConfig    `json:"verifier"`

	// OutputDir is where trial artifacts land. Deliberately excluded from
	// the persisted config.json so result directories stay relocatable.
	OutputDir string `json:"-"`

	// RetryAttempts is how many extra times the orchestrator re-runs the
	// trial after an infrastructure exception. Verified build failures are
	// never retried.
	RetryAttempts int `json:"retry_attempts"`
}

// NewTrialConfig assembles the unit of work for one trial invocation,
// minting a fresh trial identity.
func NewTrialConfig(task TaskConfig, pr PRInfo, outputDir string, retries int) *TrialConfig {
	id := uuid.New()
	return &TrialConfig{
		TrialID:   id,
		TrialName: fmt.Sprintf("pr-%d__trial-%.8s", pr.PRNumber, id.String()),
		Task:      task,
		PR:        pr,
		Environment: EnvironmentConfig{
			Type:          "docker",
			CPUs:          task.CPUs,
			MemoryMB:      task.MemoryMB,
			AllowInternet: task.AllowInternet,
		},
		Verifier: VerifierConfig{
			TimeoutSec:   task.TimeoutSec,
			ProjectType:  task.ProjectType,
			CustomScript: task.CustomVerifyScript,
		},
		OutputDir:     outputDir,
		RetryAttempts: retries,
	}
}

// VerificationResult is the verifier's judgment of one build run.
type VerificationResult struct {
	Success           bool     `json:"success"`
	CompilationOutput string   `json:"compilation_output"`
	DurationSec       float64  `json:"duration_sec"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	TasksRun          []string `json:"tasks_run"`
}

// ExceptionInfo captures an unhandled failure during a trial.
type ExceptionInfo struct {
	Type    string `json:"exception_type"`
	Message string `json:"exception_message"`
	Trace   string `json:"traceback"`
}

// TrialResult accumulates the outcome of one trial. It is owned exclusively
// by the orchestrator until persisted, then treated as immutable.
type TrialResult struct {
	TrialID   uuid.UUID `json:"trial_id"`
	TrialName string    `json:"trial_name"`
	TaskID    string    `json:"task_id"`
	PRURL     string    `json:"pr_url"`
	PRNumber  int       `json:"pr_number"`

	Verification *VerificationResult `json:"verification_result,omitempty"`
	Exception    *ExceptionInfo      `json:"exception_info,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	TrialDir string `json:"trial_dir"`

	// Attempt is which orchestrator attempt (1-based) produced this result.
	Attempt int `json:"attempt"`
}

// Duration reports the wall-clock trial duration, or false until both
// timestamps are set.
func (r *TrialResult) Duration() (time.Duration, bool) {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0, false
	}
	return r.FinishedAt.Sub(*r.StartedAt), true
}

// Success reports whether the trial verified cleanly: no exception, a
// verification result present, and that result successful.
func (r *TrialResult) Success() bool {
	return r.Exception == nil && r.Verification != nil && r.Verification.Success
}
