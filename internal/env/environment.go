// Package env provides isolated, resource-limited execution environments for
// verification trials and the workspace setup that runs inside them.
package env

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotStarted is returned when an operation requires a running sandbox.
var ErrNotStarted = errors.New("environment not started")

// ProvisioningError means the backend could not create or start the sandbox.
type ProvisioningError struct {
	Name string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning environment %s: %v", e.Name, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// WorkspaceError means a clone/fetch/checkout/branch step failed while
// materializing the PR workspace. Merge conflicts are not workspace errors.
type WorkspaceError struct {
	Step string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace setup (%s): %v", e.Step, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// ExecResult is the outcome of one command run inside a sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExecOpts controls a single command execution.
type ExecOpts struct {
	// WorkDir overrides the environment's default working directory.
	WorkDir string
	// Env is extra environment variables for this command only.
	Env map[string]string
	// Timeout bounds the command; zero means no per-command limit beyond
	// the caller's context.
	Timeout time.Duration
}

// Environment is an isolated sandbox with command execution and file
// transfer. Implementations must be safe to Stop more than once and must
// treat a backend that is already gone as stopped.
type Environment interface {
	// Start provisions the sandbox. An existing sandbox with the same
	// identity is removed first. forceRebuild requests a fresh image build
	// where the backend supports it.
	Start(ctx context.Context, forceRebuild bool) error

	// Stop terminates the sandbox within a bounded grace period, optionally
	// removing backing storage. Never fails on an already-gone sandbox.
	Stop(ctx context.Context, delete bool) error

	// Exec runs a command in the running sandbox. A backend failure to
	// invoke the command yields a synthetic failing ExecResult, not an
	// error; the only error returned is ErrNotStarted.
	Exec(ctx context.Context, command string, opts ExecOpts) (*ExecResult, error)

	// UploadFile copies a local file into the sandbox.
	UploadFile(ctx context.Context, localPath, remotePath string) error

	// DownloadFile copies a sandbox file to the local filesystem, creating
	// missing parent directories.
	DownloadFile(ctx context.Context, remotePath, localPath string) error
}
