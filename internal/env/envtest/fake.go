// Package envtest provides an in-memory Environment for exercising
// orchestrator and verifier behavior without a container backend.
package envtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fixagent/prverify/internal/env"
)

// Response is a scripted reply for commands containing Match.
type Response struct {
	Match  string
	Result env.ExecResult
	// Err, when set, is returned instead of a result.
	Err error
}

// Fake is a scriptable Environment. Commands are answered by the first
// matching Response; unmatched commands succeed with exit 0.
type Fake struct {
	mu sync.Mutex

	Responses []Response

	// StartErr / StopErr force lifecycle failures.
	StartErr error
	StopErr  error

	// NotStarted makes Exec fail with env.ErrNotStarted.
	NotStarted bool

	StartCalls int
	StopCalls  int
	Commands   []string
	Uploads    map[string]string
}

// NewFake returns an empty fake that answers every command with success.
func NewFake() *Fake {
	return &Fake{Uploads: map[string]string{}}
}

func (f *Fake) Start(ctx context.Context, forceRebuild bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartCalls++
	return f.StartErr
}

func (f *Fake) Stop(ctx context.Context, delete bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	return f.StopErr
}

func (f *Fake) Exec(ctx context.Context, command string, opts env.ExecOpts) (*env.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NotStarted {
		return nil, env.ErrNotStarted
	}
	f.Commands = append(f.Commands, command)
	for _, r := range f.Responses {
		if strings.Contains(command, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			res := r.Result
			return &res, nil
		}
	}
	return &env.ExecResult{ExitCode: 0}, nil
}

func (f *Fake) UploadFile(ctx context.Context, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads[remotePath] = string(data)
	return nil
}

func (f *Fake) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	f.mu.Lock()
	content, ok := f.Uploads[remotePath]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s not found", remotePath)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

// Ran reports whether any executed command contains substr.
func (f *Fake) Ran(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Commands {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
