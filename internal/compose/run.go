package compose

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// resultGrace bounds how long we wait for the mounted result file to appear
// after compose exits.
const resultGrace = 5 * time.Second

// Outcome is what a compose task left behind.
type Outcome struct {
	Verified  bool
	ExitCode  string
	Timestamp string
}

// TaskStatus describes one generated task for listing.
type TaskStatus struct {
	Name     string
	PRNumber string
	Status   string
}

func verifierLogDir(taskDir string) string {
	return filepath.Join(taskDir, "logs", "verifier")
}

// Verified reports whether a task directory holds a passing result:
// result.txt containing exactly "1".
func Verified(taskDir string) bool {
	data, err := os.ReadFile(filepath.Join(verifierLogDir(taskDir), ResultFile))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// RunTask runs one compose task to completion and reads back its result
// files. The compose stack is torn down afterwards when cleanup is set,
// regardless of outcome.
func RunTask(ctx context.Context, taskDir string, attached, cleanup bool) (*Outcome, error) {
	if _, err := os.Stat(filepath.Join(taskDir, "docker-compose.yaml")); err != nil {
		return nil, fmt.Errorf("no docker-compose.yaml in %s: %w", taskDir, err)
	}

	defer func() {
		if cleanup {
			down := exec.Command("docker", "compose", "down")
			down.Dir = taskDir
			if out, err := down.CombinedOutput(); err != nil {
				log.Warn().Err(err).Str("task", filepath.Base(taskDir)).Str("output", string(out)).Msg("compose down")
			}
		}
	}()

	// `up` always runs in the foreground and blocks until the service
	// exits: --abort-on-container-exit cannot be combined with detach, and
	// the result files only exist once the service is done. A quiet run
	// captures output instead of detaching. The build's exit status is
	// carried by result.txt, not the compose process, so a nonzero compose
	// exit is not itself an error.
	up := exec.CommandContext(ctx, "docker", "compose", "up", "--abort-on-container-exit")
	up.Dir = taskDir
	if attached {
		up.Stdout = os.Stdout
		up.Stderr = os.Stderr
		if err := up.Run(); err != nil {
			log.Debug().Err(err).Str("task", filepath.Base(taskDir)).Msg("compose up exited nonzero")
		}
	} else if out, err := up.CombinedOutput(); err != nil {
		log.Debug().Err(err).Str("task", filepath.Base(taskDir)).Str("output", string(out)).Msg("compose up exited nonzero")
	}

	if err := waitForFile(ctx, verifierLogDir(taskDir), ResultFile, resultGrace); err != nil {
		return nil, fmt.Errorf("no result file produced: %w", err)
	}
	return readOutcome(taskDir)
}

func readOutcome(taskDir string) (*Outcome, error) {
	logDir := verifierLogDir(taskDir)
	result, err := os.ReadFile(filepath.Join(logDir, ResultFile))
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	out := &Outcome{Verified: strings.TrimSpace(string(result)) == "1"}
	if data, err := os.ReadFile(filepath.Join(logDir, ExitCodeFile)); err == nil {
		out.ExitCode = strings.TrimSpace(string(data))
	}
	if data, err := os.ReadFile(filepath.Join(logDir, TimestampFile)); err == nil {
		out.Timestamp = strings.TrimSpace(string(data))
	}
	return out, nil
}

// waitForFile waits until name exists in dir, watching the directory instead
// of polling. The bind-mounted log dir can lag the container exit slightly.
func waitForFile(ctx context.Context, dir, name string, timeout time.Duration) error {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	// Re-check after Add: the file may have appeared in the window.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%s did not appear within %s", path, timeout)
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if event.Name == path && event.Op.Has(fsnotify.Create|fsnotify.Write) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// FindTasks returns the task directories under tasksDir matching pattern,
// optionally skipping already-verified ones.
func FindTasks(tasksDir, pattern string, skipVerified bool) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(tasksDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	var tasks []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m, "docker-compose.yaml")); err != nil {
			continue
		}
		if skipVerified && Verified(m) {
			continue
		}
		tasks = append(tasks, m)
	}
	sort.Strings(tasks)
	return tasks, nil
}

// RunAll runs the matching tasks with at most concurrency in flight,
// returning pass/fail keyed by task name. One task's failure never disturbs
// another's.
func RunAll(ctx context.Context, tasksDir, pattern string, concurrency int, skipVerified bool) (map[string]bool, error) {
	tasks, err := FindTasks(tasksDir, pattern, skipVerified)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[string]bool, len(tasks))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, taskDir := range tasks {
		taskDir := taskDir
		g.Go(func() error {
			name := filepath.Base(taskDir)
			outcome, err := RunTask(gctx, taskDir, false, true)
			ok := err == nil && outcome.Verified
			if err != nil {
				log.Error().Err(err).Str("task", name).Msg("task failed")
			}
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// ListTasks describes every generated task and its verification status.
func ListTasks(tasksDir string) ([]TaskStatus, error) {
	tasks, err := FindTasks(tasksDir, "*", false)
	if err != nil {
		return nil, err
	}
	var statuses []TaskStatus
	for _, taskDir := range tasks {
		name := filepath.Base(taskDir)
		prNumber := "?"
		if idx := strings.LastIndex(name, "_"); idx >= 0 && idx+1 < len(name) {
			prNumber = name[idx+1:]
		}
		status := "not run"
		if _, err := os.Stat(filepath.Join(verifierLogDir(taskDir), ResultFile)); err == nil {
			if Verified(taskDir) {
				status = "passed"
			} else {
				status = "failed"
			}
		}
		statuses = append(statuses, TaskStatus{Name: name, PRNumber: prNumber, Status: status})
	}
	return statuses, nil
}
