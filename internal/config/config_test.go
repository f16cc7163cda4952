package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fixagent/prverify/internal/detect"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
tasks:
  - task_id: t1
    pr_url: https://github.com/acme/widget/pull/7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "results" {
		t.Errorf("output dir = %q, want results", cfg.OutputDir)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", cfg.Concurrency)
	}
	if len(cfg.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(cfg.Tasks))
	}
	task := cfg.Tasks[0]
	if task.ProjectType != detect.JavaGradle {
		t.Errorf("project type = %q, want %q", task.ProjectType, detect.JavaGradle)
	}
	if task.TimeoutSec != DefaultTimeoutSec {
		t.Errorf("timeout = %v, want %v", task.TimeoutSec, DefaultTimeoutSec)
	}
	if task.CPUs != DefaultCPUs || task.MemoryMB != DefaultMemoryMB {
		t.Errorf("resources = %d cpu / %d mb, want defaults", task.CPUs, task.MemoryMB)
	}
	if !task.AllowInternet {
		t.Error("allow_internet should default to true")
	}
	if task.Priority != DefaultPriority {
		t.Errorf("priority = %q, want %q", task.Priority, DefaultPriority)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
output_dir: /tmp/out
concurrency: 4
retries: 2
tasks:
  - task_id: t1
    pr_url: https://github.com/acme/widget/pull/7
    project_type: rust-cargo
    timeout_sec: 300
    cpus: 8
    memory_mb: 8192
    allow_internet: false
    priority: high
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 4 || cfg.Retries != 2 {
		t.Errorf("concurrency/retries = %d/%d, want 4/2", cfg.Concurrency, cfg.Retries)
	}
	task := cfg.Tasks[0]
	if task.ProjectType != detect.RustCargo {
		t.Errorf("project type = %q, want %q", task.ProjectType, detect.RustCargo)
	}
	if task.AllowInternet {
		t.Error("allow_internet: explicit false was ignored")
	}
	if task.TimeoutSec != 300 || task.CPUs != 8 || task.MemoryMB != 8192 {
		t.Errorf("overrides not applied: %+v", task)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no tasks", "output_dir: out\n"},
		{"missing task_id", "tasks:\n  - pr_url: https://github.com/a/b/pull/1\n"},
		{"missing pr_url", "tasks:\n  - task_id: t1\n"},
		{"duplicate task_id", `
tasks:
  - task_id: t1
    pr_url: https://github.com/a/b/pull/1
  - task_id: t1
    pr_url: https://github.com/a/b/pull/2
`},
		{"unknown project_type", `
tasks:
  - task_id: t1
    pr_url: https://github.com/a/b/pull/1
    project_type: fortran
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
