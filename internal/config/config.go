// Package config loads the yaml batch file describing a set of verification
// tasks.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/model"
)

// Defaults applied to tasks that leave fields unset.
const (
	DefaultTimeoutSec = 1800.0
	DefaultCPUs       = 2
	DefaultMemoryMB   = 4096
	DefaultPriority   = "medium"
)

// Config is one batch invocation: shared settings plus the task list.
type Config struct {
	OutputDir   string             `yaml:"output_dir"`
	Concurrency int                `yaml:"concurrency"`
	Retries     int                `yaml:"retries"`
	Tasks       []model.TaskConfig `yaml:"-"`

	// RawTasks carries the yaml form; AllowInternet defaults to true when
	// omitted, which a plain bool cannot express.
	RawTasks []taskEntry `yaml:"tasks"`
}

type taskEntry struct {
	TaskID             string  `yaml:"task_id"`
	PRURL              string  `yaml:"pr_url"`
	ProjectType        string  `yaml:"project_type"`
	TimeoutSec         float64 `yaml:"timeout_sec"`
	CPUs               int     `yaml:"cpus"`
	MemoryMB           int     `yaml:"memory_mb"`
	AllowInternet      *bool   `yaml:"allow_internet"`
	CustomVerifyScript string  `yaml:"custom_verify_script"`
	Priority           string  `yaml:"priority"`
}

// Load reads and validates a batch file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "results"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if len(cfg.RawTasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}
	seen := map[string]bool{}
	cfg.Tasks = make([]model.TaskConfig, 0, len(cfg.RawTasks))
	for i, raw := range cfg.RawTasks {
		if raw.TaskID == "" {
			return fmt.Errorf("task %d: task_id is required", i)
		}
		if seen[raw.TaskID] {
			return fmt.Errorf("task %q: duplicate task_id", raw.TaskID)
		}
		seen[raw.TaskID] = true
		if raw.PRURL == "" {
			return fmt.Errorf("task %q: pr_url is required", raw.TaskID)
		}

		task := model.TaskConfig{
			TaskID:             raw.TaskID,
			PRURL:              raw.PRURL,
			ProjectType:        detect.JavaGradle,
			TimeoutSec:         raw.TimeoutSec,
			CPUs:               raw.CPUs,
			MemoryMB:           raw.MemoryMB,
			AllowInternet:      true,
			CustomVerifyScript: raw.CustomVerifyScript,
			Priority:           raw.Priority,
		}
		if raw.ProjectType != "" {
			pt, ok := detect.Parse(raw.ProjectType)
			if !ok {
				return fmt.Errorf("task %q: unknown project_type %q", raw.TaskID, raw.ProjectType)
			}
			task.ProjectType = pt
		}
		if raw.AllowInternet != nil {
			task.AllowInternet = *raw.AllowInternet
		}
		if task.TimeoutSec <= 0 {
			task.TimeoutSec = DefaultTimeoutSec
		}
		if task.CPUs <= 0 {
			task.CPUs = DefaultCPUs
		}
		if task.MemoryMB <= 0 {
			task.MemoryMB = DefaultMemoryMB
		}
		if task.Priority == "" {
			task.Priority = DefaultPriority
		}
		cfg.Tasks = append(cfg.Tasks, task)
	}
	return nil
}
