package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact filenames written into each trial directory.
const (
	ConfigFile    = "config.json"
	ResultFile    = "result.json"
	LogFile       = "compilation.log"
	ExceptionFile = "exception.txt"
)

// TrialDir returns the directory holding one trial's artifacts.
func TrialDir(outputDir string, cfg *TrialConfig) string {
	return filepath.Join(outputDir, cfg.TrialID.String())
}

// WriteTrialConfig persists the trial configuration as the trial's first
// artifact. The output directory path itself is not serialized.
func WriteTrialConfig(trialDir string, cfg *TrialConfig) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trial config: %w", err)
	}
	return os.WriteFile(filepath.Join(trialDir, ConfigFile), data, 0o644)
}

// ReadTrialConfig loads a persisted trial configuration.
func ReadTrialConfig(path string) (*TrialConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trial config: %w", err)
	}
	var cfg TrialConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing trial config: %w", err)
	}
	return &cfg, nil
}

// WriteTrialResult persists the final result of a trial.
func WriteTrialResult(trialDir string, res *TrialResult) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trial result: %w", err)
	}
	return os.WriteFile(filepath.Join(trialDir, ResultFile), data, 0o644)
}

// ReadTrialResult loads a persisted trial result.
func ReadTrialResult(path string) (*TrialResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trial result: %w", err)
	}
	var res TrialResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing trial result: %w", err)
	}
	return &res, nil
}

// WriteCompilationLog stores the verifier's combined build output verbatim.
func WriteCompilationLog(trialDir, output string) error {
	return os.WriteFile(filepath.Join(trialDir, LogFile), []byte(output), 0o644)
}

// WriteException stores the trace of an unhandled trial failure.
func WriteException(trialDir string, info *ExceptionInfo) error {
	text := fmt.Sprintf("%s: %s\n\n%s", info.Type, info.Message, info.Trace)
	return os.WriteFile(filepath.Join(trialDir, ExceptionFile), []byte(text), 0o644)
}
