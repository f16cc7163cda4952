// Package compose provides the file-based orchestration surface: generated
// docker-compose tasks whose single service clones, merges, and builds a PR,
// writing flat result files into a mounted log directory.
package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/model"
)

// Result files the verifier service writes under logs/verifier/.
const (
	ResultFile    = "result.txt"
	ExitCodeFile  = "exit_code.txt"
	TimestampFile = "timestamp.txt"
)

// Generator writes compose tasks under a tasks directory.
type Generator struct {
	TasksDir string
}

type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Environment   []string `yaml:"environment"`
	Volumes       []string `yaml:"volumes"`
	WorkingDir    string   `yaml:"working_dir"`
	Command       string   `yaml:"command"`
	CPUs          int      `yaml:"cpus"`
	MemLimit      string   `yaml:"mem_limit"`
	Networks      []string `yaml:"networks"`
}

type composeNetwork struct {
	Driver string `yaml:"driver"`
}

type composeManifest struct {
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks"`
}

// Generate writes a compose task for the PR: docker-compose.yaml, .env,
// README.md, and an empty logs/verifier directory. Returns the task dir.
func (g *Generator) Generate(pr *model.PRInfo, projectType detect.ProjectType) (string, error) {
	if projectType == detect.Unknown {
		return "", fmt.Errorf("unable to generate task: project type unknown for %s/%s", pr.RepoOwner, pr.RepoName)
	}
	spec, ok := detect.Specs[projectType]
	if !ok {
		return "", fmt.Errorf("no build spec for project type %q", projectType)
	}

	taskName := fmt.Sprintf("%s_%d", pr.RepoName, pr.PRNumber)
	taskDir := filepath.Join(g.TasksDir, taskName)
	if err := os.MkdirAll(filepath.Join(taskDir, "logs", "verifier"), 0o755); err != nil {
		return "", fmt.Errorf("creating task dir: %w", err)
	}

	manifest, err := g.manifest(pr, projectType, spec)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(taskDir, "docker-compose.yaml"), manifest, 0o644); err != nil {
		return "", fmt.Errorf("writing compose manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, ".env"), []byte(g.envFile(pr, projectType, spec)), 0o644); err != nil {
		return "", fmt.Errorf("writing .env: %w", err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, "README.md"), []byte(g.readme(pr, projectType, spec, taskName)), 0o644); err != nil {
		return "", fmt.Errorf("writing README: %w", err)
	}
	return taskDir, nil
}

func (g *Generator) manifest(pr *model.PRInfo, projectType detect.ProjectType, spec detect.BuildSpec) ([]byte, error) {
	m := composeManifest{
		Services: map[string]composeService{
			"verifier": {
				Image:         spec.Image,
				ContainerName: fmt.Sprintf("pr_%s_%d", pr.RepoName, pr.PRNumber),
				Environment: []string{
					fmt.Sprintf("PR_NUMBER=%d", pr.PRNumber),
					"REPO_URL=" + pr.CloneURL(),
					"REPO_NAME=" + pr.RepoName,
					"REPO_OWNER=" + pr.RepoOwner,
					"TARGET_BRANCH=" + pr.TargetBranch,
					"TARGET_COMMIT=" + pr.TargetCommit,
					"SOURCE_BRANCH=" + pr.SourceBranch,
					"SOURCE_COMMIT=" + pr.SourceCommit,
					"PROJECT_TYPE=" + string(projectType),
					"BUILD_COMMAND=" + spec.BuildCmd,
					"TEST_COMMAND=" + spec.TestCmd,
				},
				Volumes:    []string{"./logs:/logs"},
				WorkingDir: "/workspace",
				Command:    verifyScript(spec.Setup),
				CPUs:       2,
				MemLimit:   "4g",
				Networks:   []string{"pr-verification"},
			},
		},
		Networks: map[string]composeNetwork{
			"pr-verification": {Driver: "bridge"},
		},
	}
	out, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("marshaling compose manifest: %w", err)
	}
	return out, nil
}

// verifyScript is the service command: the same five-step workspace setup
// the orchestrator performs, followed by the build and the result-file
// contract. All PR values arrive through the service environment, so the
// script itself needs no interpolation.
func verifyScript(setup string) string {
	return fmt.Sprintf(`bash -c '
set -e
echo "=========================================="
echo "PR Verification: $REPO_NAME #$PR_NUMBER"
echo "Project Type: $PROJECT_TYPE"
echo "=========================================="

echo "==> Setting up environment..."
%s
git config --global user.email "prverify@verifier.local"
git config --global user.name "PR Verifier"

echo "==> Cloning repository..."
git clone --depth=1 --branch "$TARGET_BRANCH" "$REPO_URL" /workspace
cd /workspace

echo "==> Fetching PR #$PR_NUMBER..."
git fetch --depth=50 origin "$TARGET_COMMIT"
git fetch origin "pull/$PR_NUMBER/head:pr-source"

echo "==> Checking out target commit: $TARGET_COMMIT"
git checkout "$TARGET_COMMIT"

echo "==> Creating mock merge branch..."
git checkout -b mock-merge

echo "==> Merging PR source branch..."
git merge pr-source --no-commit --no-edit || {
  echo "WARNING: Merge conflicts detected, continuing anyway..."
}

echo ""
echo "==> Running build command..."
echo "Command: $BUILD_COMMAND"
set +e
eval "$BUILD_COMMAND"
BUILD_EXIT_CODE=$?

mkdir -p /logs/verifier
echo "$BUILD_EXIT_CODE" > /logs/verifier/exit_code.txt
date -Iseconds > /logs/verifier/timestamp.txt

if [ $BUILD_EXIT_CODE -eq 0 ]; then
  echo "1" > /logs/verifier/result.txt
  echo "BUILD SUCCESSFUL"
  exit 0
else
  echo "0" > /logs/verifier/result.txt
  echo "BUILD FAILED (exit code: $BUILD_EXIT_CODE)"
  exit 1
fi
'`, setup)
}

func (g *Generator) envFile(pr *model.PRInfo, projectType detect.ProjectType, spec detect.BuildSpec) string {
	return fmt.Sprintf(`# PR Information
PR_ID=%d
REPO_NAME=%s
REPO_OWNER=%s
REPO_URL=%s
TARGET_BRANCH=%s
TARGET_COMMIT=%s
SOURCE_BRANCH=%s
SOURCE_COMMIT=%s

# Project Configuration
PROJECT_TYPE=%s
BUILD_COMMAND=%s
TEST_COMMAND=%s

# Resource Limits
CPUS=2
MEMORY=4g
`, pr.PRNumber, pr.RepoName, pr.RepoOwner, pr.CloneURL(), pr.TargetBranch, pr.TargetCommit,
		pr.SourceBranch, pr.SourceCommit, projectType, spec.BuildCmd, spec.TestCmd)
}

func (g *Generator) readme(pr *model.PRInfo, projectType detect.ProjectType, spec detect.BuildSpec, taskName string) string {
	return fmt.Sprintf(`# Task: %s

## PR Information

- **Repository**: %s/%s
- **PR Number**: #%d
- **PR Title**: %s
- **PR URL**: %s
- **Target Branch**: %s @ `+"`%.7s`"+`
- **Source Branch**: %s @ `+"`%.7s`"+`

## Project Configuration

- **Type**: %s
- **Build Command**: `+"`%s`"+`

## Usage

Run the verification:

    docker compose up --abort-on-container-exit

Check the result:

    cat logs/verifier/result.txt   # 1 = success, 0 = failed
    cat logs/verifier/exit_code.txt

Cleanup:

    docker compose down
`, taskName, pr.RepoOwner, pr.RepoName, pr.PRNumber, pr.Title, pr.PRURL,
		pr.TargetBranch, pr.TargetCommit, pr.SourceBranch, pr.SourceCommit,
		projectType, spec.BuildCmd)
}
