package compose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fixagent/prverify/internal/detect"
	"github.com/fixagent/prverify/internal/model"
)

func samplePR() *model.PRInfo {
	return &model.PRInfo{
		PRURL:         "https://github.com/acme/widget/pull/42",
		RepoOwner:     "acme",
		RepoName:      "widget",
		PRNumber:      42,
		SourceBranch:  "feature",
		SourceCommit:  "1111111111111111111111111111111111111111",
		SourceRepoURL: "https://github.com/acme/widget.git",
		TargetBranch:  "main",
		TargetCommit:  "2222222222222222222222222222222222222222",
		TargetRepoURL: "https://github.com/acme/widget.git",
		Title:         "Fix widget alignment",
	}
}

func TestGenerateWritesTaskFiles(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	taskDir, err := g.Generate(samplePR(), detect.JavaGradle)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(g.TasksDir, "widget_42"), taskDir)

	for _, name := range []string{"docker-compose.yaml", ".env", "README.md"} {
		_, err := os.Stat(filepath.Join(taskDir, name))
		require.NoError(t, err, "missing %s", name)
	}
	info, err := os.Stat(verifierLogDir(taskDir))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestGenerateManifestContents(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	taskDir, err := g.Generate(samplePR(), detect.JavaGradle)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(taskDir, "docker-compose.yaml"))
	require.NoError(t, err)

	var m composeManifest
	require.NoError(t, yaml.Unmarshal(data, &m))

	svc, ok := m.Services["verifier"]
	require.True(t, ok, "compose file must define a verifier service")
	require.Equal(t, detect.Specs[detect.JavaGradle].Image, svc.Image)
	require.Equal(t, "pr_widget_42", svc.ContainerName)
	require.Contains(t, svc.Environment, "PR_NUMBER=42")
	require.Contains(t, svc.Environment, "TARGET_COMMIT=2222222222222222222222222222222222222222")
	require.Contains(t, svc.Environment, "BUILD_COMMAND="+detect.Specs[detect.JavaGradle].BuildCmd)
	require.Contains(t, svc.Volumes, "./logs:/logs")
	require.Contains(t, m.Networks, "pr-verification")

	// The service command carries the full workspace and result contract.
	for _, want := range []string{
		"git clone --depth=1",
		"pull/$PR_NUMBER/head:pr-source",
		"git checkout -b mock-merge",
		"git merge pr-source --no-commit --no-edit",
		"/logs/verifier/result.txt",
		"/logs/verifier/exit_code.txt",
	} {
		require.Contains(t, svc.Command, want)
	}
}

func TestGenerateRejectsUnknownProjectType(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	_, err := g.Generate(samplePR(), detect.Unknown)
	require.Error(t, err)
}

func writeResult(t *testing.T, taskDir, value string) {
	t.Helper()
	logDir := verifierLogDir(taskDir)
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, ResultFile), []byte(value+"\n"), 0o644))
}

func TestVerified(t *testing.T) {
	taskDir := t.TempDir()
	require.False(t, Verified(taskDir), "no result file means not verified")

	writeResult(t, taskDir, "0")
	require.False(t, Verified(taskDir))

	writeResult(t, taskDir, "1")
	require.True(t, Verified(taskDir))
}

func TestReadOutcome(t *testing.T) {
	taskDir := t.TempDir()
	logDir := verifierLogDir(taskDir)
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, ResultFile), []byte("1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, ExitCodeFile), []byte("0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, TimestampFile), []byte("2026-08-29T10:00:00+00:00\n"), 0o644))

	out, err := readOutcome(taskDir)
	require.NoError(t, err)
	require.True(t, out.Verified)
	require.Equal(t, "0", out.ExitCode)
	require.Equal(t, "2026-08-29T10:00:00+00:00", out.Timestamp)
}

func TestWaitForFile(t *testing.T) {
	dir := t.TempDir()

	// Already present: returns immediately.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ready.txt"), []byte("1"), 0o644))
	require.NoError(t, waitForFile(context.Background(), dir, "ready.txt", time.Second))

	// Appears later: the watcher picks it up.
	done := make(chan error, 1)
	go func() {
		done <- waitForFile(context.Background(), dir, "late.txt", 5*time.Second)
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.txt"), []byte("1"), 0o644))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waitForFile did not return")
	}

	// Never appears: times out.
	err := waitForFile(context.Background(), dir, "never.txt", 100*time.Millisecond)
	require.Error(t, err)
}

func generateTask(t *testing.T, g *Generator, prNumber int) string {
	t.Helper()
	pr := samplePR()
	pr.PRNumber = prNumber
	taskDir, err := g.Generate(pr, detect.JavaGradle)
	require.NoError(t, err)
	return taskDir
}

func TestFindTasks(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	a := generateTask(t, g, 1)
	b := generateTask(t, g, 2)
	c := generateTask(t, g, 3)

	// A stray directory without a compose file is not a task.
	require.NoError(t, os.MkdirAll(filepath.Join(g.TasksDir, "scratch"), 0o755))

	tasks, err := FindTasks(g.TasksDir, "", false)
	require.NoError(t, err)
	require.Equal(t, []string{a, b, c}, tasks)

	writeResult(t, b, "1")
	tasks, err = FindTasks(g.TasksDir, "", true)
	require.NoError(t, err)
	require.Equal(t, []string{a, c}, tasks, "verified tasks are skipped")

	tasks, err = FindTasks(g.TasksDir, "widget_1", false)
	require.NoError(t, err)
	require.Equal(t, []string{a}, tasks)
}

func TestListTasks(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	generateTask(t, g, 1)
	passed := generateTask(t, g, 2)
	failed := generateTask(t, g, 3)
	writeResult(t, passed, "1")
	writeResult(t, failed, "0")

	statuses, err := ListTasks(g.TasksDir)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byName := map[string]TaskStatus{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	require.Equal(t, "not run", byName["widget_1"].Status)
	require.Equal(t, "passed", byName["widget_2"].Status)
	require.Equal(t, "failed", byName["widget_3"].Status)
	require.Equal(t, "2", byName["widget_2"].PRNumber)
}

// stubDocker puts a fake docker binary first on PATH. It records every
// invocation to argv.log in its working directory and writes passing result
// files on `compose up`, standing in for the verifier service.
func stubDocker(t *testing.T) {
	t.Helper()
	stubDir := t.TempDir()
	script := `#!/bin/sh
printf '%s\n' "$*" >> argv.log
case "$*" in
"compose up"*)
  mkdir -p logs/verifier
  echo 1 > logs/verifier/result.txt
  echo 0 > logs/verifier/exit_code.txt
  ;;
esac
exit 0
`
	require.NoError(t, os.WriteFile(filepath.Join(stubDir, "docker"), []byte(script), 0o755))
	t.Setenv("PATH", stubDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunAllRunsComposeInForeground(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	taskDir := generateTask(t, g, 7)
	stubDocker(t)

	results, err := RunAll(context.Background(), g.TasksDir, "", 2, false)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"widget_7": true}, results)

	argv, err := os.ReadFile(filepath.Join(taskDir, "argv.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(argv)), "\n")
	require.Equal(t, "compose up --abort-on-container-exit", lines[0],
		"up must stay in the foreground; detach is incompatible with abort-on-container-exit")
	require.Contains(t, lines, "compose down")
}

func TestRunTaskQuietReadsOutcome(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	taskDir := generateTask(t, g, 8)
	stubDocker(t)

	outcome, err := RunTask(context.Background(), taskDir, false, true)
	require.NoError(t, err)
	require.True(t, outcome.Verified)
	require.Equal(t, "0", outcome.ExitCode)
}

func TestEnvFileContents(t *testing.T) {
	g := &Generator{TasksDir: t.TempDir()}
	taskDir, err := g.Generate(samplePR(), detect.JavaMaven)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(taskDir, ".env"))
	require.NoError(t, err)
	env := string(data)
	require.True(t, strings.Contains(env, "PR_ID=42"))
	require.True(t, strings.Contains(env, "PROJECT_TYPE=java-maven"))
	require.True(t, strings.Contains(env, "BUILD_COMMAND="+detect.Specs[detect.JavaMaven].BuildCmd))
}
