package env

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog/log"
)

const (
	defaultWorkingDir = "/workspace"
	stopGraceSec      = 10
)

// DockerOpts configures a Docker-backed environment.
type DockerOpts struct {
	ContainerName string
	Image         string
	CPUs          int
	MemoryMB      int
	AllowInternet bool
	WorkingDir    string
}

// DockerEnvironment runs trials inside a long-lived container that idles on
// `sleep infinity` and executes commands via the exec API.
type DockerEnvironment struct {
	opts DockerOpts
	cli  *client.Client

	containerID string
}

// NewDockerEnvironment creates the environment and verifies the daemon is
// reachable, failing fast before any trial work begins.
func NewDockerEnvironment(opts DockerOpts) (*DockerEnvironment, error) {
	if opts.WorkingDir == "" {
		opts.WorkingDir = defaultWorkingDir
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker daemon not accessible (is Docker running?): %w", err)
	}
	return &DockerEnvironment{opts: opts, cli: cli}, nil
}

// Start provisions the container. A leftover container with the same name
// from an earlier run is force-removed first.
func (d *DockerEnvironment) Start(ctx context.Context, forceRebuild bool) error {
	if err := d.cli.ContainerRemove(ctx, d.opts.ContainerName, container.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
		return &ProvisioningError{Name: d.opts.ContainerName, Err: fmt.Errorf("removing stale container: %w", err)}
	}

	networkMode := "none"
	if d.opts.AllowInternet {
		networkMode = "bridge"
	}

	containerCfg := &container.Config{
		Image:      d.opts.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: d.opts.WorkingDir,
		Labels:     map[string]string{"prverify": "true"},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(networkMode),
	}
	if d.opts.CPUs > 0 {
		hostCfg.NanoCPUs = int64(d.opts.CPUs) * 1e9
	}
	if d.opts.MemoryMB > 0 {
		hostCfg.Memory = int64(d.opts.MemoryMB) * 1024 * 1024
	}

	resp, err := d.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, d.opts.ContainerName)
	if err != nil {
		return &ProvisioningError{Name: d.opts.ContainerName, Err: fmt.Errorf("creating container: %w", err)}
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = d.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return &ProvisioningError{Name: d.opts.ContainerName, Err: fmt.Errorf("starting container: %w", err)}
	}
	d.containerID = resp.ID

	return d.waitRunning(ctx)
}

func (d *DockerEnvironment) waitRunning(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		info, err := d.cli.ContainerInspect(ctx, d.containerID)
		if err != nil {
			return &ProvisioningError{Name: d.opts.ContainerName, Err: fmt.Errorf("inspecting container: %w", err)}
		}
		if info.State != nil && info.State.Running {
			return nil
		}
		if time.Now().After(deadline) {
			return &ProvisioningError{Name: d.opts.ContainerName, Err: fmt.Errorf("container did not reach running state")}
		}
		select {
		case <-ctx.Done():
			return &ProvisioningError{Name: d.opts.ContainerName, Err: ctx.Err()}
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Stop terminates the container and optionally removes it. Safe to call more
// than once; an already-gone container counts as stopped.
func (d *DockerEnvironment) Stop(ctx context.Context, delete bool) error {
	if d.containerID == "" {
		return nil
	}
	grace := stopGraceSec
	if err := d.cli.ContainerStop(ctx, d.containerID, container.StopOptions{Timeout: &grace}); err != nil && !cerrdefs.IsNotFound(err) {
		log.Warn().Err(err).Str("container", d.opts.ContainerName).Msg("stopping container")
	}
	if delete {
		if err := d.cli.ContainerRemove(ctx, d.containerID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !cerrdefs.IsNotFound(err) {
			log.Warn().Err(err).Str("container", d.opts.ContainerName).Msg("removing container")
		}
	}
	d.containerID = ""
	return nil
}

// Exec runs a command through `bash -lc` in the running container. Backend
// failures come back as a synthetic failing result so callers can treat every
// outcome as data.
func (d *DockerEnvironment) Exec(ctx context.Context, command string, opts ExecOpts) (*ExecResult, error) {
	if d.containerID == "" {
		return nil, ErrNotStarted
	}

	start := time.Now()
	execCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = d.opts.WorkingDir
	}
	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	execResp, err := d.cli.ContainerExecCreate(execCtx, d.containerID, container.ExecOptions{
		Cmd:          []string{"bash", "-lc", command},
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   workDir,
		Env:          envSlice,
	})
	if err != nil {
		return syntheticFailure(err, time.Since(start)), nil
	}

	attachResp, err := d.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return syntheticFailure(err, time.Since(start)), nil
	}

	// stdcopy.StdCopy blocks until the process exits and does not observe
	// context cancellation, so run it in a goroutine and sever the
	// connection if the timeout fires.
	var stdout, stderr bytes.Buffer
	var bufMu sync.Mutex
	copyDone := make(chan error, 1)
	go func() {
		bufMu.Lock()
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		bufMu.Unlock()
		copyDone <- copyErr
	}()

	var timedOut bool
	select {
	case copyErr := <-copyDone:
		attachResp.Close()
		if copyErr != nil {
			return syntheticFailure(copyErr, time.Since(start)), nil
		}
	case <-execCtx.Done():
		timedOut = true
		attachResp.Close()
		<-copyDone
	}

	if timedOut {
		bufMu.Lock()
		defer bufMu.Unlock()
		return timedOutResult(stdout.String(), stderr.String(), time.Since(start)), nil
	}

	// Exec context may be near expiry; inspect on a fresh one.
	inspectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exitCode := 0
	for {
		inspect, err := d.cli.ContainerExecInspect(inspectCtx, execResp.ID)
		if err != nil {
			return syntheticFailure(err, time.Since(start)), nil
		}
		if !inspect.Running {
			exitCode = inspect.ExitCode
			break
		}
		select {
		case <-inspectCtx.Done():
			return syntheticFailure(fmt.Errorf("timeout waiting for exec exit code"), time.Since(start)), nil
		case <-time.After(50 * time.Millisecond):
		}
	}

	return &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// timedOutResult maps an expired exec to exit 124. The message reports the
// observed elapsed time, not the per-command limit: the deadline may have
// come from the caller's context with no per-command timeout set at all.
func timedOutResult(stdout, stderr string, elapsed time.Duration) *ExecResult {
	return &ExecResult{
		Stdout:   stdout,
		Stderr:   stderr + fmt.Sprintf("\ncommand timed out after %s", elapsed.Round(time.Millisecond)),
		ExitCode: 124,
		Duration: elapsed,
	}
}

func syntheticFailure(err error, elapsed time.Duration) *ExecResult {
	return &ExecResult{
		Stderr:   err.Error(),
		ExitCode: 1,
		Duration: elapsed,
	}
}

// UploadFile copies a local file into the container via the archive API.
func (d *DockerEnvironment) UploadFile(ctx context.Context, localPath, remotePath string) error {
	if d.containerID == "" {
		return ErrNotStarted
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	remoteDir := filepath.Dir(remotePath)
	if res, err := d.Exec(ctx, "mkdir -p "+remoteDir, ExecOpts{WorkDir: "/", Timeout: 10 * time.Second}); err != nil {
		return err
	} else if res.ExitCode != 0 {
		return fmt.Errorf("creating remote dir %s: %s", remoteDir, res.Stderr)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: filepath.Base(remotePath),
		Mode: int64(info.Mode().Perm()),
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar: %w", err)
	}

	if err := d.cli.CopyToContainer(ctx, d.containerID, remoteDir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copying %s into container: %w", localPath, err)
	}
	return nil
}

// DownloadFile copies a container file out, creating missing local parents.
func (d *DockerEnvironment) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	if d.containerID == "" {
		return ErrNotStarted
	}
	reader, _, err := d.cli.CopyFromContainer(ctx, d.containerID, remotePath)
	if err != nil {
		return fmt.Errorf("copying %s from container: %w", remotePath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("creating local dir: %w", err)
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("%s not found in archive from container", remotePath)
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		out, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return fmt.Errorf("creating %s: %w", localPath, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", localPath, err)
		}
		return out.Close()
	}
}
