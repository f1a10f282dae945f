package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// languageSpec describes how one language is compiled and run inside a
// container.
type languageSpec struct {
	image      string
	fileName   string
	compileCmd []string
	runCmd     []string
}

func specFor(language string) (languageSpec, error) {
	switch language {
	case "python":
		return languageSpec{
			image:    "python:3.11-slim",
			fileName: "main.py",
			runCmd:   []string{"python3", "main.py"},
		}, nil
	case "javascript":
		return languageSpec{
			image:    "node:20-slim",
			fileName: "main.js",
			runCmd:   []string{"node", "main.js"},
		}, nil
	case "java":
		return languageSpec{
			image:      "eclipse-temurin:17-jdk",
			fileName:   "Main.java",
			compileCmd: []string{"javac", "Main.java"},
			runCmd:     []string{"java", "Main"},
		}, nil
	case "cpp":
		return languageSpec{
			image:      "gcc:13",
			fileName:   "main.cpp",
			compileCmd: []string{"g++", "-O2", "-std=c++17", "main.cpp", "-o", "main"},
			runCmd:     []string{"./main"},
		}, nil
	default:
		return languageSpec{}, fmt.Errorf("unsupported language %q", language)
	}
}

// Limits bound one containerized run.
type Limits struct {
	WallTime time.Duration
	MemoryB  int64
	NanoCPUs int64
}

// DockerBackend executes submissions in throwaway containers with no
// network, feeding each test case's input on stdin.
type DockerBackend struct {
	cli    *client.Client
	limits Limits
}

func NewDockerBackend(limits Limits) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSandboxUnavailable, err)
	}
	if limits.WallTime <= 0 {
		limits.WallTime = 10 * time.Second
	}
	if limits.MemoryB == 0 {
		limits.MemoryB = 256 * 1024 * 1024
	}
	if limits.NanoCPUs == 0 {
		limits.NanoCPUs = 1_000_000_000
	}
	return &DockerBackend{cli: cli, limits: limits}, nil
}

// Run compiles (when needed) and executes the submission once against the
// given stdin.
func (b *DockerBackend) Run(ctx context.Context, code, language, stdin string) (RunResult, error) {
	spec, err := specFor(language)
	if err != nil {
		return RunResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.limits.WallTime)
	defer cancel()

	conf := &container.Config{
		Image:      spec.image,
		Cmd:        []string{"/bin/sh", "-c", "sleep infinity"},
		WorkingDir: "/workspace",
	}
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   b.limits.MemoryB,
			NanoCPUs: b.limits.NanoCPUs,
		},
		SecurityOpt: []string{"no-new-privileges"},
	}

	create, err := b.cli.ContainerCreate(ctx, conf, hostCfg, nil, nil, "")
	if err != nil {
		return RunResult{}, translateDockerErr(err)
	}
	cid := create.ID
	defer func() {
		_ = b.cli.ContainerRemove(context.Background(), cid, types.ContainerRemoveOptions{Force: true})
	}()

	if err := b.cli.ContainerStart(ctx, cid, types.ContainerStartOptions{}); err != nil {
		return RunResult{}, translateDockerErr(err)
	}

	if err := b.copySource(ctx, cid, spec.fileName, []byte(code)); err != nil {
		return RunResult{}, err
	}

	if len(spec.compileCmd) > 0 {
		out, errOut, exit, err := b.exec(ctx, cid, spec.compileCmd, nil)
		if err != nil {
			return RunResult{}, err
		}
		if exit != 0 {
			// Compilation diagnostics surface on the error stream so
			// grading treats them as a failed case.
			return RunResult{Stdout: out, Stderr: errOut}, nil
		}
	}

	started := time.Now()
	out, errOut, _, err := b.exec(ctx, cid, spec.runCmd, []byte(stdin))
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{
		Stdout: out,
		Stderr: errOut,
		TimeMs: time.Since(started).Milliseconds(),
	}, nil
}

func (b *DockerBackend) copySource(ctx context.Context, cid, fileName string, code []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name: "workspace/" + fileName,
		Mode: 0600,
		Size: int64(len(code)),
	}); err != nil {
		return err
	}
	if _, err := tw.Write(code); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return translateDockerErr(b.cli.CopyToContainer(ctx, cid, "/", &buf, types.CopyToContainerOptions{}))
}

func (b *DockerBackend) exec(ctx context.Context, cid string, cmd []string, stdin []byte) (stdout, stderr string, exit int, err error) {
	execResp, err := b.cli.ContainerExecCreate(ctx, cid, types.ExecConfig{
		Cmd:          cmd,
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  len(stdin) > 0,
		Tty:          false,
	})
	if err != nil {
		return "", "", 0, translateDockerErr(err)
	}

	attach, err := b.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: false})
	if err != nil {
		return "", "", 0, translateDockerErr(err)
	}
	defer attach.Close()

	if err := b.cli.ContainerExecStart(ctx, execResp.ID, types.ExecStartCheck{Tty: false}); err != nil {
		return "", "", 0, translateDockerErr(err)
	}

	if len(stdin) > 0 {
		if _, err := attach.Conn.Write(stdin); err != nil {
			return "", "", 0, err
		}
		if closer, ok := attach.Conn.(interface{ CloseWrite() error }); ok {
			_ = closer.CloseWrite()
		}
	}

	var outBuf, errBuf strings.Builder
	_, _ = stdcopy.StdCopy(&writer{&outBuf}, &writer{&errBuf}, attach.Reader)

	inspect, err := b.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", "", 0, translateDockerErr(err)
	}

	return outBuf.String(), errBuf.String(), inspect.ExitCode, nil
}

type writer struct{ sb *strings.Builder }

func (w *writer) Write(p []byte) (int, error) {
	w.sb.Write(p)
	return len(p), nil
}

func translateDockerErr(err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrConnectionFailed(err) {
		return fmt.Errorf("%w: %v", ErrSandboxUnavailable, err)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: connection closed", ErrSandboxUnavailable)
	}
	return err
}
