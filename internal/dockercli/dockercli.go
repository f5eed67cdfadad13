// Package dockercli provides helpers for probing the local Docker
// installation and the service containers that host data backends.
package dockercli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type Runner interface {
	// Run executes a command and returns combined stdout/stderr output.
	Run(ctx context.Context, name string, args ...string) (output []byte, err error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var _ Runner = (*ExecRunner)(nil)

// CheckDockerCLI verifies the docker binary is reachable on PATH.
func CheckDockerCLI() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH\n\n" +
			"Landmeter reaches data backends through docker exec.\n\n" +
			"Install Docker from https://docs.docker.com/get-docker/ and make\n" +
			"sure the docker CLI is on your PATH.")
	}
	return nil
}

// ContainerStatus describes the state of one service container.
type ContainerStatus struct {
	Container string
	Running   bool
	State     string
}

// InspectContainer asks the Docker daemon for a container's state.
// A container that does not exist reports State "absent".
func InspectContainer(ctx context.Context, runner Runner, container string) ContainerStatus {
	out, err := runner.Run(ctx, "docker", "inspect", "--format", "{{.State.Status}}", container)
	if err != nil {
		return ContainerStatus{Container: container, State: "absent"}
	}
	state := strings.TrimSpace(string(out))
	return ContainerStatus{
		Container: container,
		Running:   state == "running",
		State:     state,
	}
}
