package watchdog

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ContainerRunner shells out to a container runtime CLI, narrowed to
// exactly the three operations spec §6.4 names: inspect, stop --time, and
// a liveness check. Grounded on the same CommandRunner-injectable-
// subprocess idiom as internal/vcs's Adapter, generalized to the
// container runtime instead of git.
type ContainerRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

type execContainerRunner struct {
	binary string
}

func (e *execContainerRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s %s: %w: %s", e.binary, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s %s: %w", e.binary, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// ContainerRuntime wraps a configurable container CLI binary (default
// "docker", per spec §4.8: "container mode shells out to a configurable
// container CLI binary").
type ContainerRuntime struct {
	runner ContainerRunner
}

// NewContainerRuntime returns a runtime that invokes binary (e.g. "docker",
// "podman", "nerdctl") as a subprocess.
func NewContainerRuntime(binary string) *ContainerRuntime {
	if binary == "" {
		binary = "docker"
	}
	return &ContainerRuntime{runner: &execContainerRunner{binary: binary}}
}

// NewContainerRuntimeWithRunner is the injectable constructor for tests.
func NewContainerRuntimeWithRunner(runner ContainerRunner) *ContainerRuntime {
	return &ContainerRuntime{runner: runner}
}

type inspectState struct {
	Status    string `json:"Status"`
	Running   bool   `json:"Running"`
	StartedAt string `json:"StartedAt"`
}

type inspectResult struct {
	State inspectState `json:"State"`
}

// IsRunning inspects containerID and reports whether it is currently
// running. A runtime that is unreachable (daemon down, binary missing)
// yields an error; callers should treat that per spec's "container runtime
// unavailable: log once, skip container sweeps" failure mode rather than
// fail the whole sweep.
func (c *ContainerRuntime) IsRunning(ctx context.Context, containerID string) (bool, error) {
	out, err := c.runner.Run(ctx, "inspect", "--format", "{{json .State}}", containerID)
	if err != nil {
		return false, err
	}
	var state inspectState
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &state); err != nil {
		return false, fmt.Errorf("parsing inspect output for %s: %w", containerID, err)
	}
	return state.Running, nil
}

// Stop stops containerID, giving it timeout to exit gracefully before the
// runtime forcibly kills it (spec §4.8: "Container mode uses the container
// runtime's stop API with a bounded timeout").
func (c *ContainerRuntime) Stop(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if seconds <= 0 {
		seconds = 10
	}
	_, err := c.runner.Run(ctx, "stop", "--time", fmt.Sprintf("%d", seconds), containerID)
	return err
}
