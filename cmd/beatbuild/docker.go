package main

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// dockerComposeCmd represents the detected docker compose command
type dockerComposeCmd struct {
	executable string   // "docker" or "docker-compose"
	args       []string // ["compose"] for v2, [] for v1
}

// lookPath and commandProbe are swapped in tests
var (
	lookPath     = exec.LookPath
	commandProbe = func(name string, args ...string) error { return exec.Command(name, args...).Run() }
)

// getDockerComposeCmd detects available docker compose command
// Prefers "docker compose" (v2 plugin) over "docker-compose" (v1 standalone)
func getDockerComposeCmd() (*dockerComposeCmd, error) {
	if dockerPath, err := lookPath("docker"); err == nil {
		if err := commandProbe(dockerPath, "compose", "version"); err == nil {
			return &dockerComposeCmd{executable: dockerPath, args: []string{"compose"}}, nil
		}
	}

	if composePath, err := lookPath("docker-compose"); err == nil {
		return &dockerComposeCmd{executable: composePath, args: []string{}}, nil
	}

	return nil, fmt.Errorf("docker compose not found. Please install Docker Compose")
}

// buildArgs builds the full argument list for docker compose command
func (dc *dockerComposeCmd) buildArgs(composeArgs ...string) []string {
	args := make([]string, 0, len(dc.args)+len(composeArgs))
	args = append(args, dc.args...)
	args = append(args, composeArgs...)
	return args
}

// command creates an exec.Cmd for docker compose
func (dc *dockerComposeCmd) command(composeArgs ...string) *exec.Cmd {
	return exec.Command(dc.executable, dc.buildArgs(composeArgs...)...)
}

// commandLine renders the command as typed into a shell, using the bare executable name
func (dc *dockerComposeCmd) commandLine(composeArgs ...string) string {
	parts := []string{filepath.Base(dc.executable)}
	for _, a := range dc.buildArgs(composeArgs...) {
		if strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// isStandalone reports whether this is the v1 docker-compose binary
func (dc *dockerComposeCmd) isStandalone() bool {
	return len(dc.args) == 0
}

// upArgs returns the compose arguments that start a fresh build
func upArgs(composeFile string) []string {
	var args []string
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	return append(args, "up", "--build")
}

// commandRunner runs an external command to completion
type commandRunner func(name string, args ...string) error

// runCommand is the default commandRunner
func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}

// pruneDocker removes every unused image, container and network
func pruneDocker(run commandRunner) error {
	return run("docker", "system", "prune", "-af")
}

// newTeardownEffect stops the build and optionally prunes docker. Every step is attempted.
func newTeardownEffect(l BuildLauncher, prune bool, run commandRunner, log *logrus.Entry) SessionEndEffect {
	return func() error {
		var errs []error

		log.Infof("[BUILD] Stopping build")
		if err := l.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop build: %w", err))
		}

		if prune {
			log.Infof("[BUILD] Pruning docker system")
			if err := pruneDocker(run); err != nil {
				errs = append(errs, fmt.Errorf("prune: %w", err))
			}
		}

		return errors.Join(errs...)
	}
}
