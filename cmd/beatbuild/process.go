package main

import (
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// stopProcessGroup asks a process group to terminate and force kills it after grace.
// exited must be closed by whoever reaps the process.
func stopProcessGroup(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration, log *logrus.Entry) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	log.Infof("[PROCESS] Sending SIGTERM to process group %d", pid)
	if err := terminateGroup(pid); err != nil {
		log.Warnf("[PROCESS] Failed to signal process group %d: %v", pid, err)
	}

	select {
	case <-exited:
		log.Infof("[PROCESS] Process group %d terminated gracefully", pid)
		return nil
	case <-time.After(grace):
		log.Warnf("[PROCESS] Graceful termination timed out, force killing %d", pid)
		return killGroup(pid)
	}
}
