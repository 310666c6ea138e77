//go:build unix

package main

import "syscall"

// terminateGroup sends SIGTERM to a process group.
// Processes started under a pty are session leaders, so the PGID equals the PID.
func terminateGroup(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to a process group
func killGroup(pgid int) error {
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
