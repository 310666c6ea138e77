//go:build windows

package main

import "os"

// terminateGroup terminates a process on Windows.
// Windows doesn't have process groups, so we just kill the main process.
func terminateGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// killGroup is the same as terminateGroup on Windows
func killGroup(pid int) error {
	return terminateGroup(pid)
}
