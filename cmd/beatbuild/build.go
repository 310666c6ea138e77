package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/hinshun/vt10x"
	"github.com/sirupsen/logrus"
)

// BuildLauncher starts the build when a session begins and stops it when the session ends
type BuildLauncher interface {
	Start() error
	Stop() error
}

// ScreenSource is implemented by launchers that can show the build's terminal
type ScreenSource interface {
	Screen() string
}

// noopLauncher is used when no build is configured
type noopLauncher struct{}

func (noopLauncher) Start() error { return nil }
func (noopLauncher) Stop() error  { return nil }

// tmuxLauncher types the compose command into an existing tmux pane
type tmuxLauncher struct {
	target      string
	compose     *dockerComposeCmd
	composeArgs []string
	run         commandRunner
	log         *logrus.Entry
}

func (l *tmuxLauncher) Start() error {
	line := l.compose.commandLine(l.composeArgs...)
	l.log.Infof("[BUILD] Sending %q to tmux pane %s", line, l.target)
	return l.run("tmux", "send-keys", "-t", l.target, line, "C-m")
}

// Stop terminates the build. The v1 binary is signalled directly; the v2 plugin runs
// inside the docker CLI, so the pane gets an interrupt instead.
func (l *tmuxLauncher) Stop() error {
	if l.compose.isStandalone() {
		return l.run("killall", "-15", filepath.Base(l.compose.executable))
	}
	return l.run("tmux", "send-keys", "-t", l.target, "C-c")
}

// ptyLauncher runs the build under a pseudo-terminal and keeps a virtual screen of its output
type ptyLauncher struct {
	newCmd func() *exec.Cmd
	grace  time.Duration
	log    *logrus.Entry

	mu     sync.Mutex
	cmd    *exec.Cmd
	ptmx   *os.File
	exited chan struct{}

	vtMu sync.Mutex
	vt   vt10x.Terminal
}

const (
	buildCols = 120
	buildRows = 40
)

func newPTYLauncher(newCmd func() *exec.Cmd, grace time.Duration, log *logrus.Entry) *ptyLauncher {
	return &ptyLauncher{
		newCmd: newCmd,
		grace:  grace,
		log:    log,
		vt:     vt10x.New(vt10x.WithSize(buildCols, buildRows)),
	}
}

func (l *ptyLauncher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return errors.New("build already started")
	}

	cmd := l.newCmd()
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: buildRows, Cols: buildCols})
	if err != nil {
		return fmt.Errorf("failed to start build: %w", err)
	}

	l.cmd = cmd
	l.ptmx = ptmx
	l.exited = make(chan struct{})
	l.log.Infof("[BUILD] Started %s (pid=%d)", strings.Join(cmd.Args, " "), cmd.Process.Pid)

	go l.readLoop(cmd, ptmx, l.exited)
	return nil
}

// readLoop feeds build output into the virtual terminal until the process exits
func (l *ptyLauncher) readLoop(cmd *exec.Cmd, ptmx *os.File, exited chan struct{}) {
	defer close(exited)
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			l.vtMu.Lock()
			l.vt.Write(buf[:n])
			l.vtMu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				l.log.Debugf("[BUILD] PTY read ended: %v", err)
			}
			break
		}
	}

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	l.log.Infof("[BUILD] Build exited with code %d", exitCode)
}

func (l *ptyLauncher) Stop() error {
	l.mu.Lock()
	cmd, ptmx, exited := l.cmd, l.ptmx, l.exited
	l.mu.Unlock()
	if cmd == nil {
		return nil
	}

	select {
	case <-exited:
		return ptmx.Close()
	default:
	}

	err := stopProcessGroup(cmd, exited, l.grace, l.log)
	ptmx.Close()
	return err
}

// Exited is closed once the build process has been reaped. Nil before Start.
func (l *ptyLauncher) Exited() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exited
}

// Screen renders the current terminal contents as plain text, trailing blanks trimmed
func (l *ptyLauncher) Screen() string {
	l.vtMu.Lock()
	defer l.vtMu.Unlock()

	cols, rows := l.vt.Size()
	lines := make([]string, 0, rows)
	for row := 0; row < rows; row++ {
		var b strings.Builder
		for col := 0; col < cols; col++ {
			ch := l.vt.Cell(col, row).Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// newBuildLauncher picks a launcher from the configuration
func newBuildLauncher(cfg Config, log *logrus.Entry) (BuildLauncher, error) {
	if cfg.BuildMode == BuildNone {
		return noopLauncher{}, nil
	}

	dc, err := getDockerComposeCmd()
	if err != nil {
		return nil, err
	}
	args := upArgs(cfg.ComposeFile)

	switch cfg.BuildMode {
	case BuildTmux:
		return &tmuxLauncher{
			target:      cfg.TmuxTarget,
			compose:     dc,
			composeArgs: args,
			run:         runCommand,
			log:         log,
		}, nil
	case BuildPTY:
		return newPTYLauncher(func() *exec.Cmd {
			cmd := dc.command(args...)
			cmd.Dir = cfg.ProjectDir
			return cmd
		}, cfg.StopGrace, log), nil
	default:
		return nil, fmt.Errorf("unknown build mode %q", cfg.BuildMode)
	}
}
