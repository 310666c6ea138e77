package main

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// recordingRunner captures commands instead of executing them
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]error
}

func (r *recordingRunner) run(name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.fail[name]
}

func (r *recordingRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

// fakeLauncher counts Start/Stop calls
type fakeLauncher struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	stopErr  error
}

func (l *fakeLauncher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
	return l.startErr
}

func (l *fakeLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
	return l.stopErr
}

func (l *fakeLauncher) Counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts, l.stops
}

// TestDockerComposeBuildArgs verifies v1 and v2 argument lists
func TestDockerComposeBuildArgs(t *testing.T) {
	v2 := &dockerComposeCmd{executable: "/usr/bin/docker", args: []string{"compose"}}
	if got := v2.buildArgs("up", "--build"); !reflect.DeepEqual(got, []string{"compose", "up", "--build"}) {
		t.Errorf("v2 args = %v", got)
	}
	v1 := &dockerComposeCmd{executable: "/usr/local/bin/docker-compose", args: []string{}}
	if got := v1.buildArgs("up", "--build"); !reflect.DeepEqual(got, []string{"up", "--build"}) {
		t.Errorf("v1 args = %v", got)
	}
	if v2.isStandalone() || !v1.isStandalone() {
		t.Error("isStandalone mismatch")
	}

	cmd := v2.command("ps")
	if cmd.Path != "/usr/bin/docker" || !reflect.DeepEqual(cmd.Args, []string{"/usr/bin/docker", "compose", "ps"}) {
		t.Errorf("command = %s %v", cmd.Path, cmd.Args)
	}
}

// TestDockerComposeCommandLine verifies the shell rendering used for tmux
func TestDockerComposeCommandLine(t *testing.T) {
	dc := &dockerComposeCmd{executable: "/usr/bin/docker", args: []string{"compose"}}
	got := dc.commandLine(upArgs("my project/compose.yml")...)
	want := `docker compose -f "my project/compose.yml" up --build`
	if got != want {
		t.Errorf("commandLine = %q, want %q", got, want)
	}
}

// TestUpArgs verifies the compose file flag is only added when set
func TestUpArgs(t *testing.T) {
	if got := upArgs(""); !reflect.DeepEqual(got, []string{"up", "--build"}) {
		t.Errorf("upArgs(\"\") = %v", got)
	}
	if got := upArgs("c.yml"); !reflect.DeepEqual(got, []string{"-f", "c.yml", "up", "--build"}) {
		t.Errorf("upArgs(c.yml) = %v", got)
	}
}

// TestGetDockerComposeCmd verifies v2 is preferred and v1 is the fallback
func TestGetDockerComposeCmd(t *testing.T) {
	origLook, origProbe := lookPath, commandProbe
	t.Cleanup(func() { lookPath, commandProbe = origLook, origProbe })

	tests := []struct {
		name      string
		found     map[string]bool
		probeErr  error
		wantExec  string
		wantArgs  []string
		wantError bool
	}{
		{"v2 plugin", map[string]bool{"docker": true, "docker-compose": true}, nil, "/bin/docker", []string{"compose"}, false},
		{"v2 missing falls back to v1", map[string]bool{"docker": true, "docker-compose": true}, errors.New("unknown command"), "/bin/docker-compose", []string{}, false},
		{"only v1", map[string]bool{"docker-compose": true}, nil, "/bin/docker-compose", []string{}, false},
		{"nothing installed", map[string]bool{}, nil, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookPath = func(name string) (string, error) {
				if tt.found[name] {
					return "/bin/" + name, nil
				}
				return "", errors.New("not found")
			}
			commandProbe = func(name string, args ...string) error { return tt.probeErr }

			dc, err := getDockerComposeCmd()
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dc.executable != tt.wantExec || !reflect.DeepEqual(dc.args, tt.wantArgs) {
				t.Errorf("got %s %v, want %s %v", dc.executable, dc.args, tt.wantExec, tt.wantArgs)
			}
		})
	}
}

// TestTmuxLauncherV2 verifies the build is typed into the pane and interrupted on stop
func TestTmuxLauncherV2(t *testing.T) {
	r := &recordingRunner{}
	l := &tmuxLauncher{
		target:      "0",
		compose:     &dockerComposeCmd{executable: "/usr/bin/docker", args: []string{"compose"}},
		composeArgs: upArgs(""),
		run:         r.run,
		log:         componentLog("test"),
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := [][]string{
		{"tmux", "send-keys", "-t", "0", "docker compose up --build", "C-m"},
		{"tmux", "send-keys", "-t", "0", "C-c"},
	}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// TestTmuxLauncherV1 verifies the standalone binary is signalled directly
func TestTmuxLauncherV1(t *testing.T) {
	r := &recordingRunner{}
	l := &tmuxLauncher{
		target:      "build",
		compose:     &dockerComposeCmd{executable: "/usr/local/bin/docker-compose", args: []string{}},
		composeArgs: upArgs(""),
		run:         r.run,
		log:         componentLog("test"),
	}
	l.Stop()

	want := [][]string{{"killall", "-15", "docker-compose"}}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// TestTeardownEffect verifies stop and prune run in order and errors are joined
func TestTeardownEffect(t *testing.T) {
	t.Run("stop only", func(t *testing.T) {
		r := &recordingRunner{}
		l := &fakeLauncher{}
		if err := newTeardownEffect(l, false, r.run, componentLog("test"))(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, stops := l.Counts(); stops != 1 {
			t.Errorf("stops = %d, want 1", stops)
		}
		if len(r.Calls()) != 0 {
			t.Errorf("prune ran without being enabled: %v", r.Calls())
		}
	})

	t.Run("stop and prune", func(t *testing.T) {
		r := &recordingRunner{}
		l := &fakeLauncher{}
		newTeardownEffect(l, true, r.run, componentLog("test"))()
		want := [][]string{{"docker", "system", "prune", "-af"}}
		if got := r.Calls(); !reflect.DeepEqual(got, want) {
			t.Errorf("calls = %v, want %v", got, want)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		stopErr := errors.New("still running")
		pruneErr := errors.New("daemon unreachable")
		r := &recordingRunner{fail: map[string]error{"docker": pruneErr}}
		l := &fakeLauncher{stopErr: stopErr}

		err := newTeardownEffect(l, true, r.run, componentLog("test"))()
		if !errors.Is(err, stopErr) || !errors.Is(err, pruneErr) {
			t.Fatalf("expected both errors joined, got %v", err)
		}
		if len(r.Calls()) != 1 {
			t.Error("prune should still run after stop fails")
		}
		if !strings.Contains(err.Error(), "stop build") {
			t.Errorf("error lacks context: %v", err)
		}
	})
}

// TestRunCommandWrapsOutput verifies failures carry the command name
func TestRunCommandWrapsOutput(t *testing.T) {
	err := runCommand("beatbuild-command-that-does-not-exist")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "beatbuild-command-that-does-not-exist:") {
		t.Errorf("error = %v", err)
	}
}
