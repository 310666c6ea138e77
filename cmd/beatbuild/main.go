package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Version can be set at build time with: go build -ldflags "-X main.Version=<version>"
var Version = "dev"

func main() {
	initLogger(os.Stderr, "", "")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = handleRun(args)
	case "frames":
		err = handleFrames(args, os.Stdout)
	case "list":
		err = handleList(args, os.Stdout)
	case "version":
		fmt.Println(Version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Fatalf("%v", err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: beatbuild <command> [options]

Commands:
  run [options]                          Play a replay session, building with docker compose meanwhile
  frames --beatmap FILE [--out FILE]     Generate an autoplay frames file from beatmap hit objects
  list [--prune] [--older-than DUR]      List recorded sessions
  version                                Print the version
  help                                   Show this help message

Run options (see 'beatbuild run -h' for all):
  --frames FILE                          Replay frames JSON ({"frames":[{"time":0,"position":{"x":0,"y":0}}]})
  --beatmap FILE                         Hit objects JSON, used to generate frames when --frames is empty
  --deadline 35s                         Session time budget; the build is torn down when it runs out
  --build pty|tmux|none                  How 'docker compose up --build' is launched
  --clock wall|host                      Drive the replay from the wall clock or from the host bridge
  --listen ADDR                          Websocket bridge for the game host (default 127.0.0.1:7777)
  --fail-file FILE                       Creating this file fails the session
  --prune                                Run 'docker system prune -af' when the session ends

Environment Variables:
  BEATBUILD_*                            Defaults for run options (e.g. BEATBUILD_DEADLINE=60s)
  LOG_LEVEL                              debug, info, warn, error (defaults to info)
  LOG_FORMAT                             text or json (defaults to text)
`)
}

func handleRun(args []string) error {
	cfg, err := parseRunFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	initLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := runSession(ctx, cfg)
	if err != nil {
		return err
	}

	dir, err := getRecordsDir(cfg.RecordsDir)
	if err != nil {
		return err
	}
	path, err := writeRecord(dir, recordFromStatus(status, cfg.BuildMode))
	if err != nil {
		logger.Warnf("[SESSION] %v", err)
	} else {
		logger.Debugf("[SESSION] Record written to %s", path)
	}

	fmt.Printf("Session %s ended (%s) at frame %d/%d\n", shortID(status.ID), status.Reason, status.Cursor+1, status.Frames)
	return nil
}

// loadSessionFrames reads the frames file, or generates frames from the beatmap
func loadSessionFrames(cfg Config) ([]ReplayFrame, error) {
	if cfg.FramesPath != "" {
		return LoadFrames(cfg.FramesPath)
	}
	objects, err := LoadHitObjects(cfg.BeatmapPath)
	if err != nil {
		return nil, err
	}
	frames := GenerateAutoFrames(objects, defaultLeadIn)
	if err := ValidateFrames(frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// runSession plays one session to the end and returns its final status.
// Cancelling ctx fails the session so the build is still torn down.
func runSession(ctx context.Context, cfg Config) (SessionStatus, error) {
	frames, err := loadSessionFrames(cfg)
	if err != nil {
		return SessionStatus{}, err
	}

	launcher, err := newBuildLauncher(cfg, componentLog("build"))
	if err != nil {
		return SessionStatus{}, err
	}

	hub := NewHub(componentLog("websocket"))
	var sink InputSink = NewLogSink(componentLog("input"))
	var publish func(ev interface{})
	if cfg.ListenAddr != "" {
		sink = multiSink{sink, HubSink{hub: hub}}
		publish = hub.Publish
	}

	var clock GameClock
	var hostClock *HostClock
	if cfg.Clock == ClockHost {
		hostClock = &HostClock{}
		clock = hostClock
	} else {
		clock = NewWallClock()
	}

	sess, err := NewSession(SessionOptions{
		Frames:            frames,
		Sink:              sink,
		Clock:             clock,
		Launcher:          launcher,
		Deadline:          cfg.Deadline,
		TickInterval:      cfg.TickInterval,
		OverallDifficulty: cfg.OverallDifficulty,
		Mapping:           cfg.Mapping,
		Prune:             cfg.Prune,
		Publish:           publish,
	})
	if err != nil {
		return SessionStatus{}, err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return SessionStatus{}, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
		}
		srv := &http.Server{Handler: newServeMux(sess, hub, hostClock)}
		hubDone := make(chan struct{})
		go func() {
			defer close(hubDone)
			hub.Run(bgCtx)
		}()
		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Errorf("[HTTP] Server error: %v", err)
			}
		}()
		// the hub flushes the final events and closes its clients before the server goes away
		defer func() {
			cancel()
			<-hubDone
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("[HTTP] Shutdown: %v", err)
			}
		}()
		logger.Infof("[HTTP] Host bridge listening on ws://%s/ws", ln.Addr())
	}

	if cfg.FailFile != "" {
		if err := watchFailFile(bgCtx, cfg.FailFile, func() { sess.PerformFail() }, componentLog("failwatch")); err != nil {
			return SessionStatus{}, err
		}
	}

	waitTeardown := func() {
		waitCtx, done := context.WithTimeout(context.Background(), cfg.StopGrace+10*time.Second)
		defer done()
		if err := sess.WaitTeardown(waitCtx); err != nil {
			logger.Warnf("[SESSION] Teardown still running: %v", err)
		}
	}

	if err := sess.Start(); err != nil {
		waitTeardown()
		return sess.Status(), err
	}

	if err := sess.Run(ctx); err != nil {
		logger.Infof("[SESSION] Interrupted, ending session")
		sess.PerformFail()
	}
	waitTeardown()
	return sess.Status(), nil
}

func handleFrames(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("frames", flag.ContinueOnError)
	beatmap := fs.String("beatmap", "", "Hit objects JSON file")
	out := fs.String("out", "-", "Output file ('-' for stdout)")
	leadIn := fs.Float64("lead-in", defaultLeadIn, "Milliseconds before the first object the cursor starts at the centre")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *beatmap == "" {
		return errors.New("--beatmap is required")
	}

	objects, err := LoadHitObjects(expandTilde(*beatmap))
	if err != nil {
		return err
	}
	frames := GenerateAutoFrames(objects, *leadIn)

	if *out == "-" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(replayFile{Frames: frames})
	}
	if err := SaveFrames(expandTilde(*out), frames); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d frames to %s\n", len(frames), *out)
	return nil
}
