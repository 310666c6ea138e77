package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// BuildMode selects how the build is launched
type BuildMode string

const (
	BuildNone BuildMode = "none"
	BuildTmux BuildMode = "tmux"
	BuildPTY  BuildMode = "pty"
)

// ClockMode selects the gameplay clock source
type ClockMode string

const (
	ClockWall ClockMode = "wall"
	ClockHost ClockMode = "host"
)

// Defaults for the run command
const (
	defaultDeadline          = 35 * time.Second
	defaultOverallDifficulty = 1.0
	defaultTickInterval      = 16 * time.Millisecond
	defaultStopGrace         = 30 * time.Second
	defaultTmuxTarget        = "0"
	defaultListenAddr        = "127.0.0.1:7777"
)

// Config holds the settings for a run
type Config struct {
	FramesPath        string
	BeatmapPath       string
	Deadline          time.Duration
	OverallDifficulty float64
	TickInterval      time.Duration

	BuildMode   BuildMode
	ComposeFile string
	ProjectDir  string
	TmuxTarget  string
	StopGrace   time.Duration
	Prune       bool

	Clock      ClockMode
	ListenAddr string
	FailFile   string
	Mapping    PlayfieldMapping

	RecordsDir string
	LogLevel   string
	LogFormat  string
}

// envOr returns the environment variable or the fallback when unset
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// parseRunFlags parses the run subcommand arguments. Environment variables provide defaults.
func parseRunFlags(args []string, stderr io.Writer) (Config, error) {
	var cfg Config
	var buildMode, clockMode string

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.FramesPath, "frames", envOr("BEATBUILD_FRAMES", ""), "Replay frames JSON file")
	fs.StringVar(&cfg.BeatmapPath, "beatmap", envOr("BEATBUILD_BEATMAP", ""), "Hit object JSON file to generate frames from (used when --frames is empty)")
	fs.DurationVar(&cfg.Deadline, "deadline", envDuration("BEATBUILD_DEADLINE", defaultDeadline), "Session time budget before the build is torn down")
	fs.Float64Var(&cfg.OverallDifficulty, "overall-difficulty", envFloat("BEATBUILD_OVERALL_DIFFICULTY", defaultOverallDifficulty), "Overall difficulty forced onto the beatmap")
	fs.DurationVar(&cfg.TickInterval, "tick", envDuration("BEATBUILD_TICK", defaultTickInterval), "Update loop interval")
	fs.StringVar(&buildMode, "build", envOr("BEATBUILD_BUILD", string(BuildPTY)), "Build launcher: pty, tmux or none")
	fs.StringVar(&cfg.ComposeFile, "compose-file", envOr("BEATBUILD_COMPOSE_FILE", ""), "docker compose file (defaults to compose's own lookup)")
	fs.StringVar(&cfg.ProjectDir, "project-directory", envOr("BEATBUILD_PROJECT_DIR", "."), "Directory the build runs in (pty mode)")
	fs.StringVar(&cfg.TmuxTarget, "tmux-target", envOr("BEATBUILD_TMUX_TARGET", defaultTmuxTarget), "tmux pane receiving the build command (tmux mode)")
	fs.DurationVar(&cfg.StopGrace, "stop-grace", envDuration("BEATBUILD_STOP_GRACE", defaultStopGrace), "Wait after SIGTERM before force killing the build")
	fs.BoolVar(&cfg.Prune, "prune", envBool("BEATBUILD_PRUNE", false), "Run 'docker system prune -af' when the session ends")
	fs.StringVar(&clockMode, "clock", envOr("BEATBUILD_CLOCK", string(ClockWall)), "Gameplay clock: wall or host")
	fs.StringVar(&cfg.ListenAddr, "listen", envOr("BEATBUILD_LISTEN", defaultListenAddr), "Address for the host bridge (empty disables it)")
	fs.StringVar(&cfg.FailFile, "fail-file", envOr("BEATBUILD_FAIL_FILE", ""), "Marker file that fails the session when created")
	fs.Float64Var(&cfg.Mapping.Scale, "scale", envFloat("BEATBUILD_SCALE", 1), "Playfield to screen scale")
	fs.Float64Var(&cfg.Mapping.Offset.X, "offset-x", envFloat("BEATBUILD_OFFSET_X", 0), "Playfield to screen X offset")
	fs.Float64Var(&cfg.Mapping.Offset.Y, "offset-y", envFloat("BEATBUILD_OFFSET_Y", 0), "Playfield to screen Y offset")
	fs.StringVar(&cfg.RecordsDir, "records", envOr("BEATBUILD_RECORDS", ""), "Session records directory (defaults to ~/.beatbuild/sessions)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (defaults to LOG_LEVEL, then info)")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format: text or json (defaults to LOG_FORMAT)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.BuildMode = BuildMode(buildMode)
	cfg.Clock = ClockMode(clockMode)
	cfg.FramesPath = expandTilde(cfg.FramesPath)
	cfg.BeatmapPath = expandTilde(cfg.BeatmapPath)
	cfg.ProjectDir = expandTilde(cfg.ProjectDir)
	cfg.FailFile = expandTilde(cfg.FailFile)
	cfg.RecordsDir = expandTilde(cfg.RecordsDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.FramesPath == "" && c.BeatmapPath == "" {
		return errors.New("one of --frames or --beatmap is required")
	}
	if c.Deadline < 0 {
		return fmt.Errorf("--deadline must not be negative, got %s", c.Deadline)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("--tick must be positive, got %s", c.TickInterval)
	}
	switch c.BuildMode {
	case BuildNone, BuildTmux, BuildPTY:
	default:
		return fmt.Errorf("unknown build mode %q (want pty, tmux or none)", c.BuildMode)
	}
	switch c.Clock {
	case ClockWall:
	case ClockHost:
		if c.ListenAddr == "" {
			return errors.New("--clock=host needs --listen")
		}
	default:
		return fmt.Errorf("unknown clock %q (want wall or host)", c.Clock)
	}
	if c.BuildMode == BuildTmux && c.TmuxTarget == "" {
		return errors.New("--tmux-target is required for tmux builds")
	}
	return nil
}
