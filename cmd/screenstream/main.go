// Package main provides the CLI entry point for screenstream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/ideamans/go-l10n"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/user/screenstream/pkg/adapters/chromebrowser"
	"github.com/user/screenstream/pkg/adapters/codecdetect"
	"github.com/user/screenstream/pkg/adapters/ffmpeg"
	"github.com/user/screenstream/pkg/adapters/framedump"
	"github.com/user/screenstream/pkg/adapters/logger"
	"github.com/user/screenstream/pkg/adapters/osfilesystem"
	"github.com/user/screenstream/pkg/config"
	"github.com/user/screenstream/pkg/healthserver"
	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/orchestrator"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
	"github.com/user/screenstream/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Record  RecordCmd  `cmd:"" help:"Capture a web page and stream it as constant frame rate video."`
	Probe   ProbeCmd   `cmd:"" help:"Check the health endpoint of a running instance."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// RecordCmd defines the record subcommand. Flags override values from the config file.
type RecordCmd struct {
	URL    string `arg:"" optional:"" help:"URL of the page to capture."`
	Output string `short:"o" help:"Output file (.mp4, .mov, .avi, .webm), rtmp(s):// URL, or - for stdout."`
	Config string `short:"c" type:"path" help:"YAML configuration file."`

	// Capture
	FPS          *float64      `help:"Output frame rate (default: 15)."`
	Duration     time.Duration `short:"t" help:"Stop after this long (default: until interrupted)."`
	Format       string        `help:"Screencast image format (jpeg, png)."`
	Quality      *int          `short:"q" help:"Screencast image quality (0-100)."`
	FollowPopups bool          `help:"Follow popup windows opened by the page."`

	// Encoding
	Bitrate    *int    `short:"b" help:"Video bitrate in kbps."`
	Width      *int    `short:"W" help:"Output video width."`
	Height     *int    `short:"H" help:"Output video height."`
	MaxRetries *int    `help:"Encoder restarts allowed for push outputs (default: 0)."`
	FFmpegPath *string `help:"Path to ffmpeg (falls back to FFMPEG_PATH env, then PATH)."`

	// Browser
	NoHeadless        bool    `help:"Run browser in non-headless mode."`
	ChromePath        *string `help:"Path to Chrome executable (falls back to CHROME_PATH env, then system default)."`
	IgnoreHTTPSErrors bool    `help:"Ignore HTTPS certificate errors."`
	ProxyServer       *string `help:"HTTP proxy server (e.g., http://proxy:8080)."`

	// Operations
	HealthAddr *string `help:"Serve /api/health and /metrics on this address (e.g., :9090)."`
	StreamID   *string `help:"Stream id for logs and metrics (default: random UUID)."`
	DebugDir   *string `help:"Save every captured frame under this directory."`
	Summary    string  `short:"s" help:"Write a Markdown summary of the session to this file."`

	// Logging
	LogLevel string `short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	Primary  string        `arg:"" help:"Base URL of the primary instance (e.g., http://host:9090)."`
	Fallback []string      `arg:"" optional:"" help:"Base URLs tried when the primary is unreachable."`
	Timeout  time.Duration `default:"5s" help:"Timeout per request."`
	Insecure bool          `help:"Accept self-signed certificates on https targets."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("screenstream"),
		kong.Description("Capture a web page as constant frame rate video for files and live streams."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the record command.
func (cmd *RecordCmd) Run() error {
	fs := osfilesystem.New()

	cfg := config.Defaults()
	if cmd.Config != "" {
		loaded, err := config.Load(fs, cmd.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cmd.apply(&cfg)
	if cfg.StreamID == "" {
		cfg.StreamID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log := cmd.logger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, cfg.StreamID)

	orch := orchestrator.New(
		chromebrowser.New(),
		ffmpeg.NewLauncher(),
		fs,
		framedump.New(cfg.DebugDir, cfg.Format, fs),
		os.Stdout,
		log,
		m,
	)

	if cfg.HealthAddr != "" {
		srv := healthserver.New(orch, reg, log)
		srv.Start(cfg.HealthAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first signal finalizes the output, the second kills the encoder.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		log.Warn("Interrupted, stopping stream...")
		cancel()
		if _, ok := <-sigCh; !ok {
			return
		}
		log.Warn("Interrupted again, terminating encoder")
		orch.Terminate()
	}()

	log.Info("Capturing %s (stream %s)", cfg.URL, cfg.StreamID)
	result, err := orch.Run(ctx, cfg.ToOrchestratorConfig())

	var track string
	if err == nil && result.Kind == "file" {
		log.Info("Output saved to %s", cfg.Output)
		track = verifyOutput(cfg.Output, log)
	}
	if cmd.Summary != "" {
		cmd.writeSummary(fs, cfg, result, track, err, log)
	}
	return err
}

// verifyOutput checks that a finished MP4 or MOV file holds a video track.
func verifyOutput(path string, log ports.Logger) string {
	if !codecdetect.Inspectable(pipeline.ContainerOf(path)) {
		return ""
	}
	info, err := codecdetect.InspectFile(path)
	if err != nil {
		log.Warn("Could not verify output %s: %s", path, err)
		return ""
	}
	log.Debug("Output video track: %s", info)
	return info.String()
}

func (cmd *RecordCmd) writeSummary(fs ports.FileSystem, cfg config.Config, r orchestrator.RunResult, track string, runErr error, log ports.Logger) {
	summary := summarizer.NewBuilder().
		WithStream(summarizer.StreamInfo{
			ID:          cfg.StreamID,
			URL:         cfg.URL,
			Destination: r.Destination,
			Kind:        r.Kind,
		}).
		WithResult(summarizer.ResultInfo{
			FramesEmitted:   r.FramesEmitted,
			BytesWritten:    r.BytesWritten,
			Elapsed:         r.Elapsed,
			Duration:        r.Duration,
			VideoTrack:      track,
			Retries:         r.Retries,
			ExitCode:        r.ExitCode,
			ForceTerminated: r.ForceTerminated,
		}).
		WithError(runErr).
		WithSettings(summarizer.Settings{
			FPS:          cfg.FPS,
			Format:       cfg.Format,
			Quality:      cfg.Quality,
			Codec:        cfg.Video.Codec,
			BitrateKbps:  cfg.Video.BitrateKbps,
			Width:        cfg.Video.Width,
			Height:       cfg.Video.Height,
			FollowPopups: cfg.FollowPopups,
			MaxRetries:   cfg.Push.MaxRetries,
		}).
		Build()

	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	if err := summarizer.NewWriter(formatter, fs).Write(cmd.Summary, summary); err != nil {
		log.Warn("Failed to write summary: %s", err)
		return
	}
	log.Info("Summary saved to %s", cmd.Summary)
}

func (cmd *RecordCmd) logger(cfg config.Config) ports.Logger {
	if cmd.Quiet {
		return logger.NewNoop()
	}
	level := ports.ParseLogLevel(cfg.LogLevel)
	if cfg.Output == orchestrator.StdoutDestination {
		return logger.NewStderrConsole(level)
	}
	return logger.NewConsole(level)
}

// apply copies every flag that was set onto cfg.
func (cmd *RecordCmd) apply(cfg *config.Config) {
	if cmd.URL != "" {
		cfg.URL = cmd.URL
	}
	if cmd.Output != "" {
		cfg.Output = cmd.Output
	}

	if cmd.FPS != nil {
		cfg.FPS = *cmd.FPS
	}
	if cmd.Duration > 0 {
		cfg.Duration = cmd.Duration
	}
	if cmd.Format != "" {
		cfg.Format = cmd.Format
	}
	if cmd.Quality != nil {
		cfg.Quality = *cmd.Quality
	}
	if cmd.FollowPopups {
		cfg.FollowPopups = true
	}

	if cmd.Bitrate != nil {
		cfg.Video.BitrateKbps = *cmd.Bitrate
	}
	if cmd.Width != nil {
		cfg.Video.Width = *cmd.Width
	}
	if cmd.Height != nil {
		cfg.Video.Height = *cmd.Height
	}
	if cmd.MaxRetries != nil {
		cfg.Push.MaxRetries = *cmd.MaxRetries
	}
	if cmd.FFmpegPath != nil {
		cfg.FFmpegPath = *cmd.FFmpegPath
	}

	if cmd.NoHeadless {
		cfg.Browser.Headless = false
	}
	if cmd.ChromePath != nil {
		cfg.Browser.ChromePath = *cmd.ChromePath
	}
	if cmd.IgnoreHTTPSErrors {
		cfg.Browser.IgnoreHTTPSErrors = true
	}
	if cmd.ProxyServer != nil {
		cfg.Browser.ProxyServer = *cmd.ProxyServer
	}

	if cmd.HealthAddr != nil {
		cfg.HealthAddr = *cmd.HealthAddr
	}
	if cmd.StreamID != nil {
		cfg.StreamID = *cmd.StreamID
	}
	if cmd.DebugDir != nil {
		cfg.DebugDir = *cmd.DebugDir
	}
	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	log := logger.NewStderrConsole(ports.LevelInfo)
	prober := healthserver.NewProber(cmd.Timeout, cmd.Insecure, log)

	targets := append([]string{cmd.Primary}, cmd.Fallback...)
	result, err := prober.Probe(context.Background(), targets...)
	if err != nil {
		log.Error("No healthy instance: %s", err)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("screenstream version %s", version))
	return nil
}
