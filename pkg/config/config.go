// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/screenstream/pkg/adapters/ffmpeg"
	"github.com/user/screenstream/pkg/orchestrator"
	"github.com/user/screenstream/pkg/ports"
	"github.com/user/screenstream/pkg/transmitter"
)

// Config represents the full configuration for screenstream.
type Config struct {
	// Input/Output
	URL      string        `yaml:"url"`
	Output   string        `yaml:"output"`
	Duration time.Duration `yaml:"duration"`

	// Capture
	FPS               float64       `yaml:"fps"`
	Format            string        `yaml:"format"`
	Quality           int           `yaml:"quality"`
	MaxWidth          int           `yaml:"max_width"`
	MaxHeight         int           `yaml:"max_height"`
	EveryNthFrame     int           `yaml:"every_nth_frame"`
	FollowPopups      bool          `yaml:"follow_popups"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	AckTimeout        time.Duration `yaml:"ack_timeout"`
	BufferCapacity    int           `yaml:"buffer_capacity"`

	// Encoding
	Video      VideoConfig `yaml:"video"`
	Push       PushConfig  `yaml:"push"`
	FFmpegPath string      `yaml:"ffmpeg_path"`

	Browser BrowserConfig `yaml:"browser"`

	// Operations
	HealthAddr string `yaml:"health_addr"`
	StreamID   string `yaml:"stream_id"`
	LogLevel   string `yaml:"log_level"`
	DebugDir   string `yaml:"debug_dir"`
}

// VideoConfig holds encoder parameters.
type VideoConfig struct {
	Codec              string        `yaml:"codec"`
	PixelFormat        string        `yaml:"pixel_format"`
	BitrateKbps        int           `yaml:"bitrate_kbps"`
	CRF                int           `yaml:"crf"`
	Preset             string        `yaml:"preset"`
	Width              int           `yaml:"width"`
	Height             int           `yaml:"height"`
	AspectRatio        string        `yaml:"aspect_ratio"`
	AutopadColor       string        `yaml:"autopad_color"`
	DurationLimit      time.Duration `yaml:"duration_limit"`
	Metadata           []string      `yaml:"metadata"`
	ExtraOutputOptions []string      `yaml:"extra_output_options"`
	Threads            int           `yaml:"threads"`
	Container          string        `yaml:"container"`
}

// PushConfig controls reconnection of live push outputs.
type PushConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// BrowserConfig represents browser launch settings.
type BrowserConfig struct {
	Headless          bool              `yaml:"headless"`
	ChromePath        string            `yaml:"chrome_path"`
	UserAgent         string            `yaml:"user_agent"`
	Headers           map[string]string `yaml:"headers"`
	WindowWidth       int               `yaml:"window_width"`
	WindowHeight      int               `yaml:"window_height"`
	IgnoreHTTPSErrors bool              `yaml:"ignore_https_errors"`
	ProxyServer       string            `yaml:"proxy_server"`
	Incognito         bool              `yaml:"incognito"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		FPS:            15,
		Format:         "jpeg",
		Quality:        100,
		EveryNthFrame:  1,
		AckTimeout:     time.Second,
		BufferCapacity: 10,

		Video: VideoConfig{
			Codec:       "libx264",
			PixelFormat: "yuv420p",
			CRF:         23,
			Preset:      "ultrafast",
			Container:   "mp4",
		},
		Push: PushConfig{
			MaxRetries:   0,
			RetryBackoff: transmitter.DefaultRetryBackoff,
		},
		Browser: BrowserConfig{
			Headless:     true,
			WindowWidth:  1280,
			WindowHeight: 720,
		},

		LogLevel: "info",
	}
}

// Load reads a YAML file through fs on top of the defaults.
func Load(fs ports.FileSystem, path string) (Config, error) {
	cfg := Defaults()

	data, err := fs.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %v", c.FPS))
	}
	if c.Format != "jpeg" && c.Format != "png" {
		errs = append(errs, fmt.Errorf("format must be jpeg or png, got %q", c.Format))
	}
	if c.Quality < 0 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be within 0-100, got %d", c.Quality))
	}
	if c.BufferCapacity < 2 {
		errs = append(errs, fmt.Errorf("buffer_capacity must be at least 2, got %d", c.BufferCapacity))
	}
	if c.Push.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("push.max_retries must not be negative, got %d", c.Push.MaxRetries))
	}
	if c.Video.AspectRatio != "" && ffmpeg.AspectValue(c.Video.AspectRatio) == 0 {
		errs = append(errs, fmt.Errorf("video.aspect_ratio is invalid: %q", c.Video.AspectRatio))
	}
	if c.Video.Container != "mp4" && c.Video.Container != "flv" {
		errs = append(errs, fmt.Errorf("video.container must be mp4 or flv, got %q", c.Video.Container))
	}
	return errors.Join(errs...)
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		URL:      c.URL,
		Output:   c.Output,
		Duration: c.Duration,
		StreamID: c.StreamID,

		Browser: ports.BrowserOptions{
			Headless:          c.Browser.Headless,
			ChromePath:        c.Browser.ChromePath,
			UserAgent:         c.Browser.UserAgent,
			Headers:           c.Browser.Headers,
			WindowWidth:       c.Browser.WindowWidth,
			WindowHeight:      c.Browser.WindowHeight,
			IgnoreHTTPSErrors: c.Browser.IgnoreHTTPSErrors,
			ProxyServer:       c.Browser.ProxyServer,
			Incognito:         c.Browser.Incognito,
		},
		Screencast: ports.ScreencastOptions{
			Format:        c.Format,
			Quality:       c.Quality,
			MaxWidth:      c.MaxWidth,
			MaxHeight:     c.MaxHeight,
			EveryNthFrame: c.EveryNthFrame,
		},
		FollowPopups:      c.FollowPopups,
		KeepaliveInterval: c.KeepaliveInterval,
		AckTimeout:        c.AckTimeout,
		BufferCapacity:    c.BufferCapacity,

		Transmit: transmitter.Options{
			FFmpegPath: c.FFmpegPath,
			Video: ffmpeg.VideoOptions{
				FPS:                c.FPS,
				Codec:              c.Video.Codec,
				PixelFormat:        c.Video.PixelFormat,
				Preset:             c.Video.Preset,
				CRF:                c.Video.CRF,
				BitrateKbps:        c.Video.BitrateKbps,
				Width:              c.Video.Width,
				Height:             c.Video.Height,
				AspectRatio:        c.Video.AspectRatio,
				AutopadColor:       c.Video.AutopadColor,
				DurationLimit:      c.Video.DurationLimit,
				Metadata:           c.Video.Metadata,
				ExtraOutputOptions: c.Video.ExtraOutputOptions,
				Threads:            c.Video.Threads,
				Container:          c.Video.Container,
			},
			MaxRetries:   c.Push.MaxRetries,
			RetryBackoff: c.Push.RetryBackoff,
		},
	}
}
