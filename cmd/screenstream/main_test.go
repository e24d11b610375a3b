package main

import (
	"testing"
	"time"

	"github.com/user/screenstream/pkg/config"
)

func ptr[T any](v T) *T { return &v }

func TestRecordCmd_Apply(t *testing.T) {
	cfg := config.Defaults()
	cfg.URL = "https://from-file.example"
	cfg.Video.BitrateKbps = 1500

	cmd := RecordCmd{
		Output:       "rtmp://live.example.com/app/key",
		FPS:          ptr(30.0),
		Duration:     90 * time.Second,
		Quality:      ptr(70),
		FollowPopups: true,
		MaxRetries:   ptr(3),
		NoHeadless:   true,
		LogLevel:     "debug",
	}
	cmd.apply(&cfg)

	if cfg.URL != "https://from-file.example" {
		t.Errorf("unset flag overrode the file value: %q", cfg.URL)
	}
	if cfg.Output != cmd.Output || cfg.FPS != 30 || cfg.Duration != 90*time.Second || cfg.Quality != 70 {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.FollowPopups || cfg.Push.MaxRetries != 3 || cfg.Browser.Headless || cfg.LogLevel != "debug" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Video.BitrateKbps != 1500 || cfg.Format != "jpeg" {
		t.Errorf("file values lost: %+v", cfg)
	}
}
