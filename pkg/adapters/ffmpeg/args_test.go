package ffmpeg

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func valueAfter(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestPushArgs(t *testing.T) {
	args := PushArgs(VideoOptions{FPS: 15, Width: 1280, Height: 720, BitrateKbps: 3000}, "rtmp://live.example.com/app/key")

	if args[len(args)-1] != "rtmp://live.example.com/app/key" {
		t.Errorf("expected url last, got %s", args[len(args)-1])
	}
	checks := map[string]string{
		"-r":       "15",
		"-vf":      "scale=1280:720",
		"-g":       "30",
		"-b:v":     "3000k",
		"-minrate": "3000k",
		"-maxrate": "3000k",
		"-bufsize": "6000k",
		"-tune":    "zerolatency",
		"-acodec":  "aac",
		"-b:a":     "128k",
	}
	for flag, want := range checks {
		got, ok := valueAfter(args, flag)
		if !ok || got != want {
			t.Errorf("%s: expected %q, got %q", flag, want, got)
		}
	}
	if !strings.Contains(strings.Join(args, " "), "anullsrc=channel_layout=stereo:sample_rate=44100") {
		t.Error("expected silent stereo audio source")
	}
	if !slices.Contains(args, "-shortest") {
		t.Error("expected -shortest so the audio track ends with the video")
	}
	if f, _ := valueAfter(args, "-f"); f != "image2pipe" {
		t.Errorf("expected image2pipe input, got %s", f)
	}
}

func TestPushArgs_Defaults(t *testing.T) {
	args := PushArgs(VideoOptions{FPS: 30}, "rtmp://host/app")
	if got, _ := valueAfter(args, "-b:v"); got != "2500k" {
		t.Errorf("expected default bitrate 2500k, got %s", got)
	}
	if slices.Contains(args, "-vf") {
		t.Error("expected no scale filter without a frame size")
	}
	if got, _ := valueAfter(args, "-g"); got != "60" {
		t.Errorf("expected keyframe interval 60, got %s", got)
	}
}

func TestFileArgs(t *testing.T) {
	o := VideoOptions{
		FPS:           25,
		CRF:           28,
		DurationLimit: 90 * time.Second,
		Metadata:      []string{"title=demo"},
		Threads:       2,
	}
	args, err := FileArgs(o, "/tmp/out.mp4", "mp4")
	if err != nil {
		t.Fatalf("FileArgs failed: %v", err)
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Errorf("expected output path last, got %s", args[len(args)-1])
	}
	checks := map[string]string{
		"-c:v":      "libx264",
		"-crf":      "28",
		"-preset":   "ultrafast",
		"-pix_fmt":  "yuv420p",
		"-t":        "90.000",
		"-metadata": "title=demo",
		"-threads":  "2",
	}
	for flag, want := range checks {
		got, ok := valueAfter(args, flag)
		if !ok || got != want {
			t.Errorf("%s: expected %q, got %q", flag, want, got)
		}
	}
}

func TestFileArgs_WebM(t *testing.T) {
	args, err := FileArgs(VideoOptions{FPS: 10}, "out.webm", "webm")
	if err != nil {
		t.Fatalf("FileArgs failed: %v", err)
	}
	if got, _ := valueAfter(args, "-c:v"); got != "libvpx" {
		t.Errorf("expected libvpx for webm, got %s", got)
	}
	if got, _ := valueAfter(args, "-flags"); got != "+global_header" {
		t.Errorf("expected +global_header, got %s", got)
	}
	if slices.Contains(args, "-preset") {
		t.Error("libvpx takes no x264 preset")
	}
}

func TestFileArgs_UnsupportedContainer(t *testing.T) {
	for _, ext := range []string{"mkv", "gif", ""} {
		if _, err := FileArgs(VideoOptions{FPS: 10}, "out."+ext, ext); !errors.Is(err, ErrUnsupportedContainer) {
			t.Errorf("%q: expected ErrUnsupportedContainer, got %v", ext, err)
		}
	}
}

func TestWriterArgs(t *testing.T) {
	args := WriterArgs(VideoOptions{FPS: 15})
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("expected stdout output, got %s", args[len(args)-1])
	}
	if got, _ := valueAfter(args, "-movflags"); !strings.Contains(got, "frag_keyframe") {
		t.Errorf("expected fragmented mp4, got %s", got)
	}

	flv := WriterArgs(VideoOptions{FPS: 15, Container: "flv"})
	if !slices.Contains(flv, "flv") {
		t.Error("expected flv muxer")
	}
}

func TestVideoFilter_Autopad(t *testing.T) {
	vf := videoFilter(VideoOptions{Width: 640, Height: 480, AspectRatio: "4:3", AutopadColor: "black"})
	if !strings.HasPrefix(vf, "scale=") || !strings.Contains(vf, "pad=w=640:h=480") {
		t.Errorf("unexpected filter: %s", vf)
	}
	if !strings.Contains(vf, "color=black") {
		t.Errorf("expected pad color, got %s", vf)
	}
}

func TestAspectValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"4:3", 4.0 / 3.0},
		{"16/9", 16.0 / 9.0},
		{"1.5", 1.5},
		{"", 0},
		{"x:y", 0},
		{"4:0", 0},
	}
	for _, tt := range tests {
		if got := AspectValue(tt.in); got != tt.want {
			t.Errorf("AspectValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsSupportedContainer(t *testing.T) {
	for _, ext := range []string{"mp4", "MOV", "avi", "webm"} {
		if !IsSupportedContainer(ext) {
			t.Errorf("expected %s to be supported", ext)
		}
	}
	if IsSupportedContainer("mkv") {
		t.Error("expected mkv to be rejected")
	}
}
