package ffmpeg

import (
	"strings"
	"testing"

	"github.com/user/screenstream/pkg/adapters/logger"
)

func TestParseTimemark(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"frame=  120 fps= 30 q=28.0 size=     256kB time=00:00:04.00 bitrate= 524.3kbits/s speed=1.0x", "00:00:04.00", true},
		{"size=N/A time=N/A bitrate=N/A", "", false},
		{"Input #0, image2pipe, from 'pipe:0':", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTimemark(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTimemark(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStderrRelay(t *testing.T) {
	r := NewStderrRelay(logger.NewNoop())

	// Progress lines are rewritten in place with \r and may arrive split.
	r.Write([]byte("frame=1 time=00:00:00.06 "))
	r.Write([]byte("bitrate=1k\rframe=2 time=00:00:00.13 bitrate=1k\r"))
	r.Write([]byte("[flv @ 0x1] Failed to update header\nConnection refused\n"))

	if got := r.Timemark(); got != "00:00:00.13" {
		t.Errorf("expected latest timemark, got %q", got)
	}
	tail := r.Tail()
	if !strings.Contains(tail, "Connection refused") || strings.Contains(tail, "time=") {
		t.Errorf("unexpected tail: %q", tail)
	}
}

func TestStderrRelay_TailIsBounded(t *testing.T) {
	r := NewStderrRelay(logger.NewNoop())
	for i := 0; i < 20; i++ {
		r.Write([]byte("line\n"))
	}
	if n := strings.Count(r.Tail(), "line"); n != tailLines {
		t.Errorf("expected %d tail lines, got %d", tailLines, n)
	}
}
