package ffmpeg

import (
	"bytes"
	"strings"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// StderrRelay forwards ffmpeg's diagnostic output to a logger line by line and
// remembers the latest progress timemark and the last few lines.
type StderrRelay struct {
	logger ports.Logger

	mu       sync.Mutex
	partial  []byte
	timemark string
	tail     []string
}

const tailLines = 8

// NewStderrRelay creates a relay logging through logger.
func NewStderrRelay(logger ports.Logger) *StderrRelay {
	return &StderrRelay{logger: logger}
}

// Write implements io.Writer. Both \n and \r terminate a line since -stats
// rewrites its progress line in place.
func (r *StderrRelay) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial = append(r.partial, p...)
	for {
		i := bytes.IndexAny(r.partial, "\r\n")
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(r.partial[:i]))
		r.partial = r.partial[i+1:]
		if line != "" {
			r.handle(line)
		}
	}
	return len(p), nil
}

func (r *StderrRelay) handle(line string) {
	if tm, ok := ParseTimemark(line); ok {
		r.timemark = tm
		r.logger.Debug("ffmpeg progress: %s", line)
		return
	}

	r.tail = append(r.tail, line)
	if len(r.tail) > tailLines {
		r.tail = r.tail[len(r.tail)-tailLines:]
	}
	if strings.Contains(line, "Error") || strings.Contains(line, "error") || strings.Contains(line, "failed") {
		r.logger.Warn("ffmpeg: %s", line)
		return
	}
	r.logger.Debug("ffmpeg: %s", line)
}

// Timemark returns the latest reported output position (HH:MM:SS.ss), or "" before
// any progress was reported.
func (r *StderrRelay) Timemark() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timemark
}

// Tail returns the last non-progress lines written by ffmpeg.
func (r *StderrRelay) Tail() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.tail, "\n")
}

// ParseTimemark extracts the time= field from an ffmpeg progress line.
func ParseTimemark(line string) (string, bool) {
	_, rest, ok := strings.Cut(line, "time=")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" || rest == "N/A" {
		return "", false
	}
	return rest, true
}
