// Package framedump saves captured frames to disk for debugging.
package framedump

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// Dumper writes every captured frame below baseDir/frames.
type Dumper struct {
	baseDir string
	ext     string
	fs      ports.FileSystem

	once   sync.Once
	dirErr error
}

// New creates a Dumper for frames encoded as format ("jpeg" or "png"). An empty
// baseDir disables dumping.
func New(baseDir, format string, fs ports.FileSystem) *Dumper {
	ext := "jpg"
	if strings.EqualFold(format, "png") {
		ext = "png"
	}
	return &Dumper{baseDir: baseDir, ext: ext, fs: fs}
}

// Enabled reports whether a dump directory is configured.
func (d *Dumper) Enabled() bool {
	return d.baseDir != ""
}

// Dir returns the directory frames are written to.
func (d *Dumper) Dir() string {
	return filepath.Join(d.baseDir, "frames")
}

// SaveFrame writes data as frame-<index>-<timestamp>.<ext>. The timestamp in
// milliseconds keeps file names sortable by capture time.
func (d *Dumper) SaveFrame(index int, timestamp float64, data []byte) error {
	if !d.Enabled() {
		return nil
	}
	d.once.Do(func() {
		d.dirErr = d.fs.MkdirAll(d.Dir())
	})
	if d.dirErr != nil {
		return fmt.Errorf("create dump dir: %w", d.dirErr)
	}

	name := fmt.Sprintf("frame-%06d-%d.%s", index, int64(timestamp*1000), d.ext)
	return d.fs.WriteFile(filepath.Join(d.Dir(), name), data)
}

var _ ports.FrameDumper = (*Dumper)(nil)
