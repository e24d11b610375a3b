package ffmpeg

import "errors"

var (
	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("ffmpeg: binary not found")

	// ErrUnsupportedContainer is returned for file outputs whose extension is not allowed.
	ErrUnsupportedContainer = errors.New("ffmpeg: unsupported container")

	// ErrNoStdin is returned when a process was started without an input pipe.
	ErrNoStdin = errors.New("ffmpeg: process has no stdin")
)
