// Package pipeline holds the types shared by the capture, sequencing and transmit stages.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Frame is one timestamped still image captured from the render surface.
// A Frame is immutable once emitted.
type Frame struct {
	Data      []byte
	Timestamp float64 // seconds
}

// TimedFrame is a Frame with the display duration derived at flush time.
type TimedFrame struct {
	Frame
	Duration float64 // seconds
}

// WriteStatus tracks the progress of an output session. It only advances.
type WriteStatus int

const (
	StatusNotStarted WriteStatus = iota
	StatusInProgress
	StatusCompleted
)

func (s WriteStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// DestinationKind selects the sink variant.
type DestinationKind int

const (
	DestinationFile DestinationKind = iota
	DestinationWriter
	DestinationPush
)

func (k DestinationKind) String() string {
	switch k {
	case DestinationFile:
		return "file"
	case DestinationWriter:
		return "writer"
	case DestinationPush:
		return "push"
	default:
		return "unknown"
	}
}

// ClassifyDestination reports the sink kind of a destination string.
// Push targets use the rtmp:// or rtmps:// scheme; anything else is a file path.
func ClassifyDestination(dest string) DestinationKind {
	lower := strings.ToLower(dest)
	if strings.HasPrefix(lower, "rtmp://") || strings.HasPrefix(lower, "rtmps://") {
		return DestinationPush
	}
	return DestinationFile
}

// ContainerOf returns the lower-cased extension of a file destination without the dot.
func ContainerOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// StreamStatus is a point-in-time view of a running capture-and-stream session.
type StreamStatus struct {
	StreamID        string `json:"stream_id"`
	Destination     string `json:"destination"`
	Kind            string `json:"kind"`
	State           string `json:"state"`
	PID             int    `json:"pid"`
	Alive           bool   `json:"alive"`
	Retries         int    `json:"retries"`
	ForceTerminated bool   `json:"force_terminated"`
	FramesEmitted   int    `json:"frames_emitted"`
	Buffered        int    `json:"buffered"`
	Duration        string `json:"duration,omitempty"`
	Session         string `json:"session,omitempty"`
}
