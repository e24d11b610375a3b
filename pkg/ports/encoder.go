package ports

import (
	"context"
	"io"
)

// EncoderProcess is a running external encoder.
type EncoderProcess interface {
	// Stdin is the input pipe of the process.
	Stdin() io.WriteCloser

	// PID returns the operating system process id.
	PID() int

	// Wait blocks until the process exits and returns its exit code.
	// A process killed by a signal reports -1.
	Wait() (exitCode int, err error)

	// Kill sends a hard kill to the process.
	Kill() error
}

// ProcessSpec describes an encoder invocation.
type ProcessSpec struct {
	Path   string
	Args   []string
	Stdout io.Writer // nil discards
	Stderr io.Writer // nil discards
}

// ProcessLauncher starts encoder processes.
type ProcessLauncher interface {
	Launch(ctx context.Context, spec ProcessSpec) (EncoderProcess, error)
}

// StreamSink consumes a fixed-cadence image byte stream.
type StreamSink interface {
	io.Writer

	// CloseInput signals end of input.
	CloseInput() error

	// Wait blocks until the sink has finished and returns whether it succeeded.
	Wait() SinkResult
}

// SinkResult reports how a sink finished.
type SinkResult struct {
	OK              bool
	ExitCode        int
	Retries         int
	ForceTerminated bool
	Err             error
}
