package mocks

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// Process is a mock implementation of ports.EncoderProcess.
// Exit makes a pending Wait return; Kill exits with -1 unless already exited.
type Process struct {
	mu       sync.Mutex
	pid      int
	stdin    *PipeRecorder
	exited   chan struct{}
	exitCode int
	killed   bool
}

// NewProcess creates a running mock process.
func NewProcess(pid int) *Process {
	return &Process{
		pid:    pid,
		stdin:  &PipeRecorder{},
		exited: make(chan struct{}),
	}
}

func (p *Process) Stdin() io.WriteCloser { return p.stdin }

func (p *Process) PID() int { return p.pid }

func (p *Process) Wait() (int, error) {
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(-1)
	return nil
}

// Exit terminates the process with code. Only the first call has an effect.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exited:
		return
	default:
	}
	p.exitCode = code
	close(p.exited)
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Input returns everything written to stdin.
func (p *Process) Input() []byte { return p.stdin.Bytes() }

// InputClosed reports whether stdin was closed.
func (p *Process) InputClosed() bool { return p.stdin.Closed() }

var _ ports.EncoderProcess = (*Process)(nil)

// PipeRecorder is an in-memory stdin.
type PipeRecorder struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

func (r *PipeRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *PipeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *PipeRecorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf...)
}

func (r *PipeRecorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Launcher is a mock implementation of ports.ProcessLauncher.
// Each Launch hands out a new Process and records the spec.
type Launcher struct {
	mu sync.Mutex

	LaunchFunc func(ctx context.Context, spec ports.ProcessSpec) (ports.EncoderProcess, error)

	Specs     []ports.ProcessSpec
	Processes []*Process
	launched  chan *Process
}

// NewLauncher creates a Launcher whose processes are announced on Launched.
func NewLauncher() *Launcher {
	return &Launcher{launched: make(chan *Process, 16)}
}

func (l *Launcher) Launch(ctx context.Context, spec ports.ProcessSpec) (ports.EncoderProcess, error) {
	l.mu.Lock()
	l.Specs = append(l.Specs, spec)
	l.mu.Unlock()
	if l.LaunchFunc != nil {
		return l.LaunchFunc(ctx, spec)
	}

	l.mu.Lock()
	p := NewProcess(1000 + len(l.Processes))
	l.Processes = append(l.Processes, p)
	l.mu.Unlock()

	if l.launched != nil {
		select {
		case l.launched <- p:
		default:
		}
	}
	return p, nil
}

// Launched returns the channel announcing every launched process.
func (l *Launcher) Launched() <-chan *Process { return l.launched }

// Count returns how many processes were launched.
func (l *Launcher) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Specs)
}

// ErrLaunch is a canned launch failure.
var ErrLaunch = errors.New("mock: launch failed")

var _ ports.ProcessLauncher = (*Launcher)(nil)
