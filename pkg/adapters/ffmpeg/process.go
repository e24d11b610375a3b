package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// Launcher starts ffmpeg as a child process.
type Launcher struct{}

// NewLauncher creates a Launcher.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// Launch starts the process described by spec with a pipe on stdin.
// The process is not bound to ctx; callers stop it with Kill or by closing stdin.
func (l *Launcher) Launch(ctx context.Context, spec ports.ProcessSpec) (ports.EncoderProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &process{cmd: cmd, stdin: stdin}, nil
}

var _ ports.ProcessLauncher = (*Launcher)(nil)

type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	once sync.Once
	code int
	err  error
}

func (p *process) Stdin() io.WriteCloser { return p.stdin }

func (p *process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait reaps the process once; later calls return the same outcome.
func (p *process) Wait() (int, error) {
	p.once.Do(func() {
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.code = 0
		case errors.As(err, &exitErr):
			// ExitCode is -1 when the process was terminated by a signal.
			p.code = exitErr.ExitCode()
		default:
			p.code = -1
			p.err = err
		}
	})
	return p.code, p.err
}

func (p *process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
