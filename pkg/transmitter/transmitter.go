// Package transmitter feeds a constant-rate image stream into an ffmpeg subprocess
// writing to a file, an io.Writer or a live push target.
package transmitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/screenstream/pkg/adapters/ffmpeg"
	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

var (
	// ErrInvalidDestination is returned for an empty destination or a nil writer.
	ErrInvalidDestination = errors.New("transmitter: invalid destination")

	// ErrUnsupportedFormat is returned for file destinations with an unsupported extension.
	ErrUnsupportedFormat = errors.New("transmitter: unsupported output format")

	// ErrInputClosed is returned by Write after CloseInput.
	ErrInputClosed = errors.New("transmitter: input closed")
)

// DefaultRetryBackoff is the pause before a push encoder is respawned.
const DefaultRetryBackoff = 2 * time.Second

var retryableExitCodes = []int{1, 255, -1}

// IsRetryable reports whether a push encoder exiting with code may be respawned.
func IsRetryable(code int) bool {
	return slices.Contains(retryableExitCodes, code)
}

// findFFmpeg is replaced in tests.
var findFFmpeg = ffmpeg.FindFFmpeg

// Options configures a Transmitter.
type Options struct {
	FFmpegPath   string
	Video        ffmpeg.VideoOptions
	MaxRetries   int           // push only, 0 disables respawning
	RetryBackoff time.Duration // default 2s
}

// Transmitter is a ports.StreamSink backed by an ffmpeg subprocess.
type Transmitter struct {
	ctx      context.Context
	kind     pipeline.DestinationKind
	target   string
	path     string
	args     []string
	out      io.Writer
	opts     Options
	launcher ports.ProcessLauncher
	relay    *ffmpeg.StderrRelay
	logger   ports.Logger
	metrics  *metrics.Metrics

	mu          sync.Mutex
	proc        ports.EncoderProcess
	inputClosed bool
	retries     int

	forceTerminated atomic.Bool
	written         atomic.Int64
	interrupt       chan struct{}
	interruptOnce   sync.Once

	done       chan struct{}
	finishOnce sync.Once
	result     ports.SinkResult
}

// New starts an encoder writing to dest, which is either an rtmp(s):// push target
// or a file path ending in a supported container extension. Configuration errors
// are reported before any process is spawned.
func New(ctx context.Context, dest string, opts Options, launcher ports.ProcessLauncher, logger ports.Logger, m *metrics.Metrics) (*Transmitter, error) {
	if strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("%w: empty destination", ErrInvalidDestination)
	}
	if err := validate(opts); err != nil {
		return nil, err
	}

	kind := pipeline.ClassifyDestination(dest)
	var args []string
	switch kind {
	case pipeline.DestinationPush:
		args = ffmpeg.PushArgs(opts.Video, dest)
	default:
		container := pipeline.ContainerOf(dest)
		if !ffmpeg.IsSupportedContainer(container) {
			return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, container,
				strings.Join(ffmpeg.SupportedContainers, ", "))
		}
		var err error
		if args, err = ffmpeg.FileArgs(opts.Video, dest, container); err != nil {
			return nil, fmt.Errorf("transmitter: %w", err)
		}
	}

	return start(ctx, kind, dest, args, nil, opts, launcher, logger, m)
}

// NewWriter starts an encoder streaming fragmented video into w. When the encoder
// finishes, w is closed if it implements io.Closer.
func NewWriter(ctx context.Context, w io.Writer, opts Options, launcher ports.ProcessLauncher, logger ports.Logger, m *metrics.Metrics) (*Transmitter, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil writer", ErrInvalidDestination)
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	return start(ctx, pipeline.DestinationWriter, "writer", ffmpeg.WriterArgs(opts.Video), w, opts, launcher, logger, m)
}

func validate(opts Options) error {
	if opts.Video.FPS <= 0 {
		return fmt.Errorf("transmitter: fps must be positive, got %v", opts.Video.FPS)
	}
	if opts.MaxRetries < 0 {
		return fmt.Errorf("transmitter: max retries must not be negative, got %d", opts.MaxRetries)
	}
	return nil
}

func start(ctx context.Context, kind pipeline.DestinationKind, target string, args []string, out io.Writer,
	opts Options, launcher ports.ProcessLauncher, logger ports.Logger, m *metrics.Metrics) (*Transmitter, error) {
	path, err := findFFmpeg(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("transmitter: %w", err)
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}

	log := logger.WithComponent("transmitter")
	t := &Transmitter{
		ctx:       ctx,
		kind:      kind,
		target:    target,
		path:      path,
		args:      args,
		out:       out,
		opts:      opts,
		launcher:  launcher,
		relay:     ffmpeg.NewStderrRelay(log),
		logger:    log,
		metrics:   m,
		interrupt: make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := t.spawn(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transmitter) spawn() error {
	proc, err := t.launcher.Launch(t.ctx, ports.ProcessSpec{
		Path:   t.path,
		Args:   t.args,
		Stdout: t.out,
		Stderr: t.relay,
	})
	if err != nil {
		return fmt.Errorf("transmitter: start encoder: %w", err)
	}

	t.mu.Lock()
	t.proc = proc
	closed := t.inputClosed
	t.mu.Unlock()

	t.metrics.EncoderStarts.Inc()
	t.metrics.EncoderAlive.Set(1)
	t.logger.Debug("Encoder started (pid %d) for %s %s", proc.PID(), t.kind, t.target)

	// CloseInput or a forced termination may have raced with the respawn.
	if t.forceTerminated.Load() {
		_ = proc.Kill()
	} else if closed {
		_ = proc.Stdin().Close()
	}

	go t.supervise(proc)
	return nil
}

func (t *Transmitter) supervise(proc ports.EncoderProcess) {
	code, waitErr := proc.Wait()

	t.mu.Lock()
	if t.proc == proc {
		t.proc = nil
	}
	inputClosed := t.inputClosed
	retries := t.retries
	t.mu.Unlock()
	t.metrics.EncoderAlive.Set(0)

	switch {
	case t.forceTerminated.Load():
		t.metrics.EncoderExits.WithLabelValues(metrics.ExitForced).Inc()
		t.finish(ports.SinkResult{OK: true, ExitCode: code, Retries: retries, ForceTerminated: true})

	case code == 0 && waitErr == nil:
		t.metrics.EncoderExits.WithLabelValues(metrics.ExitClean).Inc()
		t.finish(ports.SinkResult{OK: true, Retries: retries})

	case t.kind == pipeline.DestinationPush && IsRetryable(code) && !inputClosed && retries < t.opts.MaxRetries:
		t.metrics.EncoderExits.WithLabelValues(metrics.ExitRetryable).Inc()
		t.retry(code)

	default:
		t.metrics.EncoderExits.WithLabelValues(metrics.ExitTerminal).Inc()
		t.finish(ports.SinkResult{OK: false, ExitCode: code, Retries: retries, Err: t.exitError(code, waitErr)})
	}
}

func (t *Transmitter) retry(code int) {
	t.mu.Lock()
	t.retries++
	attempt := t.retries
	t.mu.Unlock()

	t.logger.Warn("Encoder exited with code %d, reconnecting in %s (%d/%d)", code, t.opts.RetryBackoff, attempt, t.opts.MaxRetries)

	timer := time.NewTimer(t.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-t.interrupt:
	case <-t.ctx.Done():
	}

	// The flag may have been set while waiting.
	if t.forceTerminated.Load() {
		t.finish(ports.SinkResult{OK: true, ExitCode: code, Retries: attempt, ForceTerminated: true})
		return
	}
	t.mu.Lock()
	closed := t.inputClosed
	t.mu.Unlock()
	if closed || t.ctx.Err() != nil {
		t.finish(ports.SinkResult{OK: false, ExitCode: code, Retries: attempt,
			Err: fmt.Errorf("transmitter: stopped while reconnecting after exit code %d", code)})
		return
	}

	t.metrics.EncoderRestarts.Inc()
	if err := t.spawn(); err != nil {
		t.logger.Error("Failed to restart encoder: %s", err)
		t.finish(ports.SinkResult{OK: false, ExitCode: code, Retries: attempt, Err: err})
	}
}

func (t *Transmitter) exitError(code int, waitErr error) error {
	if waitErr != nil {
		return fmt.Errorf("transmitter: encoder wait: %w", waitErr)
	}
	if tail := t.relay.Tail(); tail != "" {
		return fmt.Errorf("transmitter: encoder exited with code %d: %s", code, tail)
	}
	return fmt.Errorf("transmitter: encoder exited with code %d", code)
}

func (t *Transmitter) finish(r ports.SinkResult) {
	t.finishOnce.Do(func() {
		if t.kind == pipeline.DestinationWriter {
			if c, ok := t.out.(io.Closer); ok {
				if err := c.Close(); err != nil {
					t.logger.Debug("Closing output writer: %s", err)
				}
			}
		}
		if r.OK {
			t.logger.Debug("Encoder finished for %s (retries %d, forced %t)", t.target, r.Retries, r.ForceTerminated)
		} else {
			t.logger.Error("Encoder failed for %s: %s", t.target, r.Err)
		}
		t.result = r
		close(t.done)
	})
}

// Write passes one encoded image to the encoder. Images written while a push
// encoder is reconnecting, or after a forced termination, are discarded.
func (t *Transmitter) Write(p []byte) (int, error) {
	if t.forceTerminated.Load() {
		t.metrics.FramesDropped.WithLabelValues(metrics.DropTerminated).Inc()
		return len(p), nil
	}

	t.mu.Lock()
	if t.inputClosed {
		t.mu.Unlock()
		return 0, ErrInputClosed
	}
	proc := t.proc
	t.mu.Unlock()

	if proc == nil {
		t.metrics.FramesDropped.WithLabelValues(metrics.DropReconnecting).Inc()
		return len(p), nil
	}

	n, err := proc.Stdin().Write(p)
	t.written.Add(int64(n))
	t.metrics.BytesWritten.Add(float64(n))
	if err != nil {
		switch {
		case t.forceTerminated.Load():
			t.metrics.FramesDropped.WithLabelValues(metrics.DropTerminated).Inc()
			return len(p), nil
		case t.kind == pipeline.DestinationPush:
			// The supervisor decides whether to reconnect once the process is reaped.
			t.metrics.FramesDropped.WithLabelValues(metrics.DropReconnecting).Inc()
			t.logger.Debug("Encoder input unavailable: %s", err)
			return len(p), nil
		}
		return n, fmt.Errorf("transmitter: write encoder input: %w", err)
	}
	return n, nil
}

// CloseInput signals end of input so the encoder can finalize its output.
func (t *Transmitter) CloseInput() error {
	t.mu.Lock()
	if t.inputClosed {
		t.mu.Unlock()
		return nil
	}
	t.inputClosed = true
	proc := t.proc
	t.mu.Unlock()

	t.interruptOnce.Do(func() { close(t.interrupt) })
	if proc == nil {
		return nil
	}
	if err := proc.Stdin().Close(); err != nil {
		return fmt.Errorf("transmitter: close encoder input: %w", err)
	}
	return nil
}

// Wait blocks until the encoder has finished for good and returns the outcome.
func (t *Transmitter) Wait() ports.SinkResult {
	<-t.done
	return t.result
}

// Done is closed once the outcome is known.
func (t *Transmitter) Done() <-chan struct{} {
	return t.done
}

func (t *Transmitter) markForceTerminated() {
	if t.forceTerminated.Swap(true) {
		return
	}
	t.interruptOnce.Do(func() { close(t.interrupt) })
}

// Terminate marks the encoder force-terminated and kills the running process.
// It is the only way to end the encoder early; no respawn happens afterwards, even
// when the exit arrives with a retryable code.
func (t *Transmitter) Terminate() error {
	t.markForceTerminated()

	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()
	if proc == nil {
		return nil
	}
	t.logger.Debug("Killing encoder (pid %d)", proc.PID())
	return proc.Kill()
}

// ForceTerminated reports whether the encoder was marked force-terminated.
func (t *Transmitter) ForceTerminated() bool {
	return t.forceTerminated.Load()
}

// PID returns the process id of the running encoder, or 0 between attempts and after exit.
func (t *Transmitter) PID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proc == nil {
		return 0
	}
	return t.proc.PID()
}

// Alive reports whether an encoder process is currently running.
func (t *Transmitter) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc != nil
}

// Retries returns how many times the encoder was respawned.
func (t *Transmitter) Retries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retries
}

// Duration returns the latest output position reported by the encoder (HH:MM:SS.ss).
func (t *Transmitter) Duration() string {
	return t.relay.Timemark()
}

// BytesWritten returns the number of image bytes delivered to encoder input.
func (t *Transmitter) BytesWritten() int64 {
	return t.written.Load()
}

// Kind returns the destination kind.
func (t *Transmitter) Kind() pipeline.DestinationKind {
	return t.kind
}

var _ ports.StreamSink = (*Transmitter)(nil)
