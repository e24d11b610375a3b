// Package orchestrator wires capture, sequencing and transmission into one stream session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/screenstream/pkg/capture"
	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
	"github.com/user/screenstream/pkg/sequencer"
	"github.com/user/screenstream/pkg/transmitter"
)

// StdoutDestination selects the writer sink bound to the orchestrator's stdout.
const StdoutDestination = "-"

// ErrNoURL is returned when Run is called without a page to capture.
var ErrNoURL = errors.New("orchestrator: url is required")

// Config contains all configuration for the orchestrator.
type Config struct {
	// Input
	URL      string
	Output   string        // file path, rtmp(s):// URL or "-" for stdout
	Duration time.Duration // 0 runs until the context is cancelled
	StreamID string

	// Capture
	Browser           ports.BrowserOptions
	Screencast        ports.ScreencastOptions
	FollowPopups      bool
	KeepaliveInterval time.Duration
	AckTimeout        time.Duration
	BufferCapacity    int

	// Encoding
	Transmit transmitter.Options
}

// Orchestrator runs one capture-and-stream session.
type Orchestrator struct {
	browser  ports.Browser
	launcher ports.ProcessLauncher
	fs       ports.FileSystem
	dumper   ports.FrameDumper
	stdout   io.Writer
	logger   ports.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu        sync.Mutex
	config    Config
	sink      *transmitter.Transmitter
	writer    *sequencer.Writer
	collector *capture.Collector
}

// New creates a new Orchestrator. dumper may be nil.
func New(
	browser ports.Browser,
	launcher ports.ProcessLauncher,
	fs ports.FileSystem,
	dumper ports.FrameDumper,
	stdout io.Writer,
	logger ports.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Orchestrator{
		browser:  browser,
		launcher: launcher,
		fs:       fs,
		dumper:   dumper,
		stdout:   stdout,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run captures config.URL and streams it to config.Output until ctx is cancelled,
// the configured duration elapses or the encoder finishes on its own.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	if config.URL == "" {
		return RunResult{}, ErrNoURL
	}
	started := o.now()

	// ctx only requests the stop; the browser and encoder must outlive it so the
	// output can be finalized.
	session := context.WithoutCancel(ctx)

	// The sink comes first so configuration errors surface before Chrome starts.
	sink, err := o.openSink(session, config)
	if err != nil {
		o.logger.Error("Failed to open output: %s", err)
		return RunResult{}, err
	}

	if err := o.browser.Launch(session, config.Browser); err != nil {
		o.logger.Error("Failed to launch browser: %s", err)
		o.abort(sink)
		return RunResult{}, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := o.browser.Close(); err != nil {
			o.logger.Warn("Failed to close browser: %s", err)
		}
	}()

	o.logger.Info("Navigating to %s", config.URL)
	if err := o.browser.Navigate(config.URL); err != nil {
		o.logger.Error("Failed to navigate: %s", err)
		o.abort(sink)
		return RunResult{}, fmt.Errorf("navigate: %w", err)
	}

	fps := config.Transmit.Video.FPS
	writer, err := sequencer.New(sink, sequencer.Options{FPS: fps, Capacity: config.BufferCapacity}, o.logger, o.metrics)
	if err != nil {
		o.abort(sink)
		return RunResult{}, err
	}

	collector := capture.New(o.browser.Surface(), capture.Options{
		Screencast:        config.Screencast,
		FollowPopups:      config.FollowPopups,
		FPS:               fps,
		KeepaliveInterval: config.KeepaliveInterval,
		AckTimeout:        config.AckTimeout,
		Dumper:            o.dumper,
	}, o.logger, o.metrics)

	o.mu.Lock()
	o.config = config
	o.sink = sink
	o.writer = writer
	o.collector = collector
	o.mu.Unlock()

	if err := collector.Start(session); err != nil {
		o.logger.Error("Failed to start capture: %s", err)
		writer.Stop(sequencer.Seconds(o.now()))
		return RunResult{}, fmt.Errorf("start capture: %w", err)
	}
	o.logger.Info("Streaming to %s", describe(config.Output))

	o.pump(ctx, config.Duration, collector, writer, sink)

	// Frames acked during the stop wait still arrive, so the last frame ends once
	// capture has fully stopped.
	collector.Stop(context.Background())
	for f := range collector.Frames() {
		o.insert(writer, f)
	}
	result := writer.Stop(sequencer.Seconds(o.now()))

	run := RunResult{
		StreamID:        config.StreamID,
		Destination:     describe(config.Output),
		Kind:            sink.Kind().String(),
		FramesEmitted:   writer.Emitted(),
		BytesWritten:    sink.BytesWritten(),
		Duration:        sink.Duration(),
		Retries:         result.Retries,
		ExitCode:        result.ExitCode,
		ForceTerminated: result.ForceTerminated,
		Elapsed:         o.now().Sub(started),
	}
	if !result.OK {
		o.logger.Error("Stream failed: %s", result.Err)
		return run, fmt.Errorf("stream: %w", result.Err)
	}
	if result.ForceTerminated {
		o.logger.Warn("Encoder was terminated")
	}
	o.logger.Info("Stream finished: %d frames in %s", run.FramesEmitted, run.Elapsed.Round(time.Millisecond))
	return run, nil
}

func (o *Orchestrator) pump(ctx context.Context, d time.Duration, c *capture.Collector, w *sequencer.Writer, sink *transmitter.Transmitter) {
	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	frames := c.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			o.insert(w, f)
		case <-deadline:
			return
		case <-ctx.Done():
			return
		case <-sink.Done():
			return
		}
	}
}

func (o *Orchestrator) insert(w *sequencer.Writer, f pipeline.Frame) {
	if err := w.Insert(f); err != nil && !errors.Is(err, sequencer.ErrCompleted) {
		o.logger.Debug("Failed to write frame: %s", err)
	}
}

func (o *Orchestrator) openSink(ctx context.Context, config Config) (*transmitter.Transmitter, error) {
	if config.Output == StdoutDestination {
		if o.stdout == nil {
			return nil, fmt.Errorf("%w: no stdout writer", transmitter.ErrInvalidDestination)
		}
		return transmitter.NewWriter(ctx, o.stdout, config.Transmit, o.launcher, o.logger, o.metrics)
	}

	if pipeline.ClassifyDestination(config.Output) == pipeline.DestinationFile && config.Output != "" {
		if dir := filepath.Dir(config.Output); dir != "." {
			if err := o.fs.MkdirAll(dir); err != nil {
				return nil, fmt.Errorf("create output directory: %w", err)
			}
		}
	}
	return transmitter.New(ctx, config.Output, config.Transmit, o.launcher, o.logger, o.metrics)
}

// abort discards a sink that never received frames.
func (o *Orchestrator) abort(sink *transmitter.Transmitter) {
	_ = sink.Terminate()
	sink.Wait()
}

// Terminate kills the encoder immediately. Run returns once the collector has been
// stopped; the result reports the forced termination.
func (o *Orchestrator) Terminate() {
	o.mu.Lock()
	sink := o.sink
	o.mu.Unlock()
	if sink != nil {
		_ = sink.Terminate()
	}
}

// Status returns a snapshot of the running session.
func (o *Orchestrator) Status() pipeline.StreamStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := pipeline.StreamStatus{
		StreamID:    o.config.StreamID,
		Destination: describe(o.config.Output),
		State:       pipeline.StatusNotStarted.String(),
	}
	if o.sink != nil {
		st.Kind = o.sink.Kind().String()
		st.PID = o.sink.PID()
		st.Alive = o.sink.Alive()
		st.Retries = o.sink.Retries()
		st.ForceTerminated = o.sink.ForceTerminated()
		st.Duration = o.sink.Duration()
	}
	if o.writer != nil {
		st.State = o.writer.Status().String()
		st.FramesEmitted = o.writer.Emitted()
		st.Buffered = o.writer.Buffered()
	}
	if o.collector != nil {
		st.Session = o.collector.Current()
	}
	return st
}

// describe hides the stream key of push targets.
func describe(dest string) string {
	if dest == StdoutDestination {
		return "stdout"
	}
	if pipeline.ClassifyDestination(dest) != pipeline.DestinationPush {
		return dest
	}
	dir := dest
	if i := strings.LastIndex(dest, "/"); i > len("rtmp://") {
		dir = dest[:i]
	}
	return dir + "/***"
}

// RunResult summarizes a finished session.
type RunResult struct {
	StreamID        string
	Destination     string
	Kind            string
	FramesEmitted   int
	BytesWritten    int64
	Duration        string // encoder output position, HH:MM:SS.ss
	Retries         int
	ExitCode        int
	ForceTerminated bool
	Elapsed         time.Duration
}
