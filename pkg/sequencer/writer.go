package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

// ErrCompleted is returned when frames are inserted after Stop.
var ErrCompleted = errors.New("sequencer: output session completed")

// Options configures a Writer.
type Options struct {
	FPS      float64 // output frame rate
	Capacity int     // reorder buffer capacity (default 10)
}

// Writer reorders frames, converts their durations into whole output frames and writes
// them into a sink.
//
// mu serializes the buffer, the accumulator and sink writes, and may be held while the
// sink applies backpressure. Status, Emitted and Buffered read atomics and never wait
// on it.
type Writer struct {
	mu       sync.Mutex
	fps      float64
	sink     ports.StreamSink
	buf      *ReorderBuffer
	acc      Accumulator
	stopping bool

	status   atomic.Int32
	emitted  atomic.Int64
	buffered atomic.Int32

	done   chan struct{}
	result ports.SinkResult

	logger  ports.Logger
	metrics *metrics.Metrics
}

// New creates a Writer feeding sink.
func New(sink ports.StreamSink, opts Options, logger ports.Logger, m *metrics.Metrics) (*Writer, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("sequencer: fps must be positive, got %v", opts.FPS)
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Writer{
		fps:     opts.FPS,
		sink:    sink,
		buf:     NewReorderBuffer(opts.Capacity),
		done:    make(chan struct{}),
		logger:  logger.WithComponent("sequencer"),
		metrics: m,
	}, nil
}

// Insert places f in the reorder buffer, flushing the oldest half to the sink when the
// buffer is full.
func (w *Writer) Insert(f pipeline.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopping {
		return ErrCompleted
	}

	flushed, ok := w.buf.Insert(f)
	if !ok {
		w.metrics.FramesDropped.WithLabelValues(metrics.DropLate).Inc()
		w.logger.Debug("Dropping late frame at %.3f", f.Timestamp)
	}
	w.setBuffered()
	return w.writeAll(flushed)
}

// Write emits data as many times as durationSeconds spans at the output frame rate.
func (w *Writer) Write(data []byte, durationSeconds float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopping {
		return ErrCompleted
	}
	return w.write(data, durationSeconds)
}

func (w *Writer) writeAll(frames []pipeline.TimedFrame) error {
	var errs []error
	for _, f := range frames {
		if err := w.write(f.Data, f.Duration); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) write(data []byte, durationSeconds float64) error {
	w.status.CompareAndSwap(int32(pipeline.StatusNotStarted), int32(pipeline.StatusInProgress))

	var count int
	count, w.acc = Dither(w.acc, durationSeconds, w.fps)
	w.metrics.FrameRepeats.Observe(float64(count))

	for i := 0; i < count; i++ {
		if _, err := w.sink.Write(data); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		w.emitted.Add(1)
		w.metrics.FramesEmitted.Inc()
	}
	return nil
}

// Stop flushes every buffered frame, ending the last one at stopTime (seconds), closes
// the sink input and waits for the sink to finish. Once completed, further calls return
// the cached result without touching the sink; concurrent calls wait for the first.
func (w *Writer) Stop(stopTime float64) ports.SinkResult {
	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		<-w.done
		return w.result
	}
	w.stopping = true

	if err := w.writeAll(w.buf.Drain(stopTime)); err != nil {
		w.logger.Warn("Failed to flush remaining frames: %s", err)
	}
	w.setBuffered()

	if err := w.sink.CloseInput(); err != nil {
		w.logger.Debug("Closing sink input: %s", err)
	}
	w.status.Store(int32(pipeline.StatusCompleted))
	w.mu.Unlock()

	w.result = w.sink.Wait()
	close(w.done)
	w.logger.Debug("Output session completed: %d frames emitted", w.Emitted())
	return w.result
}

func (w *Writer) setBuffered() {
	n := w.buf.Len()
	w.buffered.Store(int32(n))
	w.metrics.BufferDepth.Set(float64(n))
}

// StopNow stops using the current wall clock as the end of the last frame.
func (w *Writer) StopNow() ports.SinkResult {
	return w.Stop(Seconds(time.Now()))
}

// Status returns the current write status.
func (w *Writer) Status() pipeline.WriteStatus {
	return pipeline.WriteStatus(w.status.Load())
}

// Accumulator returns the current error-diffusion state.
func (w *Writer) Accumulator() Accumulator {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acc
}

// Emitted returns the number of output frames written so far.
func (w *Writer) Emitted() int {
	return int(w.emitted.Load())
}

// Buffered returns the number of frames held in the reorder buffer.
func (w *Writer) Buffered() int {
	return int(w.buffered.Load())
}

// Seconds converts t to the floating point epoch seconds used for frame timestamps.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
