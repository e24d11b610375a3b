// Package metrics exposes Prometheus collectors for the capture-and-stream pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label of FramesDropped.
const (
	DropOverflow     = "overflow"     // capture channel full
	DropLate         = "late"         // arrived after its slot was flushed
	DropReconnecting = "reconnecting" // push encoder between attempts
	DropTerminated   = "terminated"   // encoder force-terminated
)

// Exit classifications used as the "kind" label of EncoderExits.
const (
	ExitClean     = "clean"
	ExitForced    = "forced"
	ExitRetryable = "retryable"
	ExitTerminal  = "terminal"
)

// Metrics holds all Prometheus metrics of one stream.
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	AckFailures    prometheus.Counter
	Nudges         *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	// Sequencer metrics
	FramesDropped *prometheus.CounterVec
	FramesEmitted prometheus.Counter
	BufferDepth   prometheus.Gauge
	FrameRepeats  prometheus.Histogram

	// Encoder metrics
	EncoderStarts   prometheus.Counter
	EncoderRestarts prometheus.Counter
	EncoderExits    *prometheus.CounterVec
	EncoderAlive    prometheus.Gauge
	BytesWritten    prometheus.Counter
}

// New creates all metrics for streamID and registers them with reg.
func New(reg prometheus.Registerer, streamID string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"stream_id": streamID}

	return &Metrics{
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_frames_captured_total",
			Help:        "Screencast frames received from the render surface",
			ConstLabels: labels,
		}),
		AckFailures: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_frame_ack_failures_total",
			Help:        "Screencast frame acknowledgements that failed",
			ConstLabels: labels,
		}),
		Nudges: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "screenstream_keepalive_nudges_total",
			Help:        "Keepalive mutations applied to the render surface",
			ConstLabels: labels,
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name:        "screenstream_capture_sessions",
			Help:        "Capture sessions currently on the session stack",
			ConstLabels: labels,
		}),

		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "screenstream_frames_dropped_total",
			Help:        "Frames dropped before reaching the encoder",
			ConstLabels: labels,
		}, []string{"reason"}),
		FramesEmitted: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_frames_emitted_total",
			Help:        "Fixed-cadence output frames written to the sink",
			ConstLabels: labels,
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Name:        "screenstream_reorder_buffer_depth",
			Help:        "Frames held in the reorder buffer",
			ConstLabels: labels,
		}),
		FrameRepeats: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "screenstream_frame_repeats",
			Help:        "Number of times each captured frame was emitted",
			Buckets:     []float64{0, 1, 2, 4, 8, 16, 32, 64},
			ConstLabels: labels,
		}),

		EncoderStarts: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_encoder_starts_total",
			Help:        "Encoder subprocesses spawned",
			ConstLabels: labels,
		}),
		EncoderRestarts: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_encoder_restarts_total",
			Help:        "Encoder subprocesses respawned after a retryable exit",
			ConstLabels: labels,
		}),
		EncoderExits: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "screenstream_encoder_exits_total",
			Help:        "Encoder subprocess exits by classification",
			ConstLabels: labels,
		}, []string{"kind"}),
		EncoderAlive: f.NewGauge(prometheus.GaugeOpts{
			Name:        "screenstream_encoder_alive",
			Help:        "1 while an encoder subprocess is running",
			ConstLabels: labels,
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name:        "screenstream_encoder_bytes_written_total",
			Help:        "Bytes written into the encoder input pipe",
			ConstLabels: labels,
		}),
	}
}

// NewUnregistered creates metrics that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry(), "")
}
