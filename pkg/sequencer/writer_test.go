package sequencer

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/user/screenstream/pkg/adapters/logger"
	"github.com/user/screenstream/pkg/mocks"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

func newTestWriter(t *testing.T, sink ports.StreamSink, fps float64) *Writer {
	t.Helper()
	w, err := New(sink, Options{FPS: fps, Capacity: 10}, logger.NewNoop(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w
}

func labeled(ts float64) pipeline.Frame {
	return pipeline.Frame{Data: []byte(strconv.FormatFloat(ts, 'f', -1, 64)), Timestamp: ts}
}

func TestNew_RejectsInvalidFPS(t *testing.T) {
	if _, err := New(&mocks.StreamSink{}, Options{FPS: 0}, logger.NewNoop(), nil); err == nil {
		t.Error("expected error for zero fps")
	}
}

func TestWriter_ConcreteFlushScenario(t *testing.T) {
	sink := &mocks.StreamSink{}
	w := newTestWriter(t, sink, 1) // one output frame per second of input

	for ts := 0; ts < 10; ts++ {
		if err := w.Insert(labeled(float64(ts))); err != nil {
			t.Fatalf("insert %d: %v", ts, err)
		}
	}
	if sink.WriteCount() != 0 {
		t.Fatalf("expected no writes before capacity is exceeded, got %d", sink.WriteCount())
	}

	if err := w.Insert(labeled(10)); err != nil {
		t.Fatalf("insert 10: %v", err)
	}

	got := sink.Sequence()
	want := []string{"0", "1", "2", "3", "4"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if w.Buffered() != 6 {
		t.Errorf("expected 6 buffered frames, got %d", w.Buffered())
	}
}

func TestWriter_OrdersArbitraryArrival(t *testing.T) {
	sink := &mocks.StreamSink{}
	w := newTestWriter(t, sink, 30)

	// Arrival order is shuffled within a window smaller than half the buffer,
	// which is what the reorder buffer is sized for.
	rng := rand.New(rand.NewSource(7))
	var order []int
	for base := 0; base < 200; base += 4 {
		chunk := []int{base, base + 1, base + 2, base + 3}
		rng.Shuffle(len(chunk), func(i, j int) { chunk[i], chunk[j] = chunk[j], chunk[i] })
		order = append(order, chunk...)
	}
	for _, i := range order {
		if err := w.Insert(labeled(float64(i) / 10)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	w.Stop(20.1)

	prev := -1.0
	for _, s := range sink.Sequence() {
		ts, _ := strconv.ParseFloat(s, 64)
		if ts < prev {
			t.Fatalf("frame %v written after %v", ts, prev)
		}
		prev = ts
	}
}

func TestWriter_ConservesDuration(t *testing.T) {
	sink := &mocks.StreamSink{}
	w := newTestWriter(t, sink, 15)

	rng := rand.New(rand.NewSource(3))
	ts := 100.0
	for i := 0; i < 500; i++ {
		if err := w.Insert(labeled(ts)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ts += 0.01 + rng.Float64()*0.2
	}
	start := 100.0
	w.Stop(ts)

	expected := (ts - start) * 15
	if math.Abs(float64(sink.WriteCount())-expected) > 1 {
		t.Errorf("emitted %d frames, expected %.2f±1", sink.WriteCount(), expected)
	}
	acc := w.Accumulator()
	if acc.Gain < 0 || acc.Gain > 1 || acc.Loss < 0 || acc.Loss > 1 {
		t.Errorf("accumulator out of bounds: %+v", acc)
	}
}

func TestWriter_StopIsIdempotent(t *testing.T) {
	waits := 0
	sink := &mocks.StreamSink{
		WaitFunc: func() ports.SinkResult {
			waits++
			return ports.SinkResult{OK: true, ExitCode: waits}
		},
	}
	w := newTestWriter(t, sink, 10)
	w.Insert(labeled(1))
	w.Insert(labeled(1.5))

	first := w.Stop(2)
	writes := sink.WriteCount()
	second := w.Stop(5)

	if first != second {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if sink.WriteCount() != writes {
		t.Errorf("second stop wrote %d extra frames", sink.WriteCount()-writes)
	}
	if sink.CloseInputCalls != 1 || waits != 1 {
		t.Errorf("expected sink closed and awaited once, got %d/%d", sink.CloseInputCalls, waits)
	}
	if w.Status() != pipeline.StatusCompleted {
		t.Errorf("expected completed status, got %s", w.Status())
	}
}

// within fails the test when fn does not return in time.
func within(t *testing.T, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("%s blocked", what)
	}
}

func TestWriter_SnapshotWhileSinkFinalizes(t *testing.T) {
	waiting := make(chan struct{})
	release := make(chan struct{})
	sink := &mocks.StreamSink{
		WaitFunc: func() ports.SinkResult {
			close(waiting)
			<-release
			return ports.SinkResult{OK: true, ExitCode: 7}
		},
	}
	w := newTestWriter(t, sink, 10)
	w.Insert(labeled(1))

	stopped := make(chan ports.SinkResult, 2)
	go func() { stopped <- w.Stop(2) }()
	<-waiting

	within(t, "snapshot during finalization", func() {
		if w.Status() != pipeline.StatusCompleted || w.Emitted() != 10 || w.Buffered() != 0 {
			t.Errorf("unexpected snapshot: %s, %d emitted, %d buffered", w.Status(), w.Emitted(), w.Buffered())
		}
	})

	go func() { stopped <- w.Stop(5) }()
	close(release)
	for range 2 {
		if r := <-stopped; r.ExitCode != 7 {
			t.Errorf("expected the sink result from both calls, got %+v", r)
		}
	}
}

func TestWriter_SnapshotWhileSinkBlocksWrite(t *testing.T) {
	writing := make(chan struct{})
	release := make(chan struct{})
	var once bool
	sink := &mocks.StreamSink{
		WriteFunc: func(p []byte) (int, error) {
			if !once {
				once = true
				close(writing)
				<-release
			}
			return len(p), nil
		},
	}
	w := newTestWriter(t, sink, 10)

	written := make(chan error, 1)
	go func() { written <- w.Write([]byte("x"), 0.3) }()
	<-writing

	within(t, "snapshot during a blocked write", func() {
		if w.Status() != pipeline.StatusInProgress || w.Emitted() != 0 {
			t.Errorf("unexpected snapshot: %s, %d emitted", w.Status(), w.Emitted())
		}
	})

	close(release)
	if err := <-written; err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.Emitted() != 3 {
		t.Errorf("expected 3 frames emitted, got %d", w.Emitted())
	}
}

func TestWriter_StatusAdvances(t *testing.T) {
	w := newTestWriter(t, &mocks.StreamSink{}, 10)
	if w.Status() != pipeline.StatusNotStarted {
		t.Fatalf("expected not_started, got %s", w.Status())
	}
	if err := w.Write([]byte("x"), 0.1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.Status() != pipeline.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", w.Status())
	}
	w.Stop(0)
	if w.Status() != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s", w.Status())
	}
}

func TestWriter_RejectsAfterStop(t *testing.T) {
	w := newTestWriter(t, &mocks.StreamSink{}, 10)
	w.Stop(0)

	if err := w.Insert(labeled(1)); !errors.Is(err, ErrCompleted) {
		t.Errorf("expected ErrCompleted from Insert, got %v", err)
	}
	if err := w.Write([]byte("x"), 1); !errors.Is(err, ErrCompleted) {
		t.Errorf("expected ErrCompleted from Write, got %v", err)
	}
}

func TestWriter_PropagatesSinkErrors(t *testing.T) {
	sinkErr := errors.New("broken pipe")
	sink := &mocks.StreamSink{
		WriteFunc: func(p []byte) (int, error) { return 0, sinkErr },
	}
	w := newTestWriter(t, sink, 10)

	if err := w.Write([]byte("x"), 0.5); !errors.Is(err, sinkErr) {
		t.Errorf("expected sink error, got %v", err)
	}
}
