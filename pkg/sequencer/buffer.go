package sequencer

import "github.com/user/screenstream/pkg/pipeline"

// DefaultCapacity is the reorder buffer size used when none is configured.
const DefaultCapacity = 10

// ReorderBuffer keeps not-yet-flushed frames sorted by timestamp.
// It is not safe for concurrent use.
type ReorderBuffer struct {
	capacity  int
	frames    []pipeline.Frame
	watermark float64 // end of the last flushed chunk
	flushed   bool
}

// NewReorderBuffer creates a buffer holding at most capacity frames.
func NewReorderBuffer(capacity int) *ReorderBuffer {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &ReorderBuffer{
		capacity: capacity,
		frames:   make([]pipeline.Frame, 0, capacity),
	}
}

// Len returns the number of buffered frames.
func (b *ReorderBuffer) Len() int {
	return len(b.frames)
}

// Capacity returns the configured capacity.
func (b *ReorderBuffer) Capacity() int {
	return b.capacity
}

// Late reports whether a frame with timestamp ts would land before already flushed output.
func (b *ReorderBuffer) Late(ts float64) bool {
	return b.flushed && ts < b.watermark
}

// Insert adds f in timestamp order. When the buffer is full, the oldest half is removed
// first and returned as timed frames whose last duration ends at the first frame still
// buffered. Late frames are rejected with ok == false.
func (b *ReorderBuffer) Insert(f pipeline.Frame) (flushed []pipeline.TimedFrame, ok bool) {
	if b.Late(f.Timestamp) {
		return nil, false
	}
	if len(b.frames) == b.capacity {
		half := b.capacity / 2
		head := make([]pipeline.Frame, half)
		copy(head, b.frames[:half])
		b.frames = append(b.frames[:0], b.frames[half:]...)
		flushed = Trim(head, b.frames[0].Timestamp)
		b.watermark = b.frames[0].Timestamp
		b.flushed = true
		if f.Timestamp < b.watermark {
			// f belonged in the flushed half; emitting it now would break ordering.
			return flushed, false
		}
	}

	i := b.slot(f.Timestamp)
	b.frames = append(b.frames, pipeline.Frame{})
	copy(b.frames[i+1:], b.frames[i:])
	b.frames[i] = f
	return flushed, true
}

// Drain removes every buffered frame, ending the last one at endTime.
func (b *ReorderBuffer) Drain(endTime float64) []pipeline.TimedFrame {
	if len(b.frames) == 0 {
		return nil
	}
	out := Trim(b.frames, endTime)
	b.watermark = endTime
	b.flushed = true
	b.frames = b.frames[:0]
	return out
}

// slot scans from the tail since frames mostly arrive in order.
// Equal timestamps keep arrival order.
func (b *ReorderBuffer) slot(ts float64) int {
	i := len(b.frames) - 1
	for ; i >= 0; i-- {
		if b.frames[i].Timestamp <= ts {
			break
		}
	}
	return i + 1
}

// Trim derives each frame's duration from the next frame's timestamp; the last frame
// ends at chunkEnd. A chunk end before the last frame yields a zero duration.
func Trim(frames []pipeline.Frame, chunkEnd float64) []pipeline.TimedFrame {
	out := make([]pipeline.TimedFrame, len(frames))
	for i, f := range frames {
		end := chunkEnd
		if i < len(frames)-1 {
			end = frames[i+1].Timestamp
		}
		out[i] = pipeline.TimedFrame{Frame: f, Duration: max(end-f.Timestamp, 0)}
	}
	return out
}
