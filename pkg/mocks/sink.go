package mocks

import (
	"bytes"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// StreamSink is a mock implementation of ports.StreamSink.
// It records every write so tests can inspect the emitted frame sequence.
type StreamSink struct {
	mu sync.Mutex

	WriteFunc      func(p []byte) (int, error)
	CloseInputFunc func() error
	WaitFunc       func() ports.SinkResult

	Writes          [][]byte
	CloseInputCalls int
	WaitCalls       int
}

func (m *StreamSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.Writes = append(m.Writes, bytes.Clone(p))
	m.mu.Unlock()
	if m.WriteFunc != nil {
		return m.WriteFunc(p)
	}
	return len(p), nil
}

func (m *StreamSink) CloseInput() error {
	m.mu.Lock()
	m.CloseInputCalls++
	m.mu.Unlock()
	if m.CloseInputFunc != nil {
		return m.CloseInputFunc()
	}
	return nil
}

func (m *StreamSink) Wait() ports.SinkResult {
	m.mu.Lock()
	m.WaitCalls++
	m.mu.Unlock()
	if m.WaitFunc != nil {
		return m.WaitFunc()
	}
	return ports.SinkResult{OK: true}
}

// WriteCount returns the number of recorded writes.
func (m *StreamSink) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

// Sequence returns the recorded writes as strings.
func (m *StreamSink) Sequence() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Writes))
	for i, w := range m.Writes {
		out[i] = string(w)
	}
	return out
}

var _ ports.StreamSink = (*StreamSink)(nil)

// FrameDumper is a mock implementation of ports.FrameDumper.
type FrameDumper struct {
	mu      sync.Mutex
	enabled bool

	Frames map[int][]byte
}

// NewFrameDumper creates a new mock FrameDumper.
func NewFrameDumper(enabled bool) *FrameDumper {
	return &FrameDumper{enabled: enabled, Frames: make(map[int][]byte)}
}

func (m *FrameDumper) Enabled() bool {
	return m.enabled
}

func (m *FrameDumper) SaveFrame(index int, timestamp float64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[index] = data
	return nil
}

var _ ports.FrameDumper = (*FrameDumper)(nil)
