// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/screenstream/pkg/ports"
)

// Browser is a mock implementation of ports.Browser.
type Browser struct {
	LaunchFunc   func(ctx context.Context, opts ports.BrowserOptions) error
	NavigateFunc func(url string) error
	CloseFunc    func() error

	Primary      *Surface
	LaunchCalled bool
	NavigatedTo  []string
	Closed       bool
}

func (m *Browser) Launch(ctx context.Context, opts ports.BrowserOptions) error {
	m.LaunchCalled = true
	if m.LaunchFunc != nil {
		return m.LaunchFunc(ctx, opts)
	}
	return nil
}

func (m *Browser) Navigate(url string) error {
	m.NavigatedTo = append(m.NavigatedTo, url)
	if m.NavigateFunc != nil {
		return m.NavigateFunc(url)
	}
	return nil
}

func (m *Browser) Surface() ports.RenderSurface {
	if m.Primary == nil {
		m.Primary = NewSurface("primary")
	}
	return m.Primary
}

func (m *Browser) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.Browser = (*Browser)(nil)

// Surface is a mock implementation of ports.RenderSurface.
type Surface struct {
	mu sync.Mutex
	id string

	NewSessionFunc func(ctx context.Context) (ports.ScreencastSession, error)

	Sessions      []*Session
	popupHandlers map[int]func(ports.RenderSurface)
	nextHandler   int
	closeHandlers []func()
}

// NewSurface creates a mock surface with the given id.
func NewSurface(id string) *Surface {
	return &Surface{id: id, popupHandlers: make(map[int]func(ports.RenderSurface))}
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) NewSession(ctx context.Context) (ports.ScreencastSession, error) {
	if s.NewSessionFunc != nil {
		return s.NewSessionFunc(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := NewSession(fmt.Sprintf("%s-%d", s.id, len(s.Sessions)))
	s.Sessions = append(s.Sessions, sess)
	return sess, nil
}

func (s *Surface) OnPopup(fn func(ports.RenderSurface)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHandler
	s.nextHandler++
	s.popupHandlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.popupHandlers, id)
	}
}

func (s *Surface) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandlers = append(s.closeHandlers, fn)
}

// OpenPopup simulates the surface opening a secondary surface.
func (s *Surface) OpenPopup(popup *Surface) {
	s.mu.Lock()
	handlers := make([]func(ports.RenderSurface), 0, len(s.popupHandlers))
	for _, h := range s.popupHandlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(popup)
	}
}

// PopupListeners returns the number of registered popup handlers.
func (s *Surface) PopupListeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.popupHandlers)
}

// Close simulates the surface closing.
func (s *Surface) Close() {
	s.mu.Lock()
	handlers := s.closeHandlers
	s.closeHandlers = nil
	s.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

// Session returns the i-th session created on the surface.
func (s *Surface) Session(i int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.Sessions) {
		return nil
	}
	return s.Sessions[i]
}

var _ ports.RenderSurface = (*Surface)(nil)

// Session is a mock implementation of ports.ScreencastSession.
type Session struct {
	mu sync.Mutex
	id string

	StartFunc func(ctx context.Context, opts ports.ScreencastOptions) error
	StopFunc  func(ctx context.Context) error
	AckFunc   func(ctx context.Context, ackID int64) error
	NudgeFunc func(ctx context.Context) error

	handler    func(ports.ScreenFrame)
	Starts     []ports.ScreencastOptions
	StopCalls  int
	Acks       []int64
	NudgeCalls int
	Detached   bool
}

// NewSession creates a mock session.
func NewSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) ID() string { return s.id }

func (s *Session) OnFrame(fn func(ports.ScreenFrame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

func (s *Session) StartScreencast(ctx context.Context, opts ports.ScreencastOptions) error {
	s.mu.Lock()
	s.Starts = append(s.Starts, opts)
	s.mu.Unlock()
	if s.StartFunc != nil {
		return s.StartFunc(ctx, opts)
	}
	return nil
}

func (s *Session) StopScreencast(ctx context.Context) error {
	s.mu.Lock()
	s.StopCalls++
	s.mu.Unlock()
	if s.StopFunc != nil {
		return s.StopFunc(ctx)
	}
	return nil
}

func (s *Session) Ack(ctx context.Context, ackID int64) error {
	s.mu.Lock()
	s.Acks = append(s.Acks, ackID)
	s.mu.Unlock()
	if s.AckFunc != nil {
		return s.AckFunc(ctx, ackID)
	}
	return nil
}

func (s *Session) Nudge(ctx context.Context) error {
	s.mu.Lock()
	s.NudgeCalls++
	s.mu.Unlock()
	if s.NudgeFunc != nil {
		return s.NudgeFunc(ctx)
	}
	return nil
}

func (s *Session) Detach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Detached = true
	return nil
}

// Emit delivers a frame to the registered handler as the producer would.
func (s *Session) Emit(f ports.ScreenFrame) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(f)
	}
}

// AckCount returns the number of acknowledged frames.
func (s *Session) AckCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Acks)
}

// StartCount returns the number of StartScreencast calls.
func (s *Session) StartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Starts)
}

// StopCount returns the number of StopScreencast calls.
func (s *Session) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StopCalls
}

// Nudges returns the number of Nudge calls.
func (s *Session) Nudges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NudgeCalls
}

// IsDetached reports whether Detach was called.
func (s *Session) IsDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Detached
}

var _ ports.ScreencastSession = (*Session)(nil)
