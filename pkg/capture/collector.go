// Package capture turns screencast events of a render surface into a steady stream of
// acknowledged, timestamped frames.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("capture: already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("capture: stopped")
)

const (
	DefaultAckTimeout = time.Second
	DefaultQueueSize  = 64

	progressEvery = 300
)

// Options configures a Collector.
type Options struct {
	Screencast        ports.ScreencastOptions
	FollowPopups      bool
	FPS               float64       // output rate, used to derive the keepalive interval
	KeepaliveInterval time.Duration // 0 derives 1/FPS
	AckTimeout        time.Duration // bound on the stop wait for in-flight acks, default 1s
	QueueSize         int           // frame channel capacity, default 64
	Dumper            ports.FrameDumper
}

// Collector keeps a stack of screencast sessions, one per followed surface, and
// forwards frames of whichever session is current.
type Collector struct {
	surface ports.RenderSurface
	opts    Options
	logger  ports.Logger
	metrics *metrics.Metrics

	// transition serializes session pushes, pops and the final teardown.
	transition sync.Mutex
	stack      []ports.ScreencastSession

	// Snapshot of the stack for readers that must not wait on a transition.
	currentID atomic.Value // string
	depth     atomic.Int32

	mu       sync.Mutex
	started  bool
	stopped  bool
	closed   bool
	received int
	frames   chan pipeline.Frame

	acks          sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	removePopup   func()
	keepaliveDone chan struct{}
	stopDone      chan struct{}
}

// New creates a Collector for surface.
func New(surface ports.RenderSurface, opts Options, logger ports.Logger, m *metrics.Metrics) *Collector {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.KeepaliveInterval <= 0 && opts.FPS > 0 {
		opts.KeepaliveInterval = time.Duration(float64(time.Second) / opts.FPS)
	}
	opts.Screencast = normalize(opts.Screencast)
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Collector{
		surface:  surface,
		opts:     opts,
		logger:   logger.WithComponent("capture"),
		metrics:  m,
		frames:   make(chan pipeline.Frame, opts.QueueSize),
		stopDone: make(chan struct{}),
	}
}

// ClampQuality limits a screencast quality to [0, 100].
func ClampQuality(q int) int {
	return max(0, min(q, 100))
}

func normalize(o ports.ScreencastOptions) ports.ScreencastOptions {
	if o.Format == "" {
		o.Format = "jpeg"
	}
	o.Quality = ClampQuality(o.Quality)
	if o.EveryNthFrame < 1 {
		o.EveryNthFrame = 1
	}
	return o
}

// Frames returns the channel of captured frames. It is closed by Stop.
func (c *Collector) Frames() <-chan pipeline.Frame {
	return c.frames
}

// Start opens a session on the primary surface and begins screencasting. With
// FollowPopups, every surface opened by the primary gets its own session on top of
// the stack until it closes. Session failures are logged and leave capture running
// with whatever session remains.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.stopped:
		c.mu.Unlock()
		return ErrStopped
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.keepaliveDone = make(chan struct{})
	c.mu.Unlock()

	c.logger.Debug("Starting screencast")
	c.follow(c.surface)
	if c.opts.FollowPopups {
		remove := c.surface.OnPopup(func(popup ports.RenderSurface) {
			c.logger.Debug("Following popup %s", popup.ID())
			c.follow(popup)
		})
		c.mu.Lock()
		c.removePopup = remove
		c.mu.Unlock()
	}

	go c.keepalive()
	return nil
}

// follow pushes a session for surface and pops it again when the surface closes.
func (c *Collector) follow(surface ports.RenderSurface) {
	sess := c.pushSession(surface)
	if sess == nil {
		return
	}
	surface.OnClose(func() {
		c.logger.Debug("Surface %s closed", surface.ID())
		c.popSession(sess)
	})
}

func (c *Collector) pushSession(surface ports.RenderSurface) ports.ScreencastSession {
	c.transition.Lock()
	defer c.transition.Unlock()

	if c.isStopped() {
		return nil
	}

	sess, err := surface.NewSession(c.ctx)
	if err != nil {
		c.logger.Warn("Failed to create capture session for %s: %s", surface.ID(), err)
		return nil
	}

	if cur := c.current(); cur != nil {
		if err := cur.StopScreencast(c.ctx); err != nil {
			c.logger.Warn("Failed to stop screencast on session %s: %s", cur.ID(), err)
		}
	}

	sess.OnFrame(func(f ports.ScreenFrame) { c.handleFrame(sess, f) })
	c.stack = append(c.stack, sess)
	c.publishLocked()

	if err := sess.StartScreencast(c.ctx, c.opts.Screencast); err != nil {
		c.logger.Warn("Failed to start screencast on session %s: %s", sess.ID(), err)
		c.removeLocked(sess)
		return nil
	}
	return sess
}

func (c *Collector) popSession(sess ports.ScreencastSession) {
	c.transition.Lock()
	defer c.transition.Unlock()

	if c.isStopped() {
		return
	}
	c.removeLocked(sess)
}

// removeLocked drops sess from the stack and, when it was current, resumes the
// session below it. transition must be held.
func (c *Collector) removeLocked(sess ports.ScreencastSession) {
	idx := -1
	for i, s := range c.stack {
		if s == sess {
			idx = i
		}
	}
	if idx < 0 {
		return
	}
	wasCurrent := idx == len(c.stack)-1
	c.stack = append(c.stack[:idx], c.stack[idx+1:]...)
	c.publishLocked()

	if err := sess.Detach(c.ctx); err != nil {
		c.logger.Debug("Failed to detach session %s: %s", sess.ID(), err)
	}
	c.logger.Debug("Capture session %s ended", sess.ID())

	if !wasCurrent {
		return
	}
	if cur := c.current(); cur != nil {
		if err := cur.StartScreencast(c.ctx, c.opts.Screencast); err != nil {
			c.logger.Warn("Failed to start screencast on session %s: %s", cur.ID(), err)
		}
	}
}

// current returns the top of the stack. transition must be held.
func (c *Collector) current() ports.ScreencastSession {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// publishLocked refreshes the stack snapshot. transition must be held.
func (c *Collector) publishLocked() {
	id := ""
	if cur := c.current(); cur != nil {
		id = cur.ID()
	}
	c.currentID.Store(id)
	c.depth.Store(int32(len(c.stack)))
	c.metrics.ActiveSessions.Set(float64(len(c.stack)))
}

// Current returns the id of the session frames are taken from, or "" when none.
func (c *Collector) Current() string {
	id, _ := c.currentID.Load().(string)
	return id
}

// Depth returns the number of sessions on the stack.
func (c *Collector) Depth() int {
	return int(c.depth.Load())
}

// handleFrame runs on the producer's event loop, so it never blocks: the ack is sent
// asynchronously and the frame is dropped when the channel is full.
func (c *Collector) handleFrame(sess ports.ScreencastSession, f ports.ScreenFrame) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.received++
	n := c.received
	c.acks.Add(1)
	c.mu.Unlock()

	c.metrics.FramesCaptured.Inc()
	go c.ack(sess, f.AckID)

	if n%progressEvery == 0 {
		c.logger.Debug("Captured %d frames", n)
	}
	if f.Timestamp == 0 {
		c.logger.Debug("Skipping frame without timestamp")
		return
	}

	if d := c.opts.Dumper; d != nil && d.Enabled() {
		if err := d.SaveFrame(n, f.Timestamp, f.Data); err != nil {
			c.logger.Debug("Failed to dump frame %d: %s", n, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.frames <- pipeline.Frame{Data: f.Data, Timestamp: f.Timestamp}:
	default:
		c.metrics.FramesDropped.WithLabelValues(metrics.DropOverflow).Inc()
	}
}

func (c *Collector) ack(sess ports.ScreencastSession, ackID int64) {
	defer c.acks.Done()
	if err := sess.Ack(c.ctx, ackID); err != nil {
		c.metrics.AckFailures.Inc()
		c.logger.Warn("Failed to acknowledge frame: %s", err)
	}
}

// keepalive nudges the current session once per output frame interval so that
// static pages still produce frames.
func (c *Collector) keepalive() {
	defer close(c.keepaliveDone)

	interval := c.opts.KeepaliveInterval
	if interval <= 0 {
		<-c.ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.nudge(interval)
		}
	}
}

func (c *Collector) nudge(timeout time.Duration) {
	c.transition.Lock()
	sess := c.current()
	c.transition.Unlock()
	if sess == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	if err := sess.Nudge(ctx); err != nil {
		c.metrics.Nudges.WithLabelValues("error").Inc()
		c.logger.Debug("Keepalive nudge failed: %s", err)
		return
	}
	c.metrics.Nudges.WithLabelValues("ok").Inc()
}

func (c *Collector) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop ends capture. It waits up to the ack timeout for in-flight acknowledgements,
// detaches every session on the stack and closes the frame channel. It is idempotent
// and always reports true once capture has ended.
func (c *Collector) Stop(ctx context.Context) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		<-c.stopDone
		return true
	}
	c.stopped = true
	started := c.started
	removePopup := c.removePopup
	c.mu.Unlock()
	defer close(c.stopDone)

	if !started {
		c.closeFrames()
		return true
	}

	if removePopup != nil {
		removePopup()
	}

	acked := make(chan struct{})
	go func() {
		c.acks.Wait()
		close(acked)
	}()
	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()
	select {
	case <-acked:
	case <-timer.C:
		c.logger.Warn("Timed out waiting for frame acknowledgement")
	case <-ctx.Done():
	}

	c.transition.Lock()
	sessions := c.stack
	c.stack = nil
	c.publishLocked()
	c.transition.Unlock()

	for _, sess := range sessions {
		if err := sess.Detach(ctx); err != nil {
			c.logger.Warn("Failed to detach session %s: %s", sess.ID(), err)
		}
	}

	c.cancel()
	<-c.keepaliveDone
	c.closeFrames()

	c.mu.Lock()
	n := c.received
	c.mu.Unlock()
	c.logger.Info("Captured %d frames", n)
	return true
}

func (c *Collector) closeFrames() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
}
