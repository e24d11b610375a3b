// Package chromebrowser provides a browser implementation using chromedp.
package chromebrowser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/user/screenstream/pkg/ports"
)

// Browser implements ports.Browser using chromedp.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	primary  *Surface
	surfaces map[target.ID]*Surface

	// Session contexts are only cancelled on Close: cancelling one closes its tab.
	sessionCancels []context.CancelFunc
}

// New creates a new Browser.
func New() *Browser {
	return &Browser{surfaces: make(map[target.ID]*Surface)}
}

// Launch starts the browser with the given options and opens the primary tab.
func (b *Browser) Launch(ctx context.Context, opts ports.BrowserOptions) error {
	chromePath, err := ResolveChromePath(opts.ChromePath)
	if err != nil {
		return err
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(chromePath, opts)...)
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx)

	// The first Run starts the browser and attaches the primary tab.
	if err := chromedp.Run(b.ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		if err := chromedp.Run(b.ctx, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
	}

	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		if err := b.setViewport(opts.WindowWidth, opts.WindowHeight); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.primary = b.surfaceLocked(chromedp.FromContext(b.ctx).Target.TargetID)
	b.mu.Unlock()

	chromedp.ListenBrowser(b.ctx, b.onBrowserEvent)
	return nil
}

func allocatorOptions(chromePath string, opts ports.BrowserOptions) []chromedp.ExecAllocatorOption {
	o := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(chromePath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		// Background tabs must keep painting or popups stall the screencast.
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("no-zygote", true),
	}

	if opts.Headless {
		o = append(o, chromedp.Flag("headless", "new"))
	}
	if opts.Incognito {
		o = append(o, chromedp.Flag("incognito", true))
	}
	if opts.UserAgent != "" {
		o = append(o, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		o = append(o, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.IgnoreHTTPSErrors {
		o = append(o,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true))
	}
	if opts.ProxyServer != "" {
		o = append(o, chromedp.ProxyServer(opts.ProxyServer))
	}
	return o
}

// setViewport pins the window and the emulated screen to width x height so that
// screencast frames have a stable size.
func (b *Browser) setViewport(width, height int) error {
	_ = chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return nil
		}
		return browser.SetWindowBounds(windowID, &browser.Bounds{
			Width:  int64(width),
			Height: int64(height),
		}).Do(ctx)
	}))

	if err := chromedp.Run(b.ctx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false).
			WithScreenWidth(int64(width)).
			WithScreenHeight(int64(height)),
	); err != nil {
		return fmt.Errorf("set device metrics: %w", err)
	}
	return nil
}

// Navigate loads the specified URL in the primary tab.
func (b *Browser) Navigate(url string) error {
	return chromedp.Run(b.ctx, chromedp.Navigate(url))
}

// Surface returns the primary tab. It is nil before Launch.
func (b *Browser) Surface() ports.RenderSurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.primary == nil {
		return nil
	}
	return b.primary
}

// Close shuts down the browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	cancels := b.sessionCancels
	b.sessionCancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}

	if b.cancel != nil {
		b.cancel()
	}

	// Give Chrome a moment to shut down gracefully, then force kill
	time.Sleep(100 * time.Millisecond)

	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

// onBrowserEvent runs on chromedp's browser event loop; handlers are dispatched on
// their own goroutines because they issue further CDP commands.
func (b *Browser) onBrowserEvent(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		info := e.TargetInfo
		if info == nil || info.Type != "page" || info.OpenerID == "" {
			return
		}
		b.mu.Lock()
		opener, ok := b.surfaces[info.OpenerID]
		if !ok {
			b.mu.Unlock()
			return
		}
		popup := b.surfaceLocked(info.TargetID)
		b.mu.Unlock()
		go opener.firePopup(popup)

	case *target.EventTargetDestroyed:
		b.mu.Lock()
		s, ok := b.surfaces[e.TargetID]
		delete(b.surfaces, e.TargetID)
		b.mu.Unlock()
		if ok {
			go s.fireClose()
		}
	}
}

func (b *Browser) surfaceLocked(id target.ID) *Surface {
	if s, ok := b.surfaces[id]; ok {
		return s
	}
	s := &Surface{
		browser:       b,
		id:            id,
		popupHandlers: make(map[int]func(ports.RenderSurface)),
	}
	b.surfaces[id] = s
	return s
}

var _ ports.Browser = (*Browser)(nil)

// Surface is a browser tab.
type Surface struct {
	browser *Browser
	id      target.ID

	mu            sync.Mutex
	popupHandlers map[int]func(ports.RenderSurface)
	nextHandler   int
	closeHandlers []func()
	closed        bool
	sessions      int
}

// ID returns the CDP target id.
func (s *Surface) ID() string { return string(s.id) }

// NewSession attaches a new devtools session to the tab.
func (s *Surface) NewSession(ctx context.Context) (ports.ScreencastSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sctx, cancel := chromedp.NewContext(s.browser.ctx, chromedp.WithTargetID(s.id))
	if err := chromedp.Run(sctx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach to %s: %w", s.id, err)
	}

	c := chromedp.FromContext(sctx)
	if c == nil || c.Target == nil {
		cancel()
		return nil, fmt.Errorf("attach to %s: no target", s.id)
	}

	s.browser.mu.Lock()
	s.browser.sessionCancels = append(s.browser.sessionCancels, cancel)
	s.browser.mu.Unlock()

	s.mu.Lock()
	s.sessions++
	id := fmt.Sprintf("%s/%d", s.id, s.sessions)
	s.mu.Unlock()
	return &Session{id: id, ctx: sctx, executor: c.Browser, sessionID: c.Target.SessionID}, nil
}

// OnPopup registers fn for tabs opened by this one.
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

// OnClose registers fn to run when the tab is destroyed.
func (s *Surface) OnClose(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.closeHandlers = append(s.closeHandlers, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	go fn()
}

func (s *Surface) firePopup(popup *Surface) {
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

func (s *Surface) fireClose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handlers := s.closeHandlers
	s.closeHandlers = nil
	s.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

var _ ports.RenderSurface = (*Surface)(nil)

// keepaliveScript flips the opacity of a 1px overlay between two nearly invisible
// values so the compositor produces a new frame.
const keepaliveScript = `(() => {
  let el = document.getElementById('__screenstream_keepalive');
  if (!el) {
    if (!document.body) return;
    el = document.createElement('div');
    el.id = '__screenstream_keepalive';
    el.style.cssText = 'position:fixed;left:0;top:0;width:1px;height:1px;pointer-events:none;z-index:2147483647;background:#000;opacity:0.01';
    document.body.appendChild(el);
  }
  el.style.opacity = el.style.opacity === '0.01' ? '0.02' : '0.01';
})()`

// Session is one devtools session attached to a tab.
// CDP commands run on the session's own chromedp context; the ctx arguments only
// gate whether a command is issued.
type Session struct {
	id  string
	ctx context.Context

	// executor runs browser-level commands for this session.
	executor  cdp.Executor
	sessionID target.SessionID

	listenOnce sync.Once
	mu         sync.Mutex
	handler    func(ports.ScreenFrame)
	detached   bool
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// OnFrame registers the screencast frame handler.
func (s *Session) OnFrame(fn func(ports.ScreenFrame)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
	s.listenOnce.Do(func() {
		chromedp.ListenTarget(s.ctx, s.onTargetEvent)
	})
}

func (s *Session) onTargetEvent(ev interface{}) {
	e, ok := ev.(*page.EventScreencastFrame)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return
	}

	var ts float64
	if e.Metadata != nil && e.Metadata.Timestamp != nil {
		ts = float64(e.Metadata.Timestamp.Time().UnixNano()) / float64(time.Second)
	}

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ports.ScreenFrame{Data: data, Timestamp: ts, AckID: e.SessionID})
	}
}

// StartScreencast resets animation playback to real time and starts the screencast.
func (s *Session) StartScreencast(ctx context.Context, opts ports.ScreencastOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := page.StartScreencast().
		WithFormat(page.ScreencastFormat(opts.Format)).
		WithQuality(int64(opts.Quality)).
		WithEveryNthFrame(int64(opts.EveryNthFrame))
	if opts.MaxWidth > 0 {
		start = start.WithMaxWidth(int64(opts.MaxWidth))
	}
	if opts.MaxHeight > 0 {
		start = start.WithMaxHeight(int64(opts.MaxHeight))
	}

	return chromedp.Run(s.ctx, animation.SetPlaybackRate(1), start)
}

// StopScreencast stops the screencast.
func (s *Session) StopScreencast(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, page.StopScreencast())
}

// Ack acknowledges a screencast frame.
func (s *Session) Ack(ctx context.Context, ackID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, page.ScreencastFrameAck(ackID))
}

// Nudge forces a repaint of the page.
func (s *Session) Nudge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.Evaluate(keepaliveScript, nil))
}

// detachTimeout bounds Target.detachFromTarget, which may run after ctx is cancelled.
const detachTimeout = time.Second

// Detach releases the devtools session and leaves the tab open.
func (s *Session) Detach(ctx context.Context) error {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return nil
	}
	s.detached = true
	s.handler = nil
	s.mu.Unlock()

	if s.executor == nil || s.sessionID == "" {
		return nil
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
	defer cancel()
	if err := target.DetachFromTarget().WithSessionID(s.sessionID).Do(cdp.WithExecutor(dctx, s.executor)); err != nil {
		return fmt.Errorf("detach %s: %w", s.id, err)
	}
	return nil
}

var _ ports.ScreencastSession = (*Session)(nil)
