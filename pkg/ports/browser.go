// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
)

// Browser abstracts the browser process hosting the render surfaces.
type Browser interface {
	// Launch starts the browser with the given options.
	Launch(ctx context.Context, opts BrowserOptions) error

	// Navigate loads the specified URL in the primary tab.
	Navigate(url string) error

	// Surface returns the primary render surface (the first tab).
	Surface() RenderSurface

	// Close shuts down the browser.
	Close() error
}

// BrowserOptions configures browser launch settings.
type BrowserOptions struct {
	Headless          bool
	ChromePath        string
	UserAgent         string
	Headers           map[string]string
	WindowWidth       int    // Initial window width (for screencast)
	WindowHeight      int    // Initial window height (for screencast)
	IgnoreHTTPSErrors bool   // Ignore HTTPS certificate errors
	ProxyServer       string // HTTP proxy server (e.g., "http://proxy:8080")
	Incognito         bool
}

// RenderSurface is a page whose rendering can be screencast.
type RenderSurface interface {
	// ID identifies the surface (the CDP target id for Chrome).
	ID() string

	// NewSession attaches a fresh devtools session to the surface.
	NewSession(ctx context.Context) (ScreencastSession, error)

	// OnPopup registers fn to be called for every secondary surface opened by this one.
	// The returned function removes the registration. fn may block; implementations
	// invoke it outside their event loop.
	OnPopup(fn func(RenderSurface)) (remove func())

	// OnClose registers fn to be called once when the surface closes. Like OnPopup
	// handlers, fn may block.
	OnClose(fn func())
}

// ScreencastSession is one devtools session attached to a render surface.
type ScreencastSession interface {
	// ID identifies the session.
	ID() string

	// OnFrame registers the handler invoked for every screencast frame.
	// Handlers run on the session's event loop and must not block.
	OnFrame(fn func(ScreenFrame))

	// StartScreencast begins emitting frames.
	StartScreencast(ctx context.Context, opts ScreencastOptions) error

	// StopScreencast stops emitting frames.
	StopScreencast(ctx context.Context) error

	// Ack acknowledges the frame identified by ackID so the producer emits the next one.
	Ack(ctx context.Context, ackID int64) error

	// Nudge applies an invisible mutation to the page so static content still repaints.
	Nudge(ctx context.Context) error

	// Detach releases the session.
	Detach(ctx context.Context) error
}

// ScreencastOptions mirrors Page.startScreencast parameters.
type ScreencastOptions struct {
	Format        string // "jpeg" or "png"
	Quality       int    // 0-100
	MaxWidth      int
	MaxHeight     int
	EveryNthFrame int
}

// ScreenFrame represents a single screencast frame as received from the producer.
type ScreenFrame struct {
	Data      []byte  // Decoded image bytes
	Timestamp float64 // Producer timestamp in seconds, 0 when absent
	AckID     int64   // Frame number to acknowledge
}
