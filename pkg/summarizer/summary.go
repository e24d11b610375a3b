// Package summarizer provides summary generation for stream sessions.
package summarizer

import "time"

// Summary contains all data collected during a capture-and-stream session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	Stream   StreamInfo
	Result   ResultInfo
	Settings Settings
}

// StreamInfo identifies the captured page and where it was sent.
type StreamInfo struct {
	ID          string
	URL         string
	Destination string
	Kind        string
}

// ResultInfo contains the outcome of the session.
type ResultInfo struct {
	FramesEmitted   int
	BytesWritten    int64
	Elapsed         time.Duration
	Duration        string // encoder output position
	VideoTrack      string // codec and size found in the finished file
	Retries         int
	ExitCode        int
	ForceTerminated bool
	Error           string
}

// Settings contains the capture and encoding configuration.
type Settings struct {
	FPS          float64
	Format       string
	Quality      int
	Codec        string
	BitrateKbps  int // 0 = encoder default
	Width        int
	Height       int
	FollowPopups bool
	MaxRetries   int
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithStream sets stream identification.
func (b *Builder) WithStream(info StreamInfo) *Builder {
	b.summary.Stream = info
	return b
}

// WithResult sets the session outcome.
func (b *Builder) WithResult(result ResultInfo) *Builder {
	b.summary.Result = result
	return b
}

// WithError records why the session failed.
func (b *Builder) WithError(err error) *Builder {
	if err != nil {
		b.summary.Result.Error = err.Error()
	}
	return b
}

// WithSettings sets capture and encoding settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
