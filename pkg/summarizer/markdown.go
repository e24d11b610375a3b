package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// Option configures a MarkdownFormatter.
type Option func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(fn func(string) string) Option {
	return func(f *MarkdownFormatter) { f.translate = fn }
}

// WithVersion sets the version shown in the footer.
func WithVersion(v string) Option {
	return func(f *MarkdownFormatter) { f.version = v }
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...Option) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Stream Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	f.header(&b)
	f.row(&b, "Stream ID", s.Stream.ID)
	f.row(&b, "URL", s.Stream.URL)
	f.row(&b, "Destination", fmt.Sprintf("%s (%s)", s.Stream.Destination, s.Stream.Kind))
	f.row(&b, "Status", f.status(s.Result))
	f.row(&b, "Elapsed", s.Result.Elapsed.Round(time.Millisecond).String())
	if s.Result.Duration != "" {
		f.row(&b, "Video Duration", s.Result.Duration)
	}
	if s.Result.VideoTrack != "" {
		f.row(&b, "Video Track", s.Result.VideoTrack)
	}
	f.row(&b, "Frames Emitted", fmt.Sprintf("%d", s.Result.FramesEmitted))
	f.row(&b, "Data Sent", formatBytes(s.Result.BytesWritten))
	f.row(&b, "Retries", fmt.Sprintf("%d", s.Result.Retries))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	f.header(&b)
	f.row(&b, "Frame Rate", fmt.Sprintf("%g fps", s.Settings.FPS))
	f.row(&b, "Screencast", fmt.Sprintf("%s, %s %d", s.Settings.Format, t("quality"), s.Settings.Quality))
	f.row(&b, "Codec", s.Settings.Codec)
	if s.Settings.BitrateKbps > 0 {
		f.row(&b, "Bitrate", fmt.Sprintf("%d kbps", s.Settings.BitrateKbps))
	} else {
		f.row(&b, "Bitrate", t("Default"))
	}
	if s.Settings.Width > 0 && s.Settings.Height > 0 {
		f.row(&b, "Output Size", fmt.Sprintf("%dx%d", s.Settings.Width, s.Settings.Height))
	}
	f.row(&b, "Follow Popups", f.yesNo(s.Settings.FollowPopups))
	f.row(&b, "Max Retries", fmt.Sprintf("%d", s.Settings.MaxRetries))
	b.WriteString("\n")

	if f.version != "" {
		fmt.Fprintf(&b, "---\n%s screenstream %s\n", t("Generated by"), f.version)
	}
	return b.String()
}

func (f *MarkdownFormatter) header(b *strings.Builder) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", f.translate("Item"), f.translate("Value"))
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", f.translate(label), strings.ReplaceAll(value, "|", `\|`))
}

func (f *MarkdownFormatter) status(r ResultInfo) string {
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s (%s %d): %s", f.translate("Failed"), f.translate("exit code"), r.ExitCode, r.Error)
	case r.ForceTerminated:
		return f.translate("Terminated")
	default:
		return f.translate("Completed")
	}
}

func (f *MarkdownFormatter) yesNo(v bool) string {
	if v {
		return f.translate("Yes")
	}
	return f.translate("No")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
