package ffmpeg

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SupportedContainers lists the file extensions accepted for file outputs.
var SupportedContainers = []string{"mp4", "avi", "mov", "webm"}

// VideoOptions holds the encoder parameters shared by all output kinds.
type VideoOptions struct {
	FPS                float64
	Codec              string // default libx264
	PixelFormat        string // default yuv420p
	Preset             string // default ultrafast
	CRF                int    // file outputs only, default 23
	BitrateKbps        int    // default 1000 for files, 2500 for push
	Width              int    // 0 keeps the source size
	Height             int
	AspectRatio        string // e.g. "4:3"
	AutopadColor       string // pad to Width x Height with this color when set
	DurationLimit      time.Duration
	Metadata           []string // key=value tags
	ExtraOutputOptions []string
	Threads            int
	Container          string // writer outputs: "mp4" (fragmented) or "flv"
}

// IsSupportedContainer reports whether ext (without dot) may be used for file output.
func IsSupportedContainer(ext string) bool {
	return slices.Contains(SupportedContainers, strings.ToLower(ext))
}

// FileArgs builds the arguments encoding the image stream on stdin into path.
func FileArgs(o VideoOptions, path, container string) ([]string, error) {
	if !IsSupportedContainer(container) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContainer, container)
	}

	codec := orDefault(o.Codec, "libx264")
	if container == "webm" {
		codec = "libvpx"
	}
	bitrate := intOrDefault(o.BitrateKbps, 1000)

	args := append(commonInput(o), "-c:v", codec)
	if vf := videoFilter(o); vf != "" {
		args = append(args, "-vf", vf)
	}
	if o.AspectRatio != "" {
		args = append(args, "-aspect", o.AspectRatio)
	}
	if codec != "libvpx" {
		args = append(args, "-preset", orDefault(o.Preset, "ultrafast"))
	}
	args = append(args,
		"-crf", strconv.Itoa(intOrDefault(o.CRF, 23)),
		"-pix_fmt", orDefault(o.PixelFormat, "yuv420p"),
		"-b:v", kbps(bitrate),
		"-minrate", kbps(bitrate),
		"-maxrate", kbps(bitrate),
		"-bufsize", kbps(bitrate*2),
	)
	if container == "webm" {
		args = append(args, "-flags", "+global_header")
	}
	if o.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(o.Threads))
	}
	args = append(args, tail(o)...)
	return append(args, "-y", path), nil
}

// WriterArgs builds the arguments streaming the encoded video to stdout.
func WriterArgs(o VideoOptions) []string {
	bitrate := intOrDefault(o.BitrateKbps, 2500)

	args := append(commonInput(o), silentAudio()...)
	args = append(args, "-c:v", orDefault(o.Codec, "libx264"))
	if vf := videoFilter(o); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-preset", orDefault(o.Preset, "ultrafast"),
		"-tune", "zerolatency",
		"-pix_fmt", orDefault(o.PixelFormat, "yuv420p"),
		"-g", strconv.Itoa(keyframeInterval(o.FPS)),
		"-b:v", kbps(bitrate),
		"-minrate", kbps(bitrate),
		"-maxrate", kbps(bitrate),
		"-bufsize", kbps(bitrate*2),
	)
	args = append(args, audioOutput()...)
	args = append(args, tail(o)...)

	if o.Container == "flv" {
		return append(args, "-f", "flv", "-flvflags", "no_duration_filesize", "pipe:1")
	}
	return append(args, "-f", "mp4", "-movflags", "frag_keyframe+empty_moov+default_base_moof", "pipe:1")
}

// PushArgs builds the arguments for a live push to an rtmp:// target.
// Constant bitrate (min = max = target) bounds jitter on the wire.
func PushArgs(o VideoOptions, url string) []string {
	bitrate := intOrDefault(o.BitrateKbps, 2500)

	args := append(commonInput(o), silentAudio()...)
	args = append(args, "-vcodec", orDefault(o.Codec, "libx264"),
		"-pix_fmt", orDefault(o.PixelFormat, "yuv420p"))
	if vf := videoFilter(o); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-preset", orDefault(o.Preset, "ultrafast"),
		"-tune", "zerolatency",
		"-g", strconv.Itoa(keyframeInterval(o.FPS)),
		"-b:v", kbps(bitrate),
		"-minrate", kbps(bitrate),
		"-maxrate", kbps(bitrate),
		"-bufsize", kbps(bitrate*2),
	)
	args = append(args, audioOutput()...)
	args = append(args, tail(o)...)
	return append(args, "-f", "flv", "-flvflags", "no_duration_filesize", url)
}

func commonInput(o VideoOptions) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-stats",
		"-f", "image2pipe",
		"-r", formatFPS(o.FPS),
		"-i", "pipe:0",
	}
}

func silentAudio() []string {
	return []string{"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100"}
}

// audioOutput encodes the silent track; -shortest ends it with the video input.
func audioOutput() []string {
	return []string{"-acodec", "aac", "-b:a", "128k", "-ar", "44100", "-ac", "2", "-shortest"}
}

func tail(o VideoOptions) []string {
	var args []string
	for _, m := range o.Metadata {
		args = append(args, "-metadata", m)
	}
	if o.DurationLimit > 0 {
		args = append(args, "-t", strconv.FormatFloat(o.DurationLimit.Seconds(), 'f', 3, 64))
	}
	return append(args, o.ExtraOutputOptions...)
}

// videoFilter scales to the frame size and, with autopad, letterboxes instead of
// stretching when the source aspect ratio differs.
func videoFilter(o VideoOptions) string {
	if o.Width <= 0 || o.Height <= 0 {
		return ""
	}
	w, h := o.Width, o.Height
	if o.AutopadColor == "" {
		return fmt.Sprintf("scale=%d:%d", w, h)
	}

	a := AspectValue(o.AspectRatio)
	if a == 0 {
		a = float64(w) / float64(h)
	}
	ar := strconv.FormatFloat(a, 'f', 4, 64)
	return fmt.Sprintf(
		"scale=w='if(gt(a,%[3]s),%[1]d,trunc(%[2]d*a/2)*2)':h='if(lt(a,%[3]s),%[2]d,trunc(%[1]d/a/2)*2)',"+
			"pad=w=%[1]d:h=%[2]d:x='if(gt(a,%[3]s),0,(%[1]d-iw)/2)':y='if(lt(a,%[3]s),0,(%[2]d-ih)/2)':color=%[4]s",
		w, h, ar, o.AutopadColor)
}

// AspectValue parses "16:9", "4/3" or "1.777" into a ratio. Invalid input yields 0.
func AspectValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, sep := range []string{":", "/"} {
		if num, den, ok := strings.Cut(s, sep); ok {
			n, err1 := strconv.ParseFloat(num, 64)
			d, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0
			}
			return n / d
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func keyframeInterval(fps float64) int {
	g := int(math.Round(fps * 2))
	if g < 1 {
		return 1
	}
	return g
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
