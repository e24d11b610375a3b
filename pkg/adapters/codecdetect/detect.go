// Package codecdetect inspects recorded MP4 and MOV output to confirm it carries a
// video track.
package codecdetect

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecVP9     Codec = "vp9"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when the file holds no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// Info describes the first video track of a file.
type Info struct {
	Codec      Codec
	Width      int
	Height     int
	Fragmented bool
}

func (i Info) String() string {
	if i.Width > 0 && i.Height > 0 {
		return fmt.Sprintf("%s %dx%d", i.Codec, i.Width, i.Height)
	}
	return string(i.Codec)
}

// Inspectable reports whether files of container can be inspected.
func Inspectable(container string) bool {
	return container == "mp4" || container == "mov"
}

// InspectFile inspects the MP4 file at path.
func InspectFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Inspect(f)
}

// Inspect decodes the box structure read from r.
func Inspect(r io.ReadSeeker) (Info, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return Info{}, fmt.Errorf("decode mp4: %w", err)
	}

	var moovs []*mp4.MoovBox
	if file.IsFragmented() && file.Init != nil && file.Init.Moov != nil {
		moovs = append(moovs, file.Init.Moov)
	}
	if file.Moov != nil {
		moovs = append(moovs, file.Moov)
	}

	for _, moov := range moovs {
		for _, trak := range moov.Traks {
			if info, ok := videoTrack(trak); ok {
				info.Fragmented = file.IsFragmented()
				return info, nil
			}
		}
	}
	return Info{}, ErrNoVideoTrack
}

func videoTrack(trak *mp4.TrakBox) (Info, bool) {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return Info{}, false
	}

	info := Info{Codec: CodecUnknown}
	if trak.Tkhd != nil {
		info.Width = int(trak.Tkhd.Width >> 16)
		info.Height = int(trak.Tkhd.Height >> 16)
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return info, true
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		if c := sampleEntryCodec(child.Type()); c != CodecUnknown {
			info.Codec = c
			break
		}
	}
	return info, true
}

func sampleEntryCodec(boxType string) Codec {
	switch boxType {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecHEVC
	case "av01":
		return CodecAV1
	case "vp09":
		return CodecVP9
	default:
		return CodecUnknown
	}
}
