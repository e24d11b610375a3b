package codecdetect

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

func buildInit(t *testing.T, handler string, withAV1 bool) []byte {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(15000, handler, "en")
	trak := init.Moov.Trak

	if withAV1 {
		av1C := &mp4.Av1CBox{CodecConfRec: av1.CodecConfRec{
			Version:            1,
			SeqLevelIdx0:       8,
			ChromaSubsamplingX: 1,
			ChromaSubsamplingY: 1,
		}}
		trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("av01", 640, 360, av1C))
		trak.Tkhd.Width = mp4.Fixed32(640 << 16)
		trak.Tkhd.Height = mp4.Fixed32(360 << 16)
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInspect_VideoTrack(t *testing.T) {
	info, err := Inspect(bytes.NewReader(buildInit(t, "video", true)))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Codec != CodecAV1 || info.Width != 640 || info.Height != 360 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.String() != "av1 640x360" {
		t.Errorf("unexpected String(): %q", info.String())
	}
}

func TestInspect_NoVideoTrack(t *testing.T) {
	_, err := Inspect(bytes.NewReader(buildInit(t, "audio", false)))
	if !errors.Is(err, ErrNoVideoTrack) {
		t.Errorf("expected ErrNoVideoTrack, got %v", err)
	}
}

func TestInspect_Garbage(t *testing.T) {
	if _, err := Inspect(bytes.NewReader([]byte("not an mp4 file"))); err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestInspectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, buildInit(t, "video", true), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := InspectFile(path)
	if err != nil || info.Codec != CodecAV1 {
		t.Errorf("unexpected result: %+v, %v", info, err)
	}

	if _, err := InspectFile(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestInspectable(t *testing.T) {
	for container, want := range map[string]bool{"mp4": true, "mov": true, "webm": false, "avi": false} {
		if got := Inspectable(container); got != want {
			t.Errorf("Inspectable(%q) = %v, want %v", container, got, want)
		}
	}
}
