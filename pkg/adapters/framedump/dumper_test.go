package framedump

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/screenstream/pkg/mocks"
)

func TestDumper_SaveFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	d := New("/tmp/debug", "jpeg", fs)

	if !d.Enabled() {
		t.Fatal("expected dumper to be enabled")
	}
	if err := d.SaveFrame(3, 1700000000.25, []byte("jpeg-data")); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}

	path := filepath.Join("/tmp/debug", "frames", "frame-000003-1700000000250.jpg")
	data, ok := fs.File(path)
	if !ok {
		t.Fatalf("expected %s to be written", path)
	}
	if string(data) != "jpeg-data" {
		t.Errorf("unexpected content %q", data)
	}
	if !fs.HasDir(filepath.Join("/tmp/debug", "frames")) {
		t.Error("expected frames directory to be created")
	}
}

func TestDumper_PNGExtension(t *testing.T) {
	fs := mocks.NewFileSystem()
	d := New("out", "PNG", fs)

	d.SaveFrame(1, 2, []byte("png"))
	if _, ok := fs.File(filepath.Join("out", "frames", "frame-000001-2000.png")); !ok {
		t.Error("expected png file name")
	}
}

func TestDumper_Disabled(t *testing.T) {
	fs := mocks.NewFileSystem()
	d := New("", "jpeg", fs)

	if d.Enabled() {
		t.Error("expected dumper to be disabled without a directory")
	}
	if err := d.SaveFrame(1, 1, []byte("x")); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if fs.FileCount() != 0 {
		t.Error("expected nothing written")
	}
}

func TestDumper_DirectoryError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.MkdirAllFunc = func(path string) error { return errors.New("read-only") }
	d := New("/ro", "jpeg", fs)

	if err := d.SaveFrame(1, 1, []byte("x")); err == nil {
		t.Error("expected error when the dump directory cannot be created")
	}
	if fs.FileCount() != 0 {
		t.Error("expected nothing written")
	}
}
