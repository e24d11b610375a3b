package chromebrowser

import (
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestResolveChromePath_ExplicitWins(t *testing.T) {
	t.Setenv("CHROME_PATH", "/env/chrome")

	got, err := ResolveChromePath("/custom/chrome")
	if err != nil || got != "/custom/chrome" {
		t.Errorf("expected explicit path, got %q, %v", got, err)
	}
}

func TestResolveChromePath_Env(t *testing.T) {
	tests := []struct {
		name       string
		chromePath string
		chromeBin  string
		want       string
	}{
		{"CHROME_PATH", "/env/chrome", "", "/env/chrome"},
		{"CHROME_BIN", "", "/env/chromium", "/env/chromium"},
		{"CHROME_PATH before CHROME_BIN", "/env/chrome", "/env/chromium", "/env/chrome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHROME_PATH", tt.chromePath)
			t.Setenv("CHROME_BIN", tt.chromeBin)

			got, err := ResolveChromePath("")
			if err != nil || got != tt.want {
				t.Errorf("expected %q, got %q, %v", tt.want, got, err)
			}
		})
	}
}

func TestResolveChromePath_NotFound(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("absolute install locations may exist on this platform")
	}
	t.Setenv("CHROME_PATH", "")
	t.Setenv("CHROME_BIN", "")
	t.Setenv("PATH", "")

	if _, err := ResolveChromePath(""); !errors.Is(err, ErrChromeNotFound) {
		t.Errorf("expected ErrChromeNotFound, got %v", err)
	}
}

func TestChromeCandidates(t *testing.T) {
	linux := chromeCandidates("linux")
	if len(linux) == 0 || linux[0] != "chrome-headless-shell" {
		t.Errorf("unexpected linux candidates: %v", linux)
	}

	darwin := chromeCandidates("darwin")
	if !strings.Contains(darwin[0], "Chromium") {
		t.Errorf("expected Chromium first on darwin, got %v", darwin)
	}

	t.Setenv("PROGRAMFILES", `C:\Program Files`)
	t.Setenv("PROGRAMFILES(X86)", "")
	t.Setenv("LOCALAPPDATA", "")
	if n := len(chromeCandidates("windows")); n != 2 {
		t.Errorf("expected 2 windows candidates, got %d", n)
	}
}

func TestResolveExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	tests := []struct {
		name     string
		input    string
		wantPath bool
	}{
		{"absolute existing", "/bin/sh", true},
		{"absolute missing", "/definitely/not/a/real/path/chrome", false},
		{"command on PATH", "sh", true},
		{"unknown command", "definitely-not-a-real-command-xyz123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveExecutable(tt.input)
			if tt.wantPath != (got != "") {
				t.Errorf("resolveExecutable(%q) = %q", tt.input, got)
			}
		})
	}
}
