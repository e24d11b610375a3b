package chromebrowser

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrChromeNotFound is returned when no Chrome or Chromium executable is available.
var ErrChromeNotFound = errors.New("chrome not found: install Chrome/Chromium, set CHROME_PATH or pass --chrome-path")

// chromeEnvVars are consulted in order when no explicit path is given.
var chromeEnvVars = []string{"CHROME_PATH", "CHROME_BIN"}

// ResolveChromePath picks the browser executable: the explicit path, then the
// environment, then well-known install locations (Chromium before Chrome).
func ResolveChromePath(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}
	for _, name := range chromeEnvVars {
		if p := os.Getenv(name); p != "" {
			return p, nil
		}
	}
	for _, candidate := range chromeCandidates(runtime.GOOS) {
		if p := resolveExecutable(candidate); p != "" {
			return p, nil
		}
	}
	return "", ErrChromeNotFound
}

func chromeCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case "windows":
		var out []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
			root := os.Getenv(env)
			if root == "" {
				continue
			}
			out = append(out,
				filepath.Join(root, "Chromium", "Application", "chrome.exe"),
				filepath.Join(root, "Google", "Chrome", "Application", "chrome.exe"),
			)
		}
		return out
	default:
		return []string{
			"chrome-headless-shell",
			"chromium",
			"chromium-browser",
			"google-chrome-stable",
			"google-chrome",
		}
	}
}

// resolveExecutable returns nameOrPath when it is an existing absolute path, or its
// PATH lookup result for a bare command name.
func resolveExecutable(nameOrPath string) string {
	if filepath.IsAbs(nameOrPath) {
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath
		}
		return ""
	}
	if p, err := exec.LookPath(nameOrPath); err == nil {
		return p
	}
	return ""
}
