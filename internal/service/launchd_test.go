package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritePlist(t *testing.T) {
	dir := t.TempDir()
	path, err := WritePlist(dir, LaunchdParams{
		Label:       Label,
		Binary:      "/usr/local/bin/speechinsight",
		Config:      "/tmp/config.toml",
		Log:         "/tmp/speechinsight.log",
		AutoAnalyze: true,
		Env:         map[string]string{"GEMINI_API_KEY": "k"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != Label+".plist" {
		t.Fatalf("path=%s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(b)
	for _, want := range []string{
		"<string>com.speechinsight.agent</string>",
		"<string>--foreground</string>",
		"<string>--auto-analyze</string>",
		"<key>GEMINI_API_KEY</key><string>k</string>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("plist missing %q:\n%s", want, body)
		}
	}
}

func TestRenderPlistOmitsOptionalBlocks(t *testing.T) {
	b, err := RenderPlist(LaunchdParams{Label: Label, Binary: "/bin/x", Config: "c", Log: "l"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(b), "EnvironmentVariables") || strings.Contains(string(b), "--auto-analyze") {
		t.Fatalf("unexpected optional blocks:\n%s", b)
	}
}
