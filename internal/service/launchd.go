// Package service provides launchd plist generation for macOS.
package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"speechinsight/internal/fsutil"
)

// Label is the launchd job label for the analysis daemon.
const Label = "com.speechinsight.agent"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>start</string>
    <string>--config</string>
    <string>{{.Config}}</string>
    <string>--foreground</string>
    {{- if .AutoAnalyze }}
    <string>--auto-analyze</string>
    {{- end }}
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range $k, $v := .Env }}
    <key>{{$k}}</key><string>{{$v}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>
`

var launchdTpl = template.Must(template.New("launchd").Parse(launchdTemplate))

type LaunchdParams struct {
	Label       string
	Binary      string
	Config      string
	Log         string
	AutoAnalyze bool
	Env         map[string]string
}

// AgentsDir is ~/Library/LaunchAgents.
func AgentsDir() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents")
}

// LaunchdPath returns the plist path for a label.
func LaunchdPath(label string) string {
	return filepath.Join(AgentsDir(), fmt.Sprintf("%s.plist", label))
}

// RenderPlist returns the plist document for params.
func RenderPlist(params LaunchdParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := launchdTpl.Execute(&buf, params); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePlist writes a user-level launchd plist into dir and returns its path.
func WritePlist(dir string, params LaunchdParams) (string, error) {
	data, err := RenderPlist(params)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.plist", params.Label))
	if err := fsutil.WriteFileAtomicSameDir(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Status returns the plist path for label and whether it exists.
func Status(label string) (string, bool) {
	plist := LaunchdPath(label)
	return plist, fsutil.FileExists(plist)
}
