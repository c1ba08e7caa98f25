// Package hook runs user commands after a recording has been analyzed.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"speechinsight/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job describes one analyzed recording handed to a hook.
type Job struct {
	RecordingID string
	Title       string
	Emotion     string
	Text        string
	Timestamp   time.Time
}

// Runner executes the selected hook with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	hook     *config.HookConfig
	lastRun  map[*config.HookConfig]time.Time
	mu       sync.Mutex
	hostname string
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	host, _ := os.Hostname()
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		lastRun:  map[*config.HookConfig]time.Time{},
		hostname: host,
	}
	if len(cfg.Hooks) > 0 {
		r.hook = &cfg.Hooks[0]
	}
	return r
}

// SelectHook sets the hook used by ShouldRun and Run.
func (r *Runner) SelectHook(hk *config.HookConfig) {
	r.mu.Lock()
	r.hook = hk
	r.mu.Unlock()
}

// ShouldRun returns whether the selected hook's cooldown has elapsed.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hook == nil {
		return false
	}
	if r.hook.CooldownSec <= 0 {
		return true
	}
	last, ok := r.lastRun[r.hook]
	if !ok {
		return true
	}
	return time.Since(last).Seconds() >= r.hook.CooldownSec
}

// Run executes the selected hook. The payload (prefix + text) is passed as
// the last argument; job fields are also exported as environment variables.
func (r *Runner) Run(ctx context.Context, job Job) error {
	r.mu.Lock()
	hk := r.hook
	if hk != nil {
		r.lastRun[hk] = time.Now()
	}
	r.mu.Unlock()
	if hk == nil {
		return fmt.Errorf("no hook configured; add [[hooks]] entries")
	}

	name, args, err := commandLine(hk)
	if err != nil {
		return err
	}

	prefix := expandPrefix(hk.Prefix, r.hostname, job)
	text := job.Text
	if hk.RedactPII {
		text = redactPII(text)
	}
	args = append(args, strings.TrimSpace(prefix+text))

	runCtx := ctx
	if hk.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*hk.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Env = os.Environ()
	for k, v := range hk.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		"SPEECHINSIGHT_RECORDING_ID="+job.RecordingID,
		"SPEECHINSIGHT_TITLE="+job.Title,
		"SPEECHINSIGHT_EMOTION="+job.Emotion,
		"SPEECHINSIGHT_TEXT="+text,
		"SPEECHINSIGHT_PREFIX="+prefix,
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 && r.logger != nil {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// commandLine splits Command with shell quoting rules when Args is empty, so
// `command = "notify-send -u low"` works without a separate args list.
func commandLine(hk *config.HookConfig) (string, []string, error) {
	cmd := strings.TrimSpace(hk.Command)
	if cmd == "" {
		return "", nil, fmt.Errorf("hook command is empty")
	}
	if len(hk.Args) > 0 {
		return cmd, append([]string{}, hk.Args...), nil
	}
	parts, err := ParseArgs(cmd)
	if err != nil {
		return "", nil, fmt.Errorf("parse hook command: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("hook command is empty")
	}
	return parts[0], parts[1:], nil
}

func expandPrefix(prefix, hostname string, job Job) string {
	return strings.NewReplacer(
		"${hostname}", hostname,
		"${emotion}", job.Emotion,
		"${title}", job.Title,
		"${id}", job.RecordingID,
	).Replace(prefix)
}

// ParseArgs splits a command string with shell quoting rules.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
