package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWaitForShutdownSucceedsWhenPidFileRemoved(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "speechinsight.pid")
	if err := os.WriteFile(pidPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(pidPath)
	}()
	if err := waitForShutdown(pidPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForShutdownTimesOutOnAlivePid(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "speechinsight.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForShutdown(pidPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestLivePID(t *testing.T) {
	dir := t.TempDir()
	if _, alive := livePID(filepath.Join(dir, "missing.pid")); alive {
		t.Fatalf("missing pid file reported alive")
	}
	self := filepath.Join(dir, "self.pid")
	if err := os.WriteFile(self, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, alive := livePID(self); !alive || pid != os.Getpid() {
		t.Fatalf("pid=%d alive=%v", pid, alive)
	}
	if err := stop(filepath.Join(dir, "missing.pid")); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("stop without daemon: %v", err)
	}
}

func TestRuntimeEnv(t *testing.T) {
	cmd := NewServeCmd(new(string))
	if env := runtimeEnv(cmd); len(env) != 0 {
		t.Fatalf("no flags set, got %v", env)
	}
	if err := cmd.Flags().Set("auto-analyze", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cmd.Flags().Set("metrics-addr", "127.0.0.1:9999"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := strings.Join(runtimeEnv(cmd), " ")
	if got != "SPEECHINSIGHT_AUTO_ANALYZE=true SPEECHINSIGHT_METRICS_ADDR=127.0.0.1:9999" {
		t.Fatalf("env=%q", got)
	}
}
