// Package daemon holds the start/stop lifecycle commands for the analysis
// daemon.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/logging"
	"speechinsight/internal/run"

	"github.com/spf13/cobra"
)

// ErrNotRunning is returned when no live daemon owns the pid file.
var ErrNotRunning = errors.New("daemon not running")

// NewStartCmd starts the daemon in the background, or in the foreground with
// --foreground (used by the launchd agent).
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the analysis daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := runtimeEnv(cmd)
			if fg, _ := cmd.Flags().GetBool("foreground"); fg {
				for _, kv := range env {
					k, v, _ := strings.Cut(kv, "=")
					if err := os.Setenv(k, v); err != nil {
						return fmt.Errorf("set %s: %w", k, err)
					}
				}
				return serve(*cfgPath)
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if pid, alive := livePID(cfg.Paths.PidPath); alive {
				return fmt.Errorf("already running with pid %d", pid)
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
			child.Env = append(os.Environ(), env...)
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			if err := child.Start(); err != nil {
				return err
			}
			for i := 0; i < 20; i++ {
				if _, err := os.Stat(cfg.Paths.PidPath); err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "speechinsight daemon started (pid %d)\n", child.Process.Pid)
			return child.Process.Release()
		},
	}
	cmd.Flags().Bool("foreground", false, "run in the foreground instead of forking")
	addRuntimeFlags(cmd)
	return cmd
}

// NewServeCmd runs the daemon in the foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the analysis daemon (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kv := range runtimeEnv(cmd) {
				k, v, _ := strings.Cut(kv, "=")
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
			return serve(*cfgPath)
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return err
	}
	return run.Serve(cfg, logger)
}

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("auto-analyze", false, "queue unanalyzed recordings automatically for this run")
	cmd.Flags().String("metrics-addr", "", "enable metrics at address (e.g., 127.0.0.1:9318) for this run")
}

// runtimeEnv turns per-run flags into env overrides understood by config.Load.
func runtimeEnv(cmd *cobra.Command) []string {
	var env []string
	if f := cmd.Flag("auto-analyze"); f != nil && f.Changed {
		env = append(env, "SPEECHINSIGHT_AUTO_ANALYZE="+f.Value.String())
	}
	if f := cmd.Flag("metrics-addr"); f != nil && f.Value.String() != "" {
		env = append(env, "SPEECHINSIGHT_METRICS_ADDR="+f.Value.String())
	}
	return env
}

// NewStopCmd stops the daemon.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the analysis daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := stop(cfg.Paths.PidPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stop signal sent")
			return nil
		},
	}
}

// NewRestartCmd stops then starts.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the analysis daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := stop(cfg.Paths.PidPath); err != nil && !errors.Is(err, ErrNotRunning) {
				return err
			}
			if err := waitForShutdown(cfg.Paths.PidPath, 5*time.Second); err != nil {
				return err
			}
			start := NewStartCmd(cfgPath)
			start.SetOut(cmd.OutOrStdout())
			for _, name := range []string{"auto-analyze", "metrics-addr"} {
				if f := cmd.Flag(name); f != nil && f.Changed {
					if err := start.Flags().Set(name, f.Value.String()); err != nil {
						return err
					}
				}
			}
			return start.RunE(start, args)
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

func stop(pidPath string) error {
	pid, alive := livePID(pidPath)
	if !alive {
		return ErrNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// livePID reads the pid file and reports whether that process exists.
func livePID(path string) (int, bool) {
	pid, err := readPID(path)
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	return pid, proc.Signal(syscall.Signal(0)) == nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// waitForShutdown polls until the pid file is gone or names a dead process.
// A stale pid file is removed.
func waitForShutdown(pidPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(pidPath)
		if err != nil {
			return nil
		}
		proc, _ := os.FindProcess(pid)
		if proc != nil {
			if err := proc.Signal(syscall.Signal(0)); err != nil {
				_ = os.Remove(pidPath)
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: daemon did not stop within %s", timeout)
}
