package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/doctor"
	"speechinsight/internal/hook"
	"speechinsight/internal/logging"
	"speechinsight/internal/ui"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const socketTimeout = 5 * time.Second

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and recent analysis jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), socketTimeout)
			defer cancel()
			var status Status
			if err := Call(ctx, cfg.Paths.SocketPath, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func printStatus(w io.Writer, status Status) {
	fmt.Fprintf(w, "running: %v\nuptime: %.1fs\nqueue: %d\n", status.Running, status.UptimeSec, status.QueueDepth)
	for _, j := range status.Jobs {
		detail := j.Emotion
		if j.Error != "" {
			detail = j.Error
		}
		fmt.Fprintf(w, "%s  %-7s  %s  %s\n", j.Updated.Local().Format("15:04:05"), j.State, j.RecordingID, detail)
	}
}

// NewHealthCmd pings the daemon.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the daemon answers on its socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), socketTimeout)
			defer cancel()
			var resp SimpleResponse
			if err := Call(ctx, cfg.Paths.SocketPath, Request{Op: OpHealth}, &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("daemon unhealthy: %s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			return tailFile(cmd.OutOrStdout(), cfg.Paths.LogPath, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

func tailFile(w io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}

// NewTestHookCmd runs the hook that would fire for --emotion with sample text.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-hook \"some text\"",
		Short: "Send sample text through the hook chosen for an emotion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg, logging.WithConsole(cmd.ErrOrStderr(), logrus.InfoLevel))
			if err != nil {
				return err
			}
			emotion, _ := cmd.Flags().GetString("emotion")
			hk := hook.SelectHookConfig(cfg, emotion)
			if hk == nil {
				return fmt.Errorf("no hooks configured; add [[hooks]] to %s", cfg.Paths.ConfigPath)
			}
			r := hook.NewRunner(cfg, logger)
			r.SelectHook(hk)
			job := hook.Job{
				RecordingID: "test",
				Title:       "Test hook",
				Emotion:     emotion,
				Text:        args[0],
				Timestamp:   time.Now(),
			}
			fmt.Fprintf(cmd.OutOrStdout(), "running %s\n", hk.Command)
			return r.Run(cmd.Context(), job)
		},
	}
	cmd.Flags().String("emotion", "Neutral", "dominant emotion used to pick the hook")
	return cmd
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cmd.Context(), cfg)
			failed := 0
			for _, r := range results {
				status := ui.PassStyle.Render("ok  ")
				if !r.Pass {
					status = ui.ErrorStyle.Render("fail")
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s %s\n", r.Name, status, r.Detail)
			}
			if failed != 0 {
				return fmt.Errorf("doctor found %d issue(s)", failed)
			}
			return nil
		},
	}
}

// NewServiceCmd manages the launchd agent.
func NewServiceCmd(cfgPath *string) *cobra.Command {
	return newServiceCmd(cfgPath)
}
