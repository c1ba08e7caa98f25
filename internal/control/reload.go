package control

import (
	"context"
	"fmt"
	"time"

	"speechinsight/internal/config"

	"github.com/spf13/cobra"
)

// NewReloadCmd asks the daemon to re-read its config file.
func NewReloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload config in the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			var resp SimpleResponse
			if err := Call(ctx, cfg.Paths.SocketPath, Request{Op: OpReload}, &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("reload failed: %s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reload ok:", resp.Message)
			return nil
		},
	}
}
