package control

import (
	"fmt"
	"os"
	"path/filepath"

	"speechinsight/internal/config"
	"speechinsight/internal/fsutil"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// NewSetupCmd prepares local storage and, for the whisper provider, fetches
// the configured model if it is missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create storage dirs and download the whisper model if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := config.MustStatePaths(cfg); err != nil {
				return err
			}
			fmt.Fprintf(out, "config:   %s\n", cfg.Paths.ConfigPath)
			fmt.Fprintf(out, "audio:    %s\n", cfg.Storage.AudioDir)
			fmt.Fprintf(out, "metadata: %s\n", cfg.Storage.MetadataDir)
			if cfg.Transcription.Provider != "whisper" {
				fmt.Fprintf(out, "transcription provider is %s; no model needed\n", cfg.Transcription.Provider)
				return nil
			}
			modelPath := os.ExpandEnv(cfg.Transcription.ModelPath)
			if fsutil.FileExists(modelPath) {
				fmt.Fprintln(out, "model already present at", modelPath)
				return nil
			}
			name := filepath.Base(modelPath)
			url, ok := modelRegistry[name]
			if !ok {
				return fmt.Errorf("%s is not a known model; run models list, then models set", name)
			}
			fmt.Fprintf(out, "downloading model to %s\n", modelPath)
			if err := downloadFile(cmd.Context(), resty.New(), url, modelPath); err != nil {
				return err
			}
			fmt.Fprintln(out, "model download complete")
			return nil
		},
	}
}
