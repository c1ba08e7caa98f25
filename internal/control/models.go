package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"speechinsight/internal/config"
	"speechinsight/internal/fsutil"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// known ggml models for the local whisper transcriber.
var modelRegistry = map[string]string{
	"ggml-base.en.bin":             "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
	"ggml-small-q5_1.bin":          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin":         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium-q5_1.bin",
	"ggml-large-v3-q5_0.bin":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo-q8_0.bin",
}

// modelDir is where downloaded models live: next to the configured model,
// or under the state dir.
func modelDir(cfg *config.Config) string {
	if cfg.Transcription.ModelPath != "" {
		return filepath.Dir(os.ExpandEnv(cfg.Transcription.ModelPath))
	}
	return filepath.Join(cfg.Paths.StateDir, "models")
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models for local transcription",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			dir := modelDir(cfg)
			names := make([]string, 0, len(modelRegistry))
			for n := range modelRegistry {
				names = append(names, n)
			}
			sort.Strings(names)
			active := filepath.Base(cfg.Transcription.ModelPath)
			for _, n := range names {
				var marks []string
				if fsutil.FileExists(filepath.Join(dir, n)) {
					marks = append(marks, "downloaded")
				}
				if n == active {
					marks = append(marks, "active")
				}
				line := "- " + n
				if len(marks) > 0 {
					line += " (" + strings.Join(marks, ", ") + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := args[0]
			url, ok := modelRegistry[name]
			if !ok {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			dest := filepath.Join(modelDir(cfg), name)
			fmt.Fprintf(cmd.OutOrStdout(), "downloading %s -> %s\n", name, dest)
			return downloadFile(cmd.Context(), resty.New(), url, dest)
		},
	}
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set transcription.model_path in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			val := args[0]
			// a bare name resolves inside the model dir
			if !strings.ContainsRune(val, filepath.Separator) {
				val = filepath.Join(modelDir(cfg), val)
			}
			if _, err := config.Update(cfg.Paths.ConfigPath, func(c *config.Config) {
				c.Transcription.ModelPath = val
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", val)
			return nil
		},
	}
}

// downloadFile streams url into dest through a .part file so an interrupted
// download never leaves a truncated model behind.
func downloadFile(ctx context.Context, client *resty.Client, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".part"
	resp, err := client.R().SetContext(ctx).SetOutput(tmp).Get(url)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return fmt.Errorf("download failed: %s", resp.Status())
	}
	return os.Rename(tmp, dest)
}
