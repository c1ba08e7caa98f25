// Command showcfg prints the effective config, hooks included.
package main

import (
	"flag"
	"fmt"
	"os"

	"speechinsight/internal/config"
)

func main() {
	path := flag.String("config", "", "config file")
	flag.Parse()
	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config=%s\n", cfg.Paths.ConfigPath)
	fmt.Printf("transcription=%s analysis=%s fallback_heuristic=%v\n", cfg.Transcription.Provider, cfg.Analysis.Provider, cfg.Analysis.FallbackHeuristic)
	fmt.Printf("audio_dir=%s metadata_dir=%s\n", cfg.Storage.AudioDir, cfg.Storage.MetadataDir)
	fmt.Printf("hooks=%d\n", len(cfg.Hooks))
	for i, h := range cfg.Hooks {
		fmt.Printf("hook %d emotions=%v aliases=%v cmd=%s args=%v cooldown=%.1fs\n", i, h.Emotions, h.Aliases, h.Command, h.Args, h.CooldownSec)
	}
}
