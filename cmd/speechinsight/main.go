package main

import (
	"fmt"
	"os"

	"speechinsight/internal/control"
	"speechinsight/internal/daemon"
	"speechinsight/internal/ui"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "speechinsight",
		Short: "Speechinsight: voice journal with emotion analysis",
		Long: `Speechinsight keeps voice journal recordings on disk, transcribes them
(AssemblyAI or local whisper.cpp), and summarizes the emotions in each one
with Gemini, OpenAI, or a local per-sentence classifier.`,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("Speechinsight v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/speechinsight/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	// Recordings
	root.AddCommand(control.NewListCmd(cfgPath))
	root.AddCommand(control.NewShowCmd(cfgPath))
	root.AddCommand(control.NewImportCmd(cfgPath))
	root.AddCommand(control.NewRecordCmd(cfgPath))
	root.AddCommand(control.NewRenameCmd(cfgPath))
	root.AddCommand(control.NewAnalyzeCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewWaveformCmd(cfgPath))
	root.AddCommand(control.NewSweepCmd(cfgPath))
	root.AddCommand(control.NewBrowseCmd(cfgPath))

	// Daemon
	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewReloadCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))

	// Setup
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }
		section := func(name string) { writeln(ui.PanelTitleStyle.Render(name)) }

		write("%s voice journal with emotion analysis %s\n", ui.TitleStyle.Render("Speechinsight"), ui.DimStyle.Render("(v"+version+")"))
		writeln(ui.DimStyle.Render("Stores recordings, transcribes them, and summarizes how you sounded."))
		writeln("")

		section("Usage")
		writeln("  speechinsight [command] [flags]")
		writeln("")

		section("Key commands")
		writeln("  import <file> [--analyze]   add an audio file (WAV gets a waveform)")
		writeln("  record [--max 5m]           record from the mic (portaudio builds)")
		writeln("  list | show <id> | browse   look through recordings")
		writeln("  analyze <id>|--all          transcribe + emotion summary")
		writeln("  start|stop|restart          analysis daemon lifecycle")
		writeln("  status | health | reload    talk to the running daemon")
		writeln("  doctor | setup              check config, keys, models")
		writeln("")

		section("Notable flags & env")
		writeln("  -c, --config <path>     config file (default ~/.config/speechinsight/config.toml)")
		writeln("  --auto-analyze          daemon queues unanalyzed recordings")
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus text)")
		writeln("  Env: ASSEMBLYAI_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY,")
		writeln("       SPEECHINSIGHT_ANALYSIS_PROVIDER, SPEECHINSIGHT_STORAGE_DIR,")
		writeln("       SPEECHINSIGHT_CLASSIFIER_URL, SPEECHINSIGHT_LOG_LEVEL=debug")
		writeln("")

		section("Examples")
		writeln("  speechinsight import ~/Desktop/evening.wav --title \"Evening walk\" --analyze")
		writeln("  speechinsight analyze --all")
		writeln("  speechinsight start --auto-analyze --metrics-addr 127.0.0.1:9318")
		writeln("  speechinsight analyze --daemon recording-1700000000000")
		writeln("  speechinsight test-hook --emotion Sadness \"rough day\"")
		writeln("")

		section("Commands")
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s %s\n", ui.SelectedStyle.Render(fmt.Sprintf("%-12s", c.Name())), c.Short)
		}
	})
}
