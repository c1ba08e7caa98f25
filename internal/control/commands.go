package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"speechinsight/internal/browse"
	"speechinsight/internal/config"
	"speechinsight/internal/fsutil"
	"speechinsight/internal/logging"
	"speechinsight/internal/pipeline"
	"speechinsight/internal/recording"
	"speechinsight/internal/transcribe"
	"speechinsight/internal/ui"
	"speechinsight/internal/waveform"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// env bundles what the recording commands need.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *recording.Store
}

func openEnv(cfgPath string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Configure(cfg, logging.WithConsole(os.Stderr, logrus.WarnLevel))
	if err != nil {
		return nil, err
	}
	store, err := recording.Open(cfg.Storage.AudioDir, cfg.Storage.MetadataDir, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) meterInterval() time.Duration {
	if e.cfg.Audio.MeterMS <= 0 {
		return waveform.DefaultInterval
	}
	return time.Duration(e.cfg.Audio.MeterMS) * time.Millisecond
}

func (e *env) get(id string) (*recording.Recording, error) {
	rec, ok := e.store.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", recording.ErrNotFound, id)
	}
	return rec, nil
}

// NewListCmd lists recordings newest first.
func NewListCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			recs, err := e.store.List(cmd.Context())
			if err != nil {
				return err
			}
			recording.SortNewestFirst(recs)
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(recs) > limit {
				recs = recs[:limit]
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(recs)
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "no recordings")
				return nil
			}
			for _, rec := range recs {
				emotion := "-"
				if rec.EmotionSummary != nil {
					emotion = rec.EmotionSummary.DominantEmotion
				}
				fmt.Fprintf(out, "%s  %s  %s  %-24s %s\n",
					rec.ID,
					ui.FormatTimestamp(rec.CreatedAt()),
					ui.FormatDuration(rec.Length()),
					ui.Truncate(rec.Title, 24),
					emotion)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	cmd.Flags().Int("limit", 0, "show at most this many recordings")
	return cmd
}

// NewShowCmd prints one recording with its analysis.
func NewShowCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recording with its transcript and analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			rec, err := e.get(args[0])
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printRecording(cmd.OutOrStdout(), rec, e.cfg.UI.Bars)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func printRecording(w io.Writer, rec *recording.Recording, bars int) {
	fmt.Fprintln(w, ui.TitleStyle.Render(rec.Title))
	fmt.Fprintf(w, "id:       %s\n", rec.ID)
	fmt.Fprintf(w, "recorded: %s\n", ui.FormatTimestamp(rec.CreatedAt()))
	fmt.Fprintf(w, "duration: %s\n", ui.FormatDuration(rec.Length()))
	fmt.Fprintf(w, "audio:    %s\n", rec.URI)
	fmt.Fprintln(w, ui.WaveformStyle.Render(ui.RenderBars(rec.WaveformData, bars)))

	if sum := rec.EmotionSummary; sum != nil {
		fmt.Fprintf(w, "\nemotion:  %s (%s)\n", ui.EmotionStyle.Render(sum.DominantEmotion), sum.Source)
		for _, s := range sum.EmotionScores {
			fmt.Fprintf(w, "  %-12s %s\n", s.Emotion, ui.FormatPercent(s.Score))
		}
		if sum.EmotionSummary != "" {
			fmt.Fprintf(w, "\n%s\n", sum.EmotionSummary)
		}
		if sum.Summary != "" {
			fmt.Fprintf(w, "\nsummary:\n%s\n", sum.Summary)
		}
		if len(sum.InterestingInsights) > 0 {
			fmt.Fprintln(w, "\ninsights:")
			for _, in := range sum.InterestingInsights {
				fmt.Fprintf(w, "  - %s\n", in)
			}
		}
		if len(sum.MostUsedWords) > 0 {
			words := make([]string, 0, len(sum.MostUsedWords))
			for _, wc := range sum.MostUsedWords {
				words = append(words, fmt.Sprintf("%s (%d)", wc.Word, wc.Count))
			}
			fmt.Fprintf(w, "\ntop words: %s\n", strings.Join(words, ", "))
		}
	}
	if rec.Transcript != "" {
		fmt.Fprintf(w, "\ntranscript:\n%s\n", rec.Transcript)
	}
}

// NewImportCmd stores an existing audio file as a new recording.
func NewImportCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <audio-file>",
		Short: "Import an audio file as a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			src := args[0]
			if !fsutil.FileExists(src) {
				return fmt.Errorf("no such file: %s", src)
			}
			dur, _ := cmd.Flags().GetDuration("duration")
			var samples []float64
			if strings.EqualFold(filepath.Ext(src), ".wav") {
				a, err := analyzeWAVFile(src, e.meterInterval())
				if err != nil {
					return err
				}
				samples = a.Samples
				if dur == 0 {
					dur = a.Duration
				}
			}

			staged := src
			if move, _ := cmd.Flags().GetBool("move"); !move {
				staged, err = stageCopy(src, e.store.AudioDir())
				if err != nil {
					return err
				}
			}
			rec, err := e.store.Save(staged, dur.Milliseconds(), samples)
			if err != nil {
				if staged != src {
					_ = os.Remove(staged)
				}
				return err
			}
			if title, _ := cmd.Flags().GetString("title"); title != "" {
				if rec, err = e.store.UpdateTitle(rec.ID, title); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", rec.ID, ui.FormatDuration(rec.Length()))
			if analyze, _ := cmd.Flags().GetBool("analyze"); analyze {
				return analyzeLocal(cmd.Context(), cmd.OutOrStdout(), e, []string{rec.ID}, false)
			}
			return nil
		},
	}
	cmd.Flags().String("title", "", "title for the recording")
	cmd.Flags().Bool("move", false, "move the file instead of copying it")
	cmd.Flags().Duration("duration", 0, "duration when it cannot be read from the file (e.g. 1m30s)")
	cmd.Flags().Bool("analyze", false, "transcribe and analyze after importing")
	return cmd
}

func analyzeWAVFile(path string, interval time.Duration) (waveform.Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return waveform.Analysis{}, err
	}
	defer f.Close()
	a, err := waveform.AnalyzeWAV(f, interval)
	if err != nil {
		return waveform.Analysis{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// stageCopy copies src into dir under a hidden temporary name that keeps the
// extension, so the store can move it into place.
func stageCopy(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".import-*"+filepath.Ext(src))
	if err != nil {
		return "", err
	}
	dst := f.Name()
	_ = f.Close()
	_ = os.Remove(dst)
	if err := fsutil.CopyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// NewRenameCmd sets a recording's title.
func NewRenameCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change a recording's title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return errors.New("title must not be empty")
			}
			rec, err := e.store.UpdateTitle(args[0], title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s renamed to %q\n", rec.ID, rec.Title)
			return nil
		},
	}
}

// NewAnalyzeCmd transcribes and analyzes recordings, locally or via the daemon.
func NewAnalyzeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [id...]",
		Short: "Transcribe and analyze recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			ids := args
			if all, _ := cmd.Flags().GetBool("all"); all {
				ids, err = unanalyzedIDs(cmd.Context(), e.store)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return errors.New("nothing to analyze; pass ids or --all")
			}
			if viaDaemon, _ := cmd.Flags().GetBool("daemon"); viaDaemon {
				return analyzeViaDaemon(cmd.Context(), cmd.OutOrStdout(), e.cfg.Paths.SocketPath, ids, force)
			}
			return analyzeLocal(cmd.Context(), cmd.OutOrStdout(), e, ids, force)
		},
	}
	cmd.Flags().Bool("force", false, "rerun stages that already have results")
	cmd.Flags().Bool("all", false, "analyze every recording without a summary")
	cmd.Flags().Bool("daemon", false, "queue the work on the running daemon")
	return cmd
}

func unanalyzedIDs(ctx context.Context, store *recording.Store) ([]string, error) {
	recs, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	recording.SortNewestFirst(recs)
	var ids []string
	for i := len(recs) - 1; i >= 0; i-- {
		if !recs[i].Analyzed() {
			ids = append(ids, recs[i].ID)
		}
	}
	return ids, nil
}

func analyzeLocal(ctx context.Context, w io.Writer, e *env, ids []string, force bool) error {
	proc, err := pipeline.FromConfig(ctx, e.cfg, e.logger, e.store)
	if err != nil {
		return err
	}
	return runAnalyses(ctx, w, proc, ids, force)
}

type processor interface {
	Process(ctx context.Context, id string, opts pipeline.Options) (pipeline.Result, error)
}

func runAnalyses(ctx context.Context, w io.Writer, proc processor, ids []string, force bool) error {
	failed := 0
	for _, id := range ids {
		res, err := proc.Process(ctx, id, pipeline.Options{Force: force})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintf(w, "%s: %s %v\n", id, ui.ErrorStyle.Render("failed"), err)
			var se *pipeline.StageError
			if errors.As(err, &se) && se.Stage == pipeline.StageAnalysis {
				fmt.Fprintf(w, "%s: transcript saved; rerun analyze to retry analysis\n", id)
			}
			continue
		}
		switch {
		case res.Recording.EmotionSummary != nil:
			sum := res.Recording.EmotionSummary
			note := ""
			if res.UsedFallback {
				note = ", fallback"
			}
			if !res.Transcribed && !res.Analyzed {
				note += ", cached"
			}
			fmt.Fprintf(w, "%s: %s (%s%s)\n", res.Recording.ID, ui.EmotionStyle.Render(sum.DominantEmotion), sum.Source, note)
		default:
			fmt.Fprintf(w, "%s: no speech found\n", res.Recording.ID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d recordings failed", failed, len(ids))
	}
	return nil
}

func analyzeViaDaemon(ctx context.Context, w io.Writer, socket string, ids []string, force bool) error {
	failed := 0
	for _, id := range ids {
		callCtx, cancel := context.WithTimeout(ctx, socketTimeout)
		var resp AnalyzeResponse
		err := Call(callCtx, socket, Request{Op: OpAnalyze, ID: id, Force: force}, &resp)
		cancel()
		if err != nil {
			return err
		}
		if !resp.OK {
			failed++
			fmt.Fprintf(w, "%s: %s\n", id, resp.Message)
			continue
		}
		fmt.Fprintf(w, "%s: %s (job %s)\n", id, resp.Message, resp.JobID)
	}
	if failed > 0 {
		return fmt.Errorf("daemon rejected %d of %d recordings", failed, len(ids))
	}
	return nil
}

// NewWaveformCmd prints waveform bars for a recording or a WAV file.
func NewWaveformCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waveform <id|file.wav>",
		Short: "Draw the waveform of a recording or WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			bars, _ := cmd.Flags().GetInt("bars")
			if bars <= 0 {
				bars = e.cfg.UI.Bars
			}
			var samples []float64
			if rec, ok := e.store.GetByID(args[0]); ok {
				samples = rec.WaveformData
			} else if strings.EqualFold(filepath.Ext(args[0]), ".wav") && fsutil.FileExists(args[0]) {
				a, err := analyzeWAVFile(args[0], e.meterInterval())
				if err != nil {
					return err
				}
				samples = a.Samples
			} else {
				return fmt.Errorf("%w: %s", recording.ErrNotFound, args[0])
			}
			if values, _ := cmd.Flags().GetBool("values"); values {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(waveform.NormalizeN(samples, bars))
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.WaveformStyle.Render(ui.RenderBars(samples, bars)))
			return nil
		},
	}
	cmd.Flags().Int("bars", 0, "number of bars (default from config)")
	cmd.Flags().Bool("values", false, "print normalized values as JSON")
	return cmd
}

// NewSweepCmd reports audio files without sidecars and sidecars without audio.
func NewSweepCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Find orphaned audio and dangling metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			rep, err := e.store.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rep.Clean() {
				fmt.Fprintln(out, "store is consistent")
				return nil
			}
			for _, id := range rep.Dangling {
				fmt.Fprintf(out, "dangling: %s (audio missing)\n", id)
			}
			adopt, _ := cmd.Flags().GetBool("adopt")
			for _, path := range rep.Orphans {
				if !adopt {
					fmt.Fprintf(out, "orphan:   %s\n", path)
					continue
				}
				var (
					dur     time.Duration
					samples []float64
				)
				if strings.EqualFold(filepath.Ext(path), ".wav") {
					if a, err := analyzeWAVFile(path, e.meterInterval()); err == nil {
						dur, samples = a.Duration, a.Samples
					} else {
						e.logger.Warnf("sweep: %v", err)
					}
				}
				rec, err := e.store.Adopt(path, dur.Milliseconds(), samples)
				if err != nil {
					fmt.Fprintf(out, "orphan:   %s (adopt failed: %v)\n", path, err)
					continue
				}
				fmt.Fprintf(out, "adopted:  %s as %s\n", path, rec.ID)
			}
			return nil
		},
	}
	cmd.Flags().Bool("adopt", false, "write sidecars for orphaned audio files")
	return cmd
}

// NewTranscribeCmd transcribes an audio file without storing it.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Print the transcript of an audio file",
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
			tr, err := transcribe.New(cfg, logger)
			if err != nil {
				return err
			}
			text, err := tr.Transcribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
			return nil
		},
	}
}

// NewBrowseCmd opens the interactive recording browser.
func NewBrowseCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse recordings interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			return browse.Run(e.store)
		},
	}
}
