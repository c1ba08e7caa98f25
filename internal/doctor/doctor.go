// Package doctor runs environment checks for the CLI and daemon.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/emotion"
	"speechinsight/internal/hook"
	"speechinsight/internal/recording"
	"speechinsight/internal/transcribe"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkDir("audio dir", cfg.Storage.AudioDir),
		checkDir("metadata dir", cfg.Storage.MetadataDir),
	}
	results = append(results, checkTranscription(cfg)...)
	results = append(results, checkAnalysis(ctx, cfg)...)
	for i := range cfg.Hooks {
		results = append(results, checkHookExecutable(fmt.Sprintf("hooks[%d].command", i), &cfg.Hooks[i]))
	}
	results = append(results, checkStore(ctx, cfg))
	results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

// checkDir creates dir if needed and confirms a file can be written there.
func checkDir(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: "not writable: " + err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: dir}
}

func checkKey(label, key, env string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("not set (export %s or set it in the config)", env)}
	}
	return Result{Name: label, Pass: true, Detail: "set"}
}

func checkTranscription(cfg *config.Config) []Result {
	switch cfg.Transcription.Provider {
	case "whisper":
		res := []Result{checkFile("whisper model", cfg.Transcription.ModelPath)}
		if !transcribe.Available() {
			res = append(res, Result{Name: "whisper", Pass: false, Detail: "binary built without whisper support (build with -tags whisper)"})
		}
		return res
	default:
		return []Result{checkKey("transcription api key", cfg.Transcription.APIKey, "ASSEMBLYAI_API_KEY")}
	}
}

func checkAnalysis(ctx context.Context, cfg *config.Config) []Result {
	var res []Result
	switch cfg.Analysis.Provider {
	case "gemini":
		res = append(res, checkKey("analysis api key", cfg.Analysis.APIKey, "GEMINI_API_KEY"))
	case "openai":
		res = append(res, checkKey("analysis api key", cfg.Analysis.APIKey, "OPENAI_API_KEY"))
	}
	if cfg.Analysis.Provider == "heuristic" || cfg.Analysis.FallbackHeuristic {
		res = append(res, checkClassifier(ctx, cfg.Classifier.URL))
	}
	return res
}

func checkClassifier(ctx context.Context, url string) Result {
	label := "classifier"
	if url == "" {
		return Result{Name: label, Pass: false, Detail: "classifier.url not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := emotion.NewHTTPClassifier(url, 3*time.Second).Ping(ctx); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: url}
}

func checkHookExecutable(label string, hk *config.HookConfig) Result {
	cmd := strings.TrimSpace(hk.Command)
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if len(hk.Args) == 0 {
		parts, err := hook.ParseArgs(cmd)
		if err != nil || len(parts) == 0 {
			return Result{Name: label, Pass: false, Detail: fmt.Sprintf("cannot parse %q", cmd)}
		}
		cmd = parts[0]
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.ContainsRune(path, filepath.Separator) {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

// checkStore reports audio files without sidecars and sidecars without audio.
func checkStore(ctx context.Context, cfg *config.Config) Result {
	label := "store consistency"
	store, err := recording.Open(cfg.Storage.AudioDir, cfg.Storage.MetadataDir, nil)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	rep, err := store.Sweep(ctx)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if !rep.Clean() {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("%d orphaned audio, %d dangling sidecars (run: speechinsight sweep)", len(rep.Orphans), len(rep.Dangling))}
	}
	return Result{Name: label, Pass: true, Detail: "ok"}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}
