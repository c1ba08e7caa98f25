package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechinsight/internal/config"
)

func find(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}

func TestRunReportsKeysAndHooks(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = filepath.Join(dir, "config.toml")
	cfg.Storage.AudioDir = filepath.Join(dir, "audio")
	cfg.Storage.MetadataDir = filepath.Join(dir, "meta")
	cfg.Transcription.APIKey = ""
	cfg.Analysis.Provider = "gemini"
	cfg.Analysis.APIKey = "k"
	cfg.Hooks = []config.HookConfig{{Command: "sh -c true"}, {Command: filepath.Join(dir, "missing-hook")}}

	results := Run(context.Background(), cfg)

	if r, _ := find(results, "config path"); r.Pass {
		t.Fatalf("missing config should fail")
	}
	if r, _ := find(results, "audio dir"); !r.Pass {
		t.Fatalf("audio dir: %+v", r)
	}
	if r, _ := find(results, "transcription api key"); r.Pass || !strings.Contains(r.Detail, "ASSEMBLYAI_API_KEY") {
		t.Fatalf("transcription key: %+v", r)
	}
	if r, _ := find(results, "analysis api key"); !r.Pass {
		t.Fatalf("analysis key: %+v", r)
	}
	if r, _ := find(results, "hooks[0].command"); !r.Pass {
		t.Fatalf("sh should resolve on PATH: %+v", r)
	}
	if r, _ := find(results, "hooks[1].command"); r.Pass {
		t.Fatalf("missing hook should fail: %+v", r)
	}
	if _, ok := find(results, "classifier"); ok {
		t.Fatalf("classifier checked without heuristic analysis")
	}
	if r, _ := find(results, "store consistency"); !r.Pass {
		t.Fatalf("empty store should be clean: %+v", r)
	}
}

func TestCheckClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if r := checkClassifier(context.Background(), srv.URL); !r.Pass {
		t.Fatalf("reachable classifier: %+v", r)
	}
	srv.Close()
	if r := checkClassifier(context.Background(), srv.URL); r.Pass {
		t.Fatalf("closed classifier should fail")
	}
}

func TestCheckHookExecutableRejectsPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if r := checkHookExecutable("hook", &config.HookConfig{Command: path}); r.Pass {
		t.Fatalf("non-executable file should fail")
	}
	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if r := checkHookExecutable("hook", &config.HookConfig{Command: path}); !r.Pass {
		t.Fatalf("executable should pass: %+v", r)
	}
}
