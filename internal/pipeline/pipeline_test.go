package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speechinsight/internal/analysis"
	"speechinsight/internal/config"
	"speechinsight/internal/recording"
	"speechinsight/internal/transcribe"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeAnalyzer struct {
	sum   recording.EmotionSummary
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) (recording.EmotionSummary, error) {
	f.calls++
	return f.sum, f.err
}

func newStoreWithRecording(t *testing.T) (*recording.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := recording.Open(filepath.Join(dir, "a"), filepath.Join(dir, "m"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	src := filepath.Join(dir, "capture.m4a")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec, err := s.Save(src, 1000, []float64{0.5})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return s, rec.ID
}

func TestProcessHappyPath(t *testing.T) {
	store, id := newStoreWithRecording(t)
	tr := &fakeTranscriber{text: " I am happy. "}
	an := &fakeAnalyzer{sum: recording.EmotionSummary{DominantEmotion: "Joy", Source: "gemini"}}
	p := &Processor{Store: store, Transcriber: tr, Analyzer: an}

	res, err := p.Process(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.Transcribed || !res.Analyzed || res.UsedFallback {
		t.Fatalf("result=%+v", res)
	}
	got, _ := store.GetByID(id)
	if got.Transcript != "I am happy." || got.EmotionSummary == nil || got.EmotionSummary.DominantEmotion != "Joy" {
		t.Fatalf("stored=%+v", got)
	}

	// Second run is a no-op.
	res, err = p.Process(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("process again: %v", err)
	}
	if res.Transcribed || res.Analyzed || tr.calls != 1 || an.calls != 1 {
		t.Fatalf("expected nothing to run: %+v tr=%d an=%d", res, tr.calls, an.calls)
	}

	if _, err := p.Process(context.Background(), id, Options{Force: true}); err != nil {
		t.Fatalf("force: %v", err)
	}
	if tr.calls != 2 || an.calls != 2 {
		t.Fatalf("force should rerun both stages: tr=%d an=%d", tr.calls, an.calls)
	}
}

func TestProcessNotFound(t *testing.T) {
	store, _ := newStoreWithRecording(t)
	p := &Processor{Store: store, Transcriber: &fakeTranscriber{}, Analyzer: &fakeAnalyzer{}}
	if _, err := p.Process(context.Background(), "recording-1", Options{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestTranscriptionFailureIsStageScoped(t *testing.T) {
	store, id := newStoreWithRecording(t)
	tr := &fakeTranscriber{err: &transcribe.JobFailedError{JobID: "j", Message: transcribe.DefaultFailureMessage}}
	an := &fakeAnalyzer{}
	p := &Processor{Store: store, Transcriber: tr, Analyzer: an}

	_, err := p.Process(context.Background(), id, Options{})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageTranscription {
		t.Fatalf("err=%v", err)
	}
	var jf *transcribe.JobFailedError
	if !errors.As(err, &jf) {
		t.Fatalf("cause lost: %v", err)
	}
	if an.calls != 0 {
		t.Fatalf("analysis should not run")
	}
	got, _ := store.GetByID(id)
	if got.Transcript != "" || got.EmotionSummary != nil {
		t.Fatalf("nothing should be persisted: %+v", got)
	}
}

func TestAnalysisFailureKeepsTranscript(t *testing.T) {
	store, id := newStoreWithRecording(t)
	tr := &fakeTranscriber{text: "I am sad"}
	an := &fakeAnalyzer{err: &analysis.ParseError{Raw: "nope", Err: errors.New("bad json")}}
	p := &Processor{Store: store, Transcriber: tr, Analyzer: an}

	_, err := p.Process(context.Background(), id, Options{})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageAnalysis {
		t.Fatalf("err=%v", err)
	}
	var pe *analysis.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("parse error should be reachable: %v", err)
	}
	got, _ := store.GetByID(id)
	if got.Transcript != "I am sad" {
		t.Fatalf("transcript not persisted: %+v", got)
	}

	// Retrying only reruns analysis.
	an.err = nil
	an.sum = recording.EmotionSummary{DominantEmotion: "Sadness"}
	res, err := p.Process(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tr.calls != 1 || an.calls != 2 || res.Transcribed || !res.Analyzed {
		t.Fatalf("tr=%d an=%d res=%+v", tr.calls, an.calls, res)
	}
}

func TestAnalysisFallback(t *testing.T) {
	store, id := newStoreWithRecording(t)
	primary := &fakeAnalyzer{err: errors.New("503 unavailable")}
	fallback := &fakeAnalyzer{sum: recording.EmotionSummary{DominantEmotion: "Neutral", Source: "heuristic"}}
	p := &Processor{Store: store, Transcriber: &fakeTranscriber{text: "hello"}, Analyzer: primary, Fallback: fallback}

	res, err := p.Process(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.UsedFallback || fallback.calls != 1 {
		t.Fatalf("fallback not used: %+v", res)
	}
	if res.Recording.EmotionSummary.Source != "heuristic" {
		t.Fatalf("source=%q", res.Recording.EmotionSummary.Source)
	}
}

func TestEmptyTranscriptSkipsAnalysis(t *testing.T) {
	store, id := newStoreWithRecording(t)
	an := &fakeAnalyzer{}
	p := &Processor{Store: store, Transcriber: &fakeTranscriber{text: "   "}, Analyzer: an}
	res, err := p.Process(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if an.calls != 0 || res.Analyzed {
		t.Fatalf("analysis should be skipped")
	}
}

func TestFromConfigAttachesFallback(t *testing.T) {
	store, _ := newStoreWithRecording(t)
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Analysis.Provider = "openai"
	cfg.Analysis.APIKey = "sk-test"
	cfg.Analysis.FallbackHeuristic = true
	p, err := FromConfig(context.Background(), cfg, nil, store)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if p.Fallback == nil || p.Transcriber == nil || p.Analyzer == nil {
		t.Fatalf("processor not fully wired: %+v", p)
	}

	cfg.Analysis.Provider = "heuristic"
	p, err = FromConfig(context.Background(), cfg, nil, store)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if p.Fallback != nil {
		t.Fatalf("heuristic provider should not get a fallback")
	}

	cfg.Analysis.Provider = "gemini"
	cfg.Analysis.APIKey = ""
	p, err = FromConfig(context.Background(), cfg, nil, store)
	if err != nil {
		t.Fatalf("missing key with fallback should degrade: %v", err)
	}
	if _, ok := p.Analyzer.(*analysis.HeuristicAnalyzer); !ok || p.Fallback != nil {
		t.Fatalf("want heuristic primary, got %T", p.Analyzer)
	}

	cfg.Analysis.FallbackHeuristic = false
	if _, err := FromConfig(context.Background(), cfg, nil, store); !errors.Is(err, analysis.ErrNoAPIKey) {
		t.Fatalf("err=%v", err)
	}
}
