package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/emotion"
	"speechinsight/internal/recording"

	"github.com/sirupsen/logrus"
)

// Source names recorded on summaries.
const (
	SourceGemini    = "gemini"
	SourceOpenAI    = "openai"
	SourceHeuristic = "heuristic"
)

// ErrNoAPIKey is returned when a generative provider is selected without a key.
var ErrNoAPIKey = errors.New("analysis api key not set")

// Analyzer produces an emotion summary for a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (recording.EmotionSummary, error)
}

// generator sends one prompt and returns the raw text answer.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// modelAnalyzer is the shared prompt -> retry -> parse path for generative
// providers.
type modelAnalyzer struct {
	gen     generator
	source  string
	retry   RetryPolicy
	timeout time.Duration
	logger  *logrus.Logger
}

func (a *modelAnalyzer) Analyze(ctx context.Context, transcript string) (recording.EmotionSummary, error) {
	if strings.TrimSpace(transcript) == "" {
		return recording.EmotionSummary{}, errors.New("empty transcript")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	prompt := BuildPrompt(transcript)
	raw, err := callWithRetry(ctx, a.retry, a.logger, func(ctx context.Context) (string, error) {
		return a.gen.Generate(ctx, prompt)
	})
	if err != nil {
		return recording.EmotionSummary{}, fmt.Errorf("%s: %w", a.source, err)
	}
	sum, err := ParseSummary(raw)
	if err != nil {
		if a.logger != nil {
			a.logger.Debugf("%s raw answer: %s", a.source, raw)
		}
		return recording.EmotionSummary{}, err
	}
	sum.Source = a.source
	return sum, nil
}

// New builds the analyzer selected by cfg.Analysis.Provider.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Analyzer, error) {
	switch cfg.Analysis.Provider {
	case SourceGemini:
		return NewGeminiAnalyzer(ctx, cfg.Analysis.APIKey, cfg.Analysis.Model, cfg.AnalysisTimeout(), logger)
	case SourceOpenAI:
		return NewOpenAIAnalyzer(cfg.Analysis.APIKey, cfg.Analysis.Model, cfg.AnalysisTimeout(), logger)
	case SourceHeuristic:
		return NewHeuristic(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown analysis provider %q", cfg.Analysis.Provider)
}

// NewHeuristic builds a HeuristicAnalyzer backed by the configured classifier.
func NewHeuristic(cfg *config.Config, logger *logrus.Logger) *HeuristicAnalyzer {
	c := emotion.NewHTTPClassifier(cfg.Classifier.URL, 30*time.Second)
	return &HeuristicAnalyzer{Tagger: emotion.NewTagger(c, cfg.Classifier.Concurrency, logger)}
}
