package pipeline

import (
	"context"
	"errors"
	"fmt"

	"speechinsight/internal/analysis"
	"speechinsight/internal/config"
	"speechinsight/internal/transcribe"

	"github.com/sirupsen/logrus"
)

// FromConfig wires the configured transcriber and analyzer to store. The
// heuristic fallback is attached when analysis.fallback_heuristic is set and
// the primary provider is generative.
func FromConfig(ctx context.Context, cfg *config.Config, logger *logrus.Logger, store Store) (*Processor, error) {
	tr, err := transcribe.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	an, err := analysis.New(ctx, cfg, logger)
	if errors.Is(err, analysis.ErrNoAPIKey) && cfg.Analysis.FallbackHeuristic {
		p := &Processor{Store: store, Transcriber: tr, Analyzer: analysis.NewHeuristic(cfg, logger), Logger: logger}
		p.logger().Warnf("%s analysis has no api key; using the heuristic analyzer", cfg.Analysis.Provider)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	p := &Processor{
		Store:       store,
		Transcriber: tr,
		Analyzer:    an,
		Logger:      logger,
	}
	if cfg.Analysis.FallbackHeuristic && cfg.Analysis.Provider != analysis.SourceHeuristic {
		p.Fallback = analysis.NewHeuristic(cfg, logger)
	}
	return p, nil
}
