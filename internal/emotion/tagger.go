// Package emotion tags a transcript sentence by sentence with an external
// classifier and ranks the labels it returns.
package emotion

import (
	"context"
	"io"
	"sort"
	"strings"

	"speechinsight/internal/recording"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Neutral is reported when nothing could be classified.
const Neutral = "Neutral"

const sentenceSep = ". "

// Classifier labels a single sentence.
type Classifier interface {
	Classify(ctx context.Context, sentence string) (string, error)
}

// Result is the ranked outcome of tagging a transcript.
type Result struct {
	Dominant string
	// Scores are sorted by score, highest first. Equal scores keep the order
	// in which the emotion first appeared in the transcript.
	Scores    []recording.EmotionScore
	Sentences int
	Failed    int
}

// Tagger fans sentences out to a Classifier.
type Tagger struct {
	Classifier  Classifier
	Concurrency int
	Logger      *logrus.Logger
}

func NewTagger(c Classifier, concurrency int, logger *logrus.Logger) *Tagger {
	return &Tagger{Classifier: c, Concurrency: concurrency, Logger: logger}
}

// SplitSentences splits on ". " and drops empty pieces.
func SplitSentences(transcript string) []string {
	parts := strings.Split(transcript, sentenceSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Tag classifies every sentence. A failed classification is logged and
// skipped but still counts toward the denominator, so scores can sum to less
// than one. The only error returned is context cancellation.
func (t *Tagger) Tag(ctx context.Context, transcript string) (Result, error) {
	logger := t.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	sentences := SplitSentences(transcript)
	res := Result{Dominant: Neutral, Scores: []recording.EmotionScore{}, Sentences: len(sentences)}
	if len(sentences) == 0 {
		return res, nil
	}

	labels := make([]string, len(sentences))
	limit := t.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range sentences {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			label, err := t.Classifier.Classify(gctx, s)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warnf("classify sentence %d: %v", i, err)
				return nil
			}
			labels[i] = strings.TrimSpace(label)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	counts := map[string]int{}
	var order []string
	for _, l := range labels {
		if l == "" {
			res.Failed++
			continue
		}
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}

	total := float64(len(sentences))
	for _, l := range order {
		res.Scores = append(res.Scores, recording.EmotionScore{Emotion: l, Score: float64(counts[l]) / total})
	}
	sort.SliceStable(res.Scores, func(i, j int) bool {
		return res.Scores[i].Score > res.Scores[j].Score
	})
	if len(res.Scores) > 0 {
		res.Dominant = res.Scores[0].Emotion
	}
	return res, nil
}
