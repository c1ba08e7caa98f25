package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"speechinsight/internal/emotion"
	"speechinsight/internal/recording"
)

const topWordCount = 10

// HeuristicAnalyzer runs the per-sentence tagger and fills in what it can
// compute locally. It never produces a narrative summary or insights.
type HeuristicAnalyzer struct {
	Tagger *emotion.Tagger
}

func (h *HeuristicAnalyzer) Analyze(ctx context.Context, transcript string) (recording.EmotionSummary, error) {
	res, err := h.Tagger.Tag(ctx, transcript)
	if err != nil {
		return recording.EmotionSummary{}, err
	}
	return recording.EmotionSummary{
		DominantEmotion:     res.Dominant,
		EmotionSummary:      describe(res),
		EmotionScores:       res.Scores,
		MostUsedWords:       TopWords(transcript, topWordCount),
		InterestingInsights: []string{},
		Source:              SourceHeuristic,
	}, nil
}

func describe(res emotion.Result) string {
	if len(res.Scores) == 0 {
		if res.Sentences == 0 {
			return "No speech to analyze."
		}
		return fmt.Sprintf("No emotion could be classified in %d sentence(s).", res.Sentences)
	}
	top := res.Scores[0]
	return fmt.Sprintf("Mostly %s (%.0f%% of %d sentence(s)).", top.Emotion, top.Score*100, res.Sentences)
}

var stopWords = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields(`a about after again all also am an and any are as at be because been
		but by can could did do does doing for from had has have having he her here him his how i if in
		into is it its it's i'm i've just like me more most my no not now of off on once only or other
		our out over really so some such than that that's the their them then there these they this
		those to too up very was we were what when where which while who why will with would you your`) {
		m[w] = struct{}{}
	}
	return m
}()

// TopWords counts words outside a small stop-word list and returns the n
// most frequent. Ties keep first-appearance order.
func TopWords(text string, n int) []recording.WordCount {
	counts := map[string]int{}
	var order []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		w := strings.Trim(f, "'")
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	out := make([]recording.WordCount, 0, len(order))
	for _, w := range order {
		out = append(out, recording.WordCount{Word: w, Count: counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
