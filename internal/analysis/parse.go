package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"speechinsight/internal/recording"
)

var fenceRE = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// ParseError is a model answer that could not be decoded into a summary.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed analysis response (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripCodeFence returns the body of the first fenced block in s, or s
// unchanged when there is none.
func StripCodeFence(s string) string {
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ParseSummary decodes a model answer into an EmotionSummary. Scores come back
// sorted highest first and clamped to [0,1].
func ParseSummary(text string) (recording.EmotionSummary, error) {
	var out recording.EmotionSummary
	body := strings.TrimSpace(StripCodeFence(strings.TrimSpace(text)))
	if err := decodeModelJSON(body, &out); err != nil {
		return recording.EmotionSummary{}, &ParseError{Raw: text, Err: err}
	}
	if out.DominantEmotion == "" && len(out.EmotionScores) == 0 && out.Summary == "" && out.EmotionSummary == "" {
		return recording.EmotionSummary{}, &ParseError{Raw: text, Err: errors.New("no analysis fields present")}
	}
	normalize(&out)
	return out, nil
}

// decodeModelJSON tries s as-is, then the span from the first '{' to the
// last '}'.
func decodeModelJSON(s string, v any) error {
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}

func normalize(s *recording.EmotionSummary) {
	s.DominantEmotion = strings.TrimSpace(s.DominantEmotion)
	scores := s.EmotionScores[:0]
	for _, e := range s.EmotionScores {
		e.Emotion = strings.TrimSpace(e.Emotion)
		if e.Emotion == "" {
			continue
		}
		// Some answers use percentages.
		if e.Score > 1 && e.Score <= 100 {
			e.Score /= 100
		}
		e.Score = clamp01(e.Score)
		scores = append(scores, e)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	s.EmotionScores = scores
	if s.EmotionScores == nil {
		s.EmotionScores = []recording.EmotionScore{}
	}
	if s.DominantEmotion == "" {
		s.DominantEmotion = "Neutral"
		if len(s.EmotionScores) > 0 {
			s.DominantEmotion = s.EmotionScores[0].Emotion
		}
	}
	if s.MostUsedWords == nil {
		s.MostUsedWords = []recording.WordCount{}
	}
	if s.InterestingInsights == nil {
		s.InterestingInsights = []string{}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
