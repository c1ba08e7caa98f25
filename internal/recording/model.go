// Package recording persists journal recordings as one audio file plus one
// JSON sidecar per recording, keyed by a shared filename stem.
package recording

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTitle is shown for recordings the user has not named.
const DefaultTitle = "Recording"

// Recording is one captured journal entry.
type Recording struct {
	ID             string          `json:"id"`
	URI            string          `json:"uri"`
	Name           string          `json:"name"`
	Title          string          `json:"title"`
	Timestamp      int64           `json:"timestamp"`
	Duration       int64           `json:"duration"`
	WaveformData   []float64       `json:"waveformData"`
	Transcript     string          `json:"transcript,omitempty"`
	EmotionSummary *EmotionSummary `json:"emotionSummary,omitempty"`
	AnalyzedAt     int64           `json:"analyzedAt,omitempty"`
}

// CreatedAt returns Timestamp as a time.Time.
func (r Recording) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Length returns Duration as a time.Duration.
func (r Recording) Length() time.Duration {
	return time.Duration(r.Duration) * time.Millisecond
}

// Analyzed reports whether an emotion summary has been stored.
func (r Recording) Analyzed() bool {
	return r.EmotionSummary != nil
}

// EmotionSummary is the result of analyzing a transcript.
type EmotionSummary struct {
	DominantEmotion     string         `json:"dominantEmotion"`
	EmotionSummary      string         `json:"emotionSummary"`
	EmotionScores       []EmotionScore `json:"emotionScores"`
	Summary             string         `json:"summary"`
	MostUsedWords       []WordCount    `json:"mostUsedWords"`
	InterestingInsights []string       `json:"interestingInsights"`
	Source              string         `json:"source,omitempty"`
}

type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// UnmarshalJSON accepts the score either as a number or a numeric string;
// generative models are not consistent about which one they return.
func (e *EmotionScore) UnmarshalJSON(b []byte) error {
	var raw struct {
		Emotion string          `json:"emotion"`
		Score   json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	score, err := flexFloat(raw.Score)
	if err != nil {
		return fmt.Errorf("emotion %q score: %w", raw.Emotion, err)
	}
	e.Emotion = raw.Emotion
	e.Score = score
	return nil
}

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

func (w *WordCount) UnmarshalJSON(b []byte) error {
	var raw struct {
		Word  string          `json:"word"`
		Count json.RawMessage `json:"count"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	count, err := flexFloat(raw.Count)
	if err != nil {
		return fmt.Errorf("word %q count: %w", raw.Word, err)
	}
	w.Word = raw.Word
	w.Count = int(count)
	return nil
}

func flexFloat(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		s = strings.TrimSuffix(strings.TrimSpace(str), "%")
		if s == "" {
			return 0, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}
