package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"speechinsight/internal/emotion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const sampleAnswer = `{
  "dominantEmotion": "Joy",
  "emotionSummary": "Upbeat overall.",
  "emotionScores": [{"emotion": "Sadness", "score": "0.2"}, {"emotion": "Joy", "score": 0.8}],
  "summary": "A walk in the park.",
  "mostUsedWords": [{"word": "park", "count": "3"}],
  "interestingInsights": ["Mentions the weather twice."]
}`

func TestParseSummaryPlain(t *testing.T) {
	sum, err := ParseSummary(sampleAnswer)
	require.NoError(t, err)
	assert.Equal(t, "Joy", sum.DominantEmotion)
	require.Len(t, sum.EmotionScores, 2)
	assert.Equal(t, "Joy", sum.EmotionScores[0].Emotion)
	assert.InDelta(t, 0.8, sum.EmotionScores[0].Score, 1e-9)
	assert.InDelta(t, 0.2, sum.EmotionScores[1].Score, 1e-9)
	assert.Equal(t, 3, sum.MostUsedWords[0].Count)
	assert.Equal(t, []string{"Mentions the weather twice."}, sum.InterestingInsights)
}

func TestParseSummaryStripsFence(t *testing.T) {
	for _, in := range []string{
		"```json\n" + sampleAnswer + "\n```",
		"```\n" + sampleAnswer + "\n```",
		"Here you go:\n```json\n" + sampleAnswer + "\n```\nHope that helps!",
	} {
		sum, err := ParseSummary(in)
		require.NoError(t, err, in)
		assert.Equal(t, "Joy", sum.DominantEmotion)
	}
	assert.Equal(t, "{}", StripCodeFence("```json\n{}\n```"))
	assert.Equal(t, "plain", StripCodeFence("plain"))
}

func TestParseSummaryExtractsEmbeddedObject(t *testing.T) {
	sum, err := ParseSummary("Sure! " + sampleAnswer + " Let me know.")
	require.NoError(t, err)
	assert.Equal(t, "A walk in the park.", sum.Summary)
}

func TestParseSummaryFillsDominantAndPercentages(t *testing.T) {
	sum, err := ParseSummary(`{"emotionScores":[{"emotion":"Fear","score":"30%"},{"emotion":"Anger","score":70}]}`)
	require.NoError(t, err)
	assert.Equal(t, "Anger", sum.DominantEmotion)
	assert.InDelta(t, 0.7, sum.EmotionScores[0].Score, 1e-9)
	assert.InDelta(t, 0.3, sum.EmotionScores[1].Score, 1e-9)
	assert.NotNil(t, sum.MostUsedWords)
	assert.NotNil(t, sum.InterestingInsights)
}

func TestParseSummaryErrors(t *testing.T) {
	for _, in := range []string{"", "not json at all", "{broken", `{"unrelated": true}`, `{"emotionScores":[{"emotion":"Joy","score":"lots"}]}`} {
		_, err := ParseSummary(in)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, "input %q", in)
		assert.Equal(t, in, pe.Raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("I walked to the park")
	assert.True(t, strings.HasSuffix(p, `The text is: "I walked to the park"`))
	for _, field := range []string{"dominantEmotion", "emotionSummary", "emotionScores", "summary", "mostUsedWords", "interestingInsights"} {
		assert.Contains(t, p, field)
	}
}

type fakeGenerator struct {
	answers []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return f.answers[len(f.answers)-1], nil
}

var fastRetry = RetryPolicy{
	RateLimitWaits:   []time.Duration{time.Millisecond, time.Millisecond},
	ServerErrorWaits: []time.Duration{time.Millisecond},
}

func TestModelAnalyzerRetriesRateLimit(t *testing.T) {
	gen := &fakeGenerator{
		errs:    []error{errors.New("Error 429, Message: quota, Status: RESOURCE_EXHAUSTED"), nil},
		answers: []string{"", sampleAnswer},
	}
	a := &modelAnalyzer{gen: gen, source: SourceGemini, retry: fastRetry}
	sum, err := a.Analyze(context.Background(), "I walked to the park")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, SourceGemini, sum.Source)
	assert.Contains(t, gen.prompts[0], "I walked to the park")
}

func TestModelAnalyzerGivesUp(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		errors.New("503 Service Unavailable"),
		errors.New("503 Service Unavailable"),
		errors.New("503 Service Unavailable"),
	}}
	a := &modelAnalyzer{gen: gen, source: SourceOpenAI, retry: fastRetry}
	_, err := a.Analyze(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestModelAnalyzerNoRetryOnClientError(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("400 bad request: invalid key")}}
	a := &modelAnalyzer{gen: gen, source: SourceGemini, retry: fastRetry}
	_, err := a.Analyze(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestModelAnalyzerParseFailure(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"I'd rather not."}}
	a := &modelAnalyzer{gen: gen, source: SourceGemini, retry: fastRetry}
	_, err := a.Analyze(context.Background(), "hello")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "I'd rather not.", pe.Raw)
}

func TestModelAnalyzerRejectsEmptyTranscript(t *testing.T) {
	gen := &fakeGenerator{answers: []string{sampleAnswer}}
	_, err := (&modelAnalyzer{gen: gen}).Analyze(context.Background(), "  ")
	require.Error(t, err)
	assert.Zero(t, gen.calls)
}

func TestRetryWaitHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	slow := RetryPolicy{RateLimitWaits: []time.Duration{time.Hour}}
	start := time.Now()
	_, err := callWithRetry(ctx, slow, nil, func(context.Context) (string, error) {
		return "", errors.New("429 too many requests")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isRateLimitError(errors.New("Rate limit reached")))
	assert.False(t, isRateLimitError(errors.New("500 internal server error")))
	assert.True(t, isServerError(errors.New("500 internal server error")))
	assert.True(t, isServerError(errors.New("Status: UNAVAILABLE")))
	assert.False(t, isServerError(errors.New("invalid argument")))
	assert.False(t, isServerError(nil))

	refused := errors.New("Post \"http://127.0.0.1:5000/analyze\": dial tcp 127.0.0.1:5000: connect: connection refused")
	assert.False(t, isServerError(refused))
	assert.False(t, isRateLimitError(refused))
	tokens := errors.New("Error 400, Message: prompt has 1429 tokens, Status: INVALID_ARGUMENT")
	assert.False(t, isRateLimitError(tokens))
	assert.False(t, isServerError(tokens))
	assert.True(t, isRateLimitError(errors.New("Error 429, Message: quota, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, isServerError(errors.New("status 503")))

	assert.True(t, isRateLimitError(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}))
	assert.True(t, isServerError(fmt.Errorf("gemini: %w", genai.APIError{Code: 503})))
	assert.False(t, isServerError(genai.APIError{Code: 400, Message: "prompt has 500 tokens"}))
	assert.False(t, isRateLimitError(&genai.APIError{Code: 400, Message: "Error 429 mentioned in text"}))
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	s := GenerateSchema[summaryPayload]()
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, false, s["additionalProperties"])
	assert.ElementsMatch(t,
		[]string{"dominantEmotion", "emotionSummary", "emotionScores", "summary", "mostUsedWords", "interestingInsights"},
		s["required"])

	props := s["properties"].(map[string]any)
	items := props["emotionScores"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	assert.ElementsMatch(t, []string{"emotion", "score"}, items["required"])
}

type mapClassifier map[string]string

func (m mapClassifier) Classify(_ context.Context, s string) (string, error) {
	if l, ok := m[s]; ok {
		return l, nil
	}
	return "", errors.New("unknown")
}

func TestHeuristicAnalyzer(t *testing.T) {
	h := &HeuristicAnalyzer{Tagger: emotion.NewTagger(mapClassifier{
		"The park was lovely": "Joy",
		"The park was loud":   "Anger",
		"The park again":      "Joy",
	}, 2, nil)}
	sum, err := h.Analyze(context.Background(), "The park was lovely. The park was loud. The park again")
	require.NoError(t, err)
	assert.Equal(t, "Joy", sum.DominantEmotion)
	assert.Equal(t, SourceHeuristic, sum.Source)
	require.Len(t, sum.EmotionScores, 2)
	assert.InDelta(t, 2.0/3.0, sum.EmotionScores[0].Score, 1e-9)
	require.NotEmpty(t, sum.MostUsedWords)
	assert.Equal(t, "park", sum.MostUsedWords[0].Word)
	assert.Equal(t, 3, sum.MostUsedWords[0].Count)
	assert.Contains(t, sum.EmotionSummary, "Joy")
}

func TestTopWords(t *testing.T) {
	got := TopWords("The cat and the hat. The CAT sat; a cat's hat!", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "cat", got[0].Word)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "hat", got[1].Word)
	assert.Empty(t, TopWords("", 5))
}
