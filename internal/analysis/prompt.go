// Package analysis asks a generative model (or the local heuristic tagger) for
// an emotion summary of a transcript and parses the answer.
package analysis

import "strings"

const promptTemplate = `Analyze the following text and provide a summary of the emotions, the dominant emotion, a sorted list of emotions with their scores (highest first), a summary of the chat, a list of the most used words (excluding common stop words), and some interesting insights. Respond with ONLY a valid JSON object (no markdown formatting) with the following structure: { "dominantEmotion": "string", "emotionSummary": "string", "emotionScores": [{ "emotion": "string", "score": "number" }], "summary": "string", "mostUsedWords": [{ "word": "string", "count": "number" }], "interestingInsights": ["string"] }. The text is: "{{text}}"`

// BuildPrompt embeds transcript in the analysis instructions.
func BuildPrompt(transcript string) string {
	return strings.Replace(promptTemplate, "{{text}}", transcript, 1)
}
