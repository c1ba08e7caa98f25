package analysis

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// summaryPayload mirrors recording.EmotionSummary minus local bookkeeping.
// Strict structured output requires every property to be present.
type summaryPayload struct {
	DominantEmotion     string         `json:"dominantEmotion" jsonschema:"required"`
	EmotionSummary      string         `json:"emotionSummary" jsonschema:"required"`
	EmotionScores       []scorePayload `json:"emotionScores" jsonschema:"required"`
	Summary             string         `json:"summary" jsonschema:"required"`
	MostUsedWords       []wordPayload  `json:"mostUsedWords" jsonschema:"required"`
	InterestingInsights []string       `json:"interestingInsights" jsonschema:"required"`
}

type scorePayload struct {
	Emotion string  `json:"emotion" jsonschema:"required"`
	Score   float64 `json:"score" jsonschema:"required"`
}

type wordPayload struct {
	Word  string `json:"word" jsonschema:"required"`
	Count int    `json:"count" jsonschema:"required"`
}

// GenerateSchema reflects T into a JSON schema map accepted by strict
// structured output: no refs, no additional properties, all fields required.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	m, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	ensureStrict(m)
	return m
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func ensureStrict(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema["required"] = required
		}
	}
	for _, p := range props {
		if pm, ok := p.(map[string]any); ok {
			ensureStrict(pm)
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrict(items)
	}
}
