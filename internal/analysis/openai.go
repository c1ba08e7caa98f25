package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-4o-mini"

var summarySchema = GenerateSchema[summaryPayload]()

type openAIGenerator struct {
	client *openai.Client
	model  string
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "EmotionSummary",
			Schema:      summarySchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Emotion analysis of a journal transcript"),
			Type:        "json_schema",
		},
	}
	params := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(2000),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}
	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("openai: empty response")
	}
	return text, nil
}

// OpenAIAnalyzer analyzes transcripts with the Responses API and a strict
// JSON schema.
type OpenAIAnalyzer struct {
	modelAnalyzer
}

// NewOpenAIAnalyzer builds an analyzer. Extra request options (base URL,
// HTTP client) are passed through to the SDK.
func NewOpenAIAnalyzer(apiKey, model string, timeout time.Duration, logger *logrus.Logger, opts ...option.RequestOption) (*OpenAIAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" || strings.HasPrefix(model, "gemini") {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIAnalyzer{modelAnalyzer{
		gen:     &openAIGenerator{client: &client, model: model},
		source:  SourceOpenAI,
		retry:   DefaultRetryPolicy,
		timeout: timeout,
		logger:  logger,
	}}, nil
}
