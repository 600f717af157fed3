package extraction

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI implements Provider for any OpenAI-compatible chat completions API
type OpenAI struct {
	llm   llms.Model
	model string
}

// NewOpenAI creates a new OpenAI-compatible provider. baseURL may be empty for
// the public API. An empty apiKey is accepted; every Complete call then fails
// with ErrMissingAPIKey.
func NewOpenAI(apiKey, modelName, baseURL string) (*OpenAI, error) {
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	if apiKey == "" {
		return &OpenAI{model: modelName}, nil
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &OpenAI{llm: llm, model: modelName}, nil
}

// Name returns "openai"
func (o *OpenAI) Name() string {
	return "openai"
}

// Complete sends the image as a data URL with the signature prompt
func (o *OpenAI) Complete(ctx context.Context, sig Signature, img Image) (string, error) {
	if o.llm == nil {
		return "", ErrMissingAPIKey
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.ImageURLPart(dataURL),
				llms.TextPart(sig.Prompt()),
			},
		},
	}

	resp, err := o.llm.GenerateContent(ctx, content,
		llms.WithModel(o.model),
		llms.WithJSONMode(),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Content, nil
}

// Close is a no-op; the underlying client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
