package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"linksummary/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIModel calls an OpenAI-compatible Chat Completions endpoint.
type OpenAIModel struct {
	client openai.Client
	model  string
}

func NewOpenAIModel(apiKey string, model string, baseURL *url.URL) (*OpenAIModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.Errorf(domain.KindModelUnavailable, domain.StageSummarize, "API key is empty")
	}

	endpoint := DefaultBaseURL
	if baseURL != nil {
		endpoint = baseURL.String()
	}

	return &OpenAIModel{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(endpoint),
			option.WithMaxRetries(0),
		),
		model: model,
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.model
}

func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.Errorf(domain.KindGenerationError, domain.StageSummarize, "response has no choices")
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", domain.Errorf(domain.KindGenerationError, domain.StageSummarize,
			"output text is missing (finish reason = %s)", choice.FinishReason)
	}

	return text, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewError(classifyStatus(apiErr.StatusCode), domain.StageSummarize,
			fmt.Errorf("do request: %w", err))
	}

	if isConnectionError(err) {
		return domain.NewError(domain.KindModelUnavailable, domain.StageSummarize,
			fmt.Errorf("do request: %w", err))
	}

	return domain.NewError(domain.KindGenerationError, domain.StageSummarize,
		fmt.Errorf("do request: %w", err))
}
