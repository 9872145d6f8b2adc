package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"linksummary/internal/domain"

	ollama "github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaModel calls the chat endpoint of an Ollama server.
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel uses OLLAMA_HOST when baseURL is nil. A non-empty apiKey is
// sent as a bearer token for hosted or proxied servers.
func NewOllamaModel(apiKey string, model string, baseURL *url.URL) (*OllamaModel, error) {
	if baseURL == nil {
		baseURL = envconfig.Host()
	}

	httpClient := http.DefaultClient
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		httpClient = &http.Client{
			Transport: &bearerTransport{token: apiKey, next: http.DefaultTransport},
		}
	}

	return &OllamaModel{
		client: ollama.NewClient(baseURL, httpClient),
		model:  model,
	}, nil
}

func (m *OllamaModel) Name() string {
	return m.model
}

func (m *OllamaModel) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model: m.model,
		Messages: []ollama.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}

	var sb strings.Builder
	err := m.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", domain.Errorf(domain.KindGenerationError, domain.StageSummarize, "output text is missing")
	}

	return text, nil
}

func classifyOllamaError(err error) error {
	var authErr ollama.AuthorizationError
	if errors.As(err, &authErr) {
		return domain.NewError(domain.KindModelUnavailable, domain.StageSummarize,
			fmt.Errorf("authorize: %w", err))
	}

	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		return domain.NewError(classifyStatus(statusErr.StatusCode), domain.StageSummarize,
			fmt.Errorf("do request: %w", err))
	}

	kind := domain.KindGenerationError
	if isConnectionError(err) {
		kind = domain.KindModelUnavailable
	}

	return domain.NewError(kind, domain.StageSummarize, fmt.Errorf("do request: %w", err))
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)

	return t.next.RoundTrip(req)
}
