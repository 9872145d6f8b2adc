package summarizer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"linksummary/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
)

// Model turns one prompt into one completion.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

type ModelConfig struct {
	Provider   string
	Model      string
	BaseURL    string
	Credential string
	// RPS paces model calls when positive.
	RPS float64
}

// NewModel builds the provider client for a single request. Missing or
// malformed settings are reported as ModelUnavailable.
func NewModel(cfg ModelConfig) (Model, error) {
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, domain.Errorf(domain.KindModelUnavailable, domain.StageSummarize, "model name is empty")
	}

	var baseURL *url.URL
	if raw := strings.TrimSpace(cfg.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, domain.Errorf(domain.KindModelUnavailable, domain.StageSummarize,
				"base URL %q is not an absolute URL", raw)
		}
		baseURL = u
	}

	var (
		model Model
		err   error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		model, err = NewOpenAIModel(cfg.Credential, modelName, baseURL)
	case ProviderOllama:
		model, err = NewOllamaModel(cfg.Credential, modelName, baseURL)
	default:
		err = domain.Errorf(domain.KindModelUnavailable, domain.StageSummarize,
			"unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RPS > 0 {
		model = NewRateLimitedModel(model, cfg.RPS)
	}

	return model, nil
}

// classifyStatus maps an HTTP status from a model endpoint to an error kind.
func classifyStatus(code int) domain.ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return domain.KindModelUnavailable
	default:
		return domain.KindGenerationError
	}
}

// isConnectionError reports failures to reach the model endpoint at all.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
