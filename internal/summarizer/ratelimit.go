package summarizer

import (
	"context"
	"fmt"

	"linksummary/internal/domain"

	"golang.org/x/time/rate"
)

// RateLimitedModel spaces calls to the wrapped model.
type RateLimitedModel struct {
	next    Model
	limiter *rate.Limiter
}

func NewRateLimitedModel(next Model, rps float64) *RateLimitedModel {
	return &RateLimitedModel{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (m *RateLimitedModel) Name() string {
	return m.next.Name()
}

func (m *RateLimitedModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := m.Wait(ctx); err != nil {
		return "", err
	}

	return m.next.Generate(ctx, prompt)
}

// Wait blocks until the next call is allowed.
func (m *RateLimitedModel) Wait(ctx context.Context) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return domain.NewError(domain.KindGenerationError, domain.StageSummarize,
			fmt.Errorf("wait for rate limiter: %w", err))
	}

	return nil
}

// Unpaced returns the wrapped model.
func (m *RateLimitedModel) Unpaced() Model {
	return m.next
}
