package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"linksummary/internal/domain"
)

// Summarizer runs a chain strategy against a model.
type Summarizer struct {
	model    Model
	strategy Strategy
	template Template
	timeout  time.Duration
	log      *slog.Logger
}

// New wraps model so that every call is bounded by inferenceTimeout.
func New(
	model Model,
	strategy Strategy,
	tmpl Template,
	inferenceTimeout time.Duration,
	log *slog.Logger,
) *Summarizer {
	return &Summarizer{
		model:    model,
		strategy: strategy,
		template: tmpl,
		timeout:  inferenceTimeout,
		log:      log,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, docs []domain.Document) (string, error) {
	if len(docs) == 0 {
		return "", domain.Errorf(domain.KindGenerationError, domain.StageSummarize, "no documents to summarize")
	}

	start := time.Now()
	model := &guardedModel{next: s.model, timeout: s.timeout}

	summary, err := s.strategy.Reduce(ctx, model, s.template, docs)
	if err != nil {
		var domainErr *domain.Error
		if !errors.As(err, &domainErr) {
			err = domain.NewError(domain.KindGenerationError, domain.StageSummarize, err)
		}

		s.log.WarnContext(ctx, "Failed to summarize",
			"error", err,
			"strategy", s.strategy.Name(),
			"model", s.model.Name(),
			"documentCount", len(docs),
			"modelCalls", model.callCount(),
			"elapsedSeconds", time.Since(start).Seconds())

		return "", err
	}

	s.log.InfoContext(ctx, "Summary is generated",
		"strategy", s.strategy.Name(),
		"model", s.model.Name(),
		"documentCount", len(docs),
		"modelCalls", model.callCount(),
		"elapsedSeconds", time.Since(start).Seconds())

	return summary, nil
}

// pacedModel is a model whose pacing wait is separate from the call itself.
type pacedModel interface {
	Wait(ctx context.Context) error
	Unpaced() Model
}

// guardedModel checks cancellation before each call, applies the per-call
// timeout and classifies untyped failures. Pacing waits are not counted
// against the timeout.
type guardedModel struct {
	next    Model
	timeout time.Duration
	calls   atomic.Int64
}

func (m *guardedModel) Name() string {
	return m.next.Name()
}

func (m *guardedModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewError(domain.KindGenerationError, domain.StageSummarize, err)
	}

	next := m.next
	if paced, ok := next.(pacedModel); ok {
		if err := paced.Wait(ctx); err != nil {
			return "", err
		}
		next = paced.Unpaced()
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.calls.Add(1)

	text, err := next.Generate(ctx, prompt)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return "", err
		}
		return "", domain.NewError(domain.KindGenerationError, domain.StageSummarize,
			fmt.Errorf("generate: %w", err))
	}

	if strings.TrimSpace(text) == "" {
		return "", domain.Errorf(domain.KindGenerationError, domain.StageSummarize,
			"model %s returned empty output", m.next.Name())
	}

	return text, nil
}

func (m *guardedModel) callCount() int64 {
	return m.calls.Load()
}
