package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"linksummary/internal/domain"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxPageBytes = 5 << 20
)

// Strategy retrieves documents for one source kind.
type Strategy interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, u *url.URL) ([]domain.Document, error)
}

type Options struct {
	UserAgent         string
	TLSVerify         bool
	Timeout           time.Duration
	MaxPageBytes      int64
	LanguagePrimary   string
	LanguageSecondary string
}

type Fetcher struct {
	strategies map[domain.SourceKind]Strategy
	log        *slog.Logger
}

// New wires the YouTube transcript strategy and the generic page strategy.
func New(opts Options, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = defaultMaxPageBytes
	}

	youtube := NewYouTubeClient(newHTTPClient(true), opts.UserAgent, opts.Timeout, log)

	return NewWithStrategies(log,
		NewVideoStrategy(youtube, opts.LanguagePrimary, opts.LanguageSecondary, log),
		NewPageStrategy(newHTTPClient(opts.TLSVerify), opts.UserAgent, opts.Timeout, opts.MaxPageBytes, log),
	)
}

func NewWithStrategies(log *slog.Logger, strategies ...Strategy) *Fetcher {
	f := &Fetcher{
		strategies: make(map[domain.SourceKind]Strategy, len(strategies)),
		log:        log,
	}

	for _, s := range strategies {
		f.strategies[s.Kind()] = s
	}

	return f
}

// Fetch classifies rawURL and retrieves its documents. An empty result is
// reported as ContentUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch, err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidURL, domain.StageFetch, fmt.Errorf("parse URL: %w", err))
	}

	kind := domain.Classify(u)

	strategy, ok := f.strategies[kind]
	if !ok {
		return nil, domain.Errorf(domain.KindContentUnavailable, domain.StageFetch,
			"no strategy for %s source", kind)
	}

	start := time.Now()

	docs, err := strategy.Fetch(ctx, u)
	if err != nil {
		var domainErr *domain.Error
		if !errors.As(err, &domainErr) {
			err = domain.NewError(domain.KindContentUnavailable, domain.StageFetch, err)
		}

		f.log.WarnContext(ctx, "Failed to fetch content",
			"error", err,
			"url", rawURL,
			"sourceKind", kind.String(),
			"elapsedSeconds", time.Since(start).Seconds())

		return nil, err
	}

	if len(docs) == 0 {
		return nil, domain.Errorf(domain.KindContentUnavailable, domain.StageFetch,
			"no documents for %s", rawURL)
	}

	f.log.InfoContext(ctx, "Content is fetched",
		"url", rawURL,
		"sourceKind", kind.String(),
		"documentCount", len(docs),
		"elapsedSeconds", time.Since(start).Seconds())

	return docs, nil
}
