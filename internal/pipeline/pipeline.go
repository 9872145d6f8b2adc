package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linksummary/internal/domain"
	"linksummary/internal/summarizer"
)

// ContentFetcher retrieves the documents behind a validated URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]domain.Document, error)
}

// ModelFactory builds a model bound to one request's credential.
type ModelFactory func(credential string) (summarizer.Model, error)

// Request is one user action. It is not modified by Run.
type Request struct {
	URL        string
	Credential string
	// Strategy overrides the default chain strategy when set.
	Strategy string
}

// Result is either a summary or a typed error.
type Result struct {
	Summary string
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) Kind() domain.ErrorKind {
	if r.Err == nil {
		return domain.KindUnknown
	}

	return domain.KindOf(r.Err)
}

// Message is the user-facing text for a failed result.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}

	var domainErr *domain.Error
	if !errors.As(r.Err, &domainErr) {
		return "Something went wrong: " + r.Err.Error()
	}

	switch domainErr.Kind {
	case domain.KindMissingInput:
		if errors.Is(domainErr.Err, errMissingFields) {
			return "Please enter the API key and the URL to get started."
		}
		return fmt.Sprintf("Invalid input (%s): %v", domainErr.Stage, domainErr.Err)
	case domain.KindInvalidURL:
		return "Invalid URL. Please enter a valid http(s) URL of a YouTube video or a website."
	case domain.KindContentUnavailable:
		return fmt.Sprintf("Failed to load content (%s): %v", domainErr.Stage, domainErr.Err)
	case domain.KindModelUnavailable:
		return fmt.Sprintf("The model is unavailable (%s): %v", domainErr.Stage, domainErr.Err)
	case domain.KindGenerationError:
		return fmt.Sprintf("Failed to generate the summary (%s): %v", domainErr.Stage, domainErr.Err)
	default:
		return fmt.Sprintf("Something went wrong (%s): %v", domainErr.Stage, domainErr.Err)
	}
}

type Options struct {
	Strategy         string
	MapConcurrency   int
	Template         summarizer.Template
	InferenceTimeout time.Duration
}

// Pipeline runs validate, fetch and summarize for each request.
type Pipeline struct {
	fetcher  ContentFetcher
	newModel ModelFactory
	opts     Options
	log      *slog.Logger
}

func New(fetcher ContentFetcher, newModel ModelFactory, opts Options, log *slog.Logger) *Pipeline {
	if opts.Strategy == "" {
		opts.Strategy = summarizer.StrategyMapReduce
	}

	return &Pipeline{
		fetcher:  fetcher,
		newModel: newModel,
		opts:     opts,
		log:      log,
	}
}

func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := time.Now()

	summary, err := p.run(ctx, req)
	if err != nil {
		p.log.WarnContext(ctx, "Pipeline failed",
			"error", err,
			"kind", domain.KindOf(err).String(),
			"url", req.URL,
			"elapsedSeconds", time.Since(start).Seconds())

		return Result{Err: err}
	}

	p.log.InfoContext(ctx, "Pipeline succeeded",
		"url", req.URL,
		"summaryLength", len(summary),
		"elapsedSeconds", time.Since(start).Seconds())

	return Result{Summary: summary}
}

func (p *Pipeline) run(ctx context.Context, req Request) (string, error) {
	rawURL, credential, err := Validate(req.URL, req.Credential)
	if err != nil {
		return "", err
	}

	strategyName := p.opts.Strategy
	if req.Strategy != "" {
		strategyName = req.Strategy
	}

	strategy, err := summarizer.StrategyByName(strategyName, p.opts.MapConcurrency)
	if err != nil {
		return "", domain.NewError(domain.KindMissingInput, domain.StageValidate, err)
	}

	model, err := p.newModel(credential)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.NewError(domain.KindModelUnavailable, domain.StageSummarize, err)
		}
		return "", err
	}

	docs, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if len(docs) == 0 {
		return "", domain.Errorf(domain.KindContentUnavailable, domain.StageFetch, "no documents for %s", rawURL)
	}

	p.log.DebugContext(ctx, "Summarizing",
		"url", rawURL,
		"strategy", strategy.Name(),
		"model", model.Name(),
		"documentCount", len(docs))

	s := summarizer.New(model, strategy, p.opts.Template, p.opts.InferenceTimeout, p.log)

	return s.Summarize(ctx, docs)
}
