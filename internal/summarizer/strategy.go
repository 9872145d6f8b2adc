package summarizer

import (
	"context"
	"fmt"
	"strings"

	"linksummary/internal/domain"

	"golang.org/x/sync/errgroup"
)

const (
	StrategyStuff     = "stuff"
	StrategyMapReduce = "map-reduce"

	defaultMapConcurrency = 4

	documentSeparator = "\n\n"
)

// Strategy combines documents into a single summary with one or more model calls.
type Strategy interface {
	Name() string
	Reduce(ctx context.Context, model Model, tmpl Template, docs []domain.Document) (string, error)
}

// StrategyByName resolves a chain strategy name.
func StrategyByName(name string, mapConcurrency int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyStuff:
		return Stuff{}, nil
	case StrategyMapReduce, "mapreduce", "map_reduce":
		return NewMapReduce(mapConcurrency), nil
	default:
		return nil, fmt.Errorf("unknown chain strategy %q", name)
	}
}

// Stuff places every document into one prompt.
type Stuff struct{}

func (Stuff) Name() string {
	return StrategyStuff
}

func (Stuff) Reduce(ctx context.Context, model Model, tmpl Template, docs []domain.Document) (string, error) {
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Text())
	}

	return model.Generate(ctx, tmpl.Fill(strings.Join(texts, documentSeparator)))
}

// MapReduce summarizes each document and then summarizes the summaries.
type MapReduce struct {
	concurrency int
}

func NewMapReduce(concurrency int) MapReduce {
	if concurrency <= 0 {
		concurrency = defaultMapConcurrency
	}

	return MapReduce{concurrency: concurrency}
}

func (MapReduce) Name() string {
	return StrategyMapReduce
}

func (m MapReduce) Reduce(ctx context.Context, model Model, tmpl Template, docs []domain.Document) (string, error) {
	partials := make([]string, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			partial, err := model.Generate(gctx, tmpl.Fill(doc.Text()))
			if err != nil {
				return fmt.Errorf("map document %d: %w", i, err)
			}

			partials[i] = partial
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return model.Generate(ctx, tmpl.Fill(strings.Join(partials, documentSeparator)))
}
