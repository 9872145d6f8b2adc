package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"linksummary/internal/domain"
)

// VideoStrategy loads a transcript in the primary language and falls back
// to the secondary language once.
type VideoStrategy struct {
	source    TranscriptSource
	primary   string
	secondary string
	log       *slog.Logger
}

func NewVideoStrategy(
	source TranscriptSource,
	primary string,
	secondary string,
	log *slog.Logger,
) *VideoStrategy {
	return &VideoStrategy{
		source:    source,
		primary:   strings.TrimSpace(primary),
		secondary: strings.TrimSpace(secondary),
		log:       log,
	}
}

func (s *VideoStrategy) Kind() domain.SourceKind {
	return domain.SourceVideo
}

func (s *VideoStrategy) Fetch(ctx context.Context, u *url.URL) ([]domain.Document, error) {
	videoID, err := VideoID(u)
	if err != nil {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch, err)
	}

	doc, primaryErr := s.source.Transcript(ctx, videoID, s.primary)
	if primaryErr == nil {
		return []domain.Document{doc}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch,
			errors.Join(primaryErr, ctxErr))
	}

	if s.secondary == "" || strings.EqualFold(s.secondary, s.primary) {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch,
			fmt.Errorf("%s transcript: %w", s.primary, primaryErr))
	}

	s.log.WarnContext(ctx, "Primary transcript is unavailable, trying secondary language",
		"error", primaryErr,
		"videoId", videoID,
		"primary", s.primary,
		"secondary", s.secondary)

	doc, secondaryErr := s.source.Transcript(ctx, videoID, s.secondary)
	if secondaryErr != nil {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch, errors.Join(
			fmt.Errorf("%s transcript: %w", s.primary, primaryErr),
			fmt.Errorf("%s transcript: %w", s.secondary, secondaryErr),
		))
	}

	return []domain.Document{doc}, nil
}
