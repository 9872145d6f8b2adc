package fetcher_test

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"linksummary/internal/domain"
	"linksummary/internal/fetcher"
)

type transcriptCall struct {
	videoID  string
	language string
}

type stubTranscripts struct {
	mu    sync.Mutex
	calls []transcriptCall
	docs  map[string]domain.Document
}

func (s *stubTranscripts) Transcript(
	_ context.Context,
	videoID string,
	language string,
) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, transcriptCall{videoID: videoID, language: language})

	doc, ok := s.docs[language]
	if !ok {
		return domain.Document{}, errors.New("no transcript in " + language)
	}

	return doc, nil
}

func (s *stubTranscripts) languages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	langs := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		langs = append(langs, c.language)
	}
	return langs
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{raw: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "dQw4w9WgXcQ"},
		{raw: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://www.youtube.com/live/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://www.youtube.com/watch?v=short", wantErr: true},
		{raw: "https://www.youtube.com/channel/UC123", wantErr: true},
		{raw: "https://youtu.be/", wantErr: true},
	}

	for _, tt := range tests {
		got, err := fetcher.VideoID(mustParse(t, tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Fatalf("VideoID(%q) expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("VideoID(%q) unexpected error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("VideoID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestVideoStrategyPrimarySucceeds(t *testing.T) {
	stub := &stubTranscripts{docs: map[string]domain.Document{
		"en": domain.NewDocument("english", nil),
		"hi": domain.NewDocument("hindi", nil),
	}}
	s := fetcher.NewVideoStrategy(stub, "en", "hi", slog.Default())

	docs, err := s.Fetch(context.Background(), mustParse(t, "https://youtu.be/dQw4w9WgXcQ"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Text() != "english" {
		t.Fatalf("expected english transcript, got %+v", docs)
	}
	if langs := stub.languages(); len(langs) != 1 {
		t.Fatalf("expected a single transcript call, got %v", langs)
	}
}

func TestVideoStrategyFallsBackOnce(t *testing.T) {
	stub := &stubTranscripts{docs: map[string]domain.Document{
		"hi": domain.NewDocument("hindi", nil),
	}}
	s := fetcher.NewVideoStrategy(stub, "en", "hi", slog.Default())

	docs, err := s.Fetch(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Text() != "hindi" {
		t.Fatalf("expected hindi transcript, got %+v", docs)
	}

	langs := stub.languages()
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "hi" {
		t.Fatalf("expected en then hi, got %v", langs)
	}
}

func TestVideoStrategyBothLanguagesFail(t *testing.T) {
	stub := &stubTranscripts{}
	s := fetcher.NewVideoStrategy(stub, "en", "hi", slog.Default())

	_, err := s.Fetch(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected ContentUnavailable, got %v", err)
	}
	if langs := stub.languages(); len(langs) != 2 {
		t.Fatalf("expected exactly two attempts, got %v", langs)
	}
}

func TestVideoStrategyNoSecondary(t *testing.T) {
	stub := &stubTranscripts{}
	s := fetcher.NewVideoStrategy(stub, "en", "en", slog.Default())

	_, err := s.Fetch(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected ContentUnavailable, got %v", err)
	}
	if langs := stub.languages(); len(langs) != 1 {
		t.Fatalf("expected a single attempt, got %v", langs)
	}
}

func TestVideoStrategyURLWithoutVideoID(t *testing.T) {
	stub := &stubTranscripts{}
	s := fetcher.NewVideoStrategy(stub, "en", "hi", slog.Default())

	for _, raw := range []string{
		"https://www.youtube.com/feed/trending",
		"https://www.youtube.com/watch?v=X",
	} {
		_, err := s.Fetch(context.Background(), mustParse(t, raw))
		if !errors.Is(err, domain.ErrContentUnavailable) {
			t.Fatalf("%s: expected ContentUnavailable, got %v", raw, err)
		}
	}
	if langs := stub.languages(); len(langs) != 0 {
		t.Fatalf("expected no transcript calls, got %v", langs)
	}
}

type recordingStrategy struct {
	kind  domain.SourceKind
	calls int
	docs  []domain.Document
	err   error
}

func (s *recordingStrategy) Kind() domain.SourceKind {
	return s.kind
}

func (s *recordingStrategy) Fetch(_ context.Context, _ *url.URL) ([]domain.Document, error) {
	s.calls++
	return s.docs, s.err
}

func TestFetcherDispatchesBySourceKind(t *testing.T) {
	video := &recordingStrategy{kind: domain.SourceVideo, docs: []domain.Document{domain.NewDocument("v", nil)}}
	page := &recordingStrategy{kind: domain.SourceGeneric, docs: []domain.Document{domain.NewDocument("p", nil)}}
	f := fetcher.NewWithStrategies(slog.Default(), video, page)

	docs, err := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil || len(docs) != 1 || docs[0].Text() != "v" {
		t.Fatalf("expected video document, got %+v, %v", docs, err)
	}

	docs, err = f.Fetch(context.Background(), "https://example.com/post")
	if err != nil || len(docs) != 1 || docs[0].Text() != "p" {
		t.Fatalf("expected page document, got %+v, %v", docs, err)
	}

	if video.calls != 1 || page.calls != 1 {
		t.Fatalf("expected one call per strategy, got video=%d page=%d", video.calls, page.calls)
	}
}

func TestFetcherWrapsPlainErrors(t *testing.T) {
	page := &recordingStrategy{kind: domain.SourceGeneric, err: errors.New("boom")}
	f := fetcher.NewWithStrategies(slog.Default(), page)

	_, err := f.Fetch(context.Background(), "https://example.com")
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected ContentUnavailable, got %v", err)
	}
}

func TestFetcherEmptyResult(t *testing.T) {
	page := &recordingStrategy{kind: domain.SourceGeneric}
	f := fetcher.NewWithStrategies(slog.Default(), page)

	_, err := f.Fetch(context.Background(), "https://example.com")
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected ContentUnavailable, got %v", err)
	}
}

func TestFetcherCancelledContext(t *testing.T) {
	page := &recordingStrategy{kind: domain.SourceGeneric}
	f := fetcher.NewWithStrategies(slog.Default(), page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://example.com")
	if !errors.Is(err, domain.ErrContentUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled ContentUnavailable, got %v", err)
	}
	if page.calls != 0 {
		t.Fatalf("expected no strategy call after cancellation")
	}
}
