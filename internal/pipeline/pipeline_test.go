package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"linksummary/internal/domain"
	"linksummary/internal/fetcher"
	"linksummary/internal/pipeline"
	"linksummary/internal/summarizer"
)

const threeParagraphPage = `<html><head><title>Article</title></head><body><article>
<h1>On Tides</h1>
<p>Tides are the rise and fall of sea levels caused by the combined effects of the gravitational
forces exerted by the Moon and the Sun and the rotation of the Earth. Most places see two high
tides and two low tides every lunar day.</p>
<p>The height of a tide depends on the alignment of the Sun and the Moon. When they line up, the
result is a spring tide with a larger range; when they sit at right angles the result is a neap
tide with a smaller range between high and low water.</p>
<p>Coastal shape and the depth of the sea floor amplify or damp these effects, which is why some
bays see a range of more than fifteen metres while open ocean islands barely notice the change.</p>
</article></body></html>`

type countingModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *countingModel) Name() string {
	return "counting"
}

func (m *countingModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	return "summary#" + strings.Repeat("i", len(m.prompts)), nil
}

func (m *countingModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.prompts)
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	docs  []domain.Document
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	return f.docs, f.err
}

type failingTranscripts struct {
	mu    sync.Mutex
	calls int
}

func (s *failingTranscripts) Transcript(_ context.Context, _ string, language string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	return domain.Document{}, errors.New("no transcript in " + language)
}

func rawTemplate(t *testing.T) summarizer.Template {
	t.Helper()

	tmpl, err := summarizer.ParseTemplate("{text}", 0)
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	return tmpl
}

func newPipeline(
	t *testing.T,
	f pipeline.ContentFetcher,
	model summarizer.Model,
	strategy string,
) *pipeline.Pipeline {
	t.Helper()

	factory := func(credential string) (summarizer.Model, error) {
		if credential == "" {
			t.Fatalf("model factory called without credential")
		}
		return model, nil
	}

	return pipeline.New(f, factory, pipeline.Options{
		Strategy:         strategy,
		MapConcurrency:   2,
		Template:         rawTemplate(t),
		InferenceTimeout: time.Minute,
	}, slog.Default())
}

func TestRunMissingCredential(t *testing.T) {
	f := &stubFetcher{}
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{URL: "https://example.com", Credential: ""})
	if res.OK() || res.Kind() != domain.KindMissingInput {
		t.Fatalf("expected MissingInput, got %v", res.Err)
	}
	if res.Message() == "" {
		t.Fatalf("expected user-facing message")
	}
	if f.calls != 0 || model.callCount() != 0 {
		t.Fatalf("expected no network activity, got fetch=%d model=%d", f.calls, model.callCount())
	}
}

func TestRunInvalidURL(t *testing.T) {
	f := &stubFetcher{}
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{URL: "not-a-url", Credential: "abc"})
	if res.Kind() != domain.KindInvalidURL {
		t.Fatalf("expected InvalidURL, got %v", res.Err)
	}
	if f.calls != 0 {
		t.Fatalf("expected no fetch, got %d", f.calls)
	}
}

func TestRunVideoWithoutTranscript(t *testing.T) {
	transcripts := &failingTranscripts{}
	f := fetcher.NewWithStrategies(slog.Default(),
		fetcher.NewVideoStrategy(transcripts, "en", "hi", slog.Default()))
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyMapReduce)

	res := p.Run(context.Background(), pipeline.Request{
		URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Credential: "abc",
	})
	if res.Kind() != domain.KindContentUnavailable {
		t.Fatalf("expected ContentUnavailable, got %v", res.Err)
	}
	if transcripts.calls != 2 {
		t.Fatalf("expected primary and secondary attempts, got %d", transcripts.calls)
	}
	if model.callCount() != 0 {
		t.Fatalf("expected no model calls, got %d", model.callCount())
	}
	if !strings.Contains(res.Message(), "fetch") {
		t.Fatalf("expected message to name the stage, got %q", res.Message())
	}
}

func TestRunPageWithStuff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(threeParagraphPage))
	}))
	t.Cleanup(srv.Close)

	f := fetcher.NewWithStrategies(slog.Default(),
		fetcher.NewPageStrategy(srv.Client(), "test-agent", 5*time.Second, 1<<20, slog.Default()))
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{URL: srv.URL + "/article", Credential: "abc"})
	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if strings.TrimSpace(res.Summary) == "" {
		t.Fatalf("expected non-empty summary")
	}
	if calls := model.callCount(); calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", calls)
	}
	if !strings.Contains(model.prompts[0], "spring tide") {
		t.Fatalf("expected page text in prompt, got %q", model.prompts[0])
	}
}

func TestRunMapReduceOverFourDocuments(t *testing.T) {
	f := &stubFetcher{docs: []domain.Document{
		domain.NewDocument("doc one", nil),
		domain.NewDocument("doc two", nil),
		domain.NewDocument("doc three", nil),
		domain.NewDocument("doc four", nil),
	}}
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{
		URL:        "https://example.com/article",
		Credential: "abc",
		Strategy:   summarizer.StrategyMapReduce,
	})
	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if calls := model.callCount(); calls != 5 {
		t.Fatalf("expected 4 map calls and 1 reduce call, got %d", calls)
	}

	model.mu.Lock()
	defer model.mu.Unlock()

	reducePrompt := model.prompts[4]
	for _, doc := range []string{"doc one", "doc two", "doc three", "doc four"} {
		if strings.Contains(reducePrompt, doc) {
			t.Fatalf("reduce input must only contain map outputs, found %q in %q", doc, reducePrompt)
		}
	}
	if got := strings.Count(reducePrompt, "summary#"); got != 4 {
		t.Fatalf("expected 4 map outputs in reduce input, got %d in %q", got, reducePrompt)
	}
	if res.Summary != "summary#iiiii" {
		t.Fatalf("expected the reduce output as summary, got %q", res.Summary)
	}
}

func TestRunEmptyFetch(t *testing.T) {
	f := &stubFetcher{}
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{URL: "https://example.com", Credential: "abc"})
	if res.Kind() != domain.KindContentUnavailable {
		t.Fatalf("expected ContentUnavailable, got %v", res.Err)
	}
}

func TestRunModelFactoryFailure(t *testing.T) {
	f := &stubFetcher{docs: []domain.Document{domain.NewDocument("text", nil)}}
	factory := func(string) (summarizer.Model, error) {
		return nil, errors.New("no client")
	}
	p := pipeline.New(f, factory, pipeline.Options{Template: rawTemplate(t)}, slog.Default())

	res := p.Run(context.Background(), pipeline.Request{URL: "https://example.com", Credential: "abc"})
	if res.Kind() != domain.KindModelUnavailable {
		t.Fatalf("expected ModelUnavailable, got %v", res.Err)
	}
	if f.calls != 0 {
		t.Fatalf("expected no fetch when the model cannot be built, got %d", f.calls)
	}
}

func TestRunVideoURLWithoutID(t *testing.T) {
	transcripts := &failingTranscripts{}
	f := fetcher.NewWithStrategies(slog.Default(),
		fetcher.NewVideoStrategy(transcripts, "en", "hi", slog.Default()))
	model := &countingModel{}
	p := newPipeline(t, f, model, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{
		URL:        "https://www.youtube.com/watch?v=X",
		Credential: "abc",
	})
	if res.Kind() != domain.KindContentUnavailable {
		t.Fatalf("expected ContentUnavailable, got %v", res.Err)
	}
	if model.callCount() != 0 {
		t.Fatalf("expected no model calls, got %d", model.callCount())
	}
}

func TestRunUnknownStrategy(t *testing.T) {
	f := &stubFetcher{}
	p := newPipeline(t, f, &countingModel{}, summarizer.StrategyStuff)

	res := p.Run(context.Background(), pipeline.Request{
		URL:        "https://example.com",
		Credential: "abc",
		Strategy:   "refine",
	})
	if res.OK() || f.calls != 0 {
		t.Fatalf("expected rejection before fetch, got %v (fetch calls %d)", res.Err, f.calls)
	}
	if !strings.Contains(res.Message(), "refine") {
		t.Fatalf("expected message to name the strategy, got %q", res.Message())
	}
}

func TestRunConcurrentRequestsAreIsolated(t *testing.T) {
	f := &stubFetcher{docs: []domain.Document{domain.NewDocument("text", nil)}}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	factory := func(credential string) (summarizer.Model, error) {
		mu.Lock()
		seen[credential]++
		mu.Unlock()
		return &countingModel{}, nil
	}
	p := pipeline.New(f, factory, pipeline.Options{
		Strategy: summarizer.StrategyStuff,
		Template: rawTemplate(t),
	}, slog.Default())

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c", "d"} {
		wg.Go(func() {
			res := p.Run(context.Background(), pipeline.Request{URL: "https://example.com", Credential: key})
			if !res.OK() {
				t.Errorf("key %s: unexpected error: %v", key, res.Err)
			}
			if res.Summary != "summary#i" {
				t.Errorf("key %s: expected a fresh model per request, got %q", key, res.Summary)
			}
		})
	}
	wg.Wait()

	for _, key := range []string{"a", "b", "c", "d"} {
		if seen[key] != 1 {
			t.Fatalf("expected one model per credential, got %v", seen)
		}
	}
}
