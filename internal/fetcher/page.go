package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"linksummary/internal/domain"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// PageStrategy downloads a web page and extracts its readable text.
type PageStrategy struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	log       *slog.Logger
}

func NewPageStrategy(
	client *http.Client,
	userAgent string,
	timeout time.Duration,
	maxBytes int64,
	log *slog.Logger,
) *PageStrategy {
	return &PageStrategy{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		maxBytes:  maxBytes,
		log:       log,
	}
}

func (s *PageStrategy) Kind() domain.SourceKind {
	return domain.SourceGeneric
}

func (s *PageStrategy) Fetch(ctx context.Context, u *url.URL) ([]domain.Document, error) {
	body, finalURL, err := s.download(ctx, u)
	if err != nil {
		return nil, domain.NewError(domain.KindContentUnavailable, domain.StageFetch, err)
	}

	text, metadata := s.extract(ctx, body, finalURL)
	if strings.TrimSpace(text) == "" {
		return nil, domain.Errorf(domain.KindContentUnavailable, domain.StageFetch,
			"no readable text at %s", u.Redacted())
	}

	metadata[domain.MetaSource] = u.String()

	return []domain.Document{domain.NewDocument(text, metadata)}, nil
}

func (s *PageStrategy) download(ctx context.Context, u *url.URL) ([]byte, *url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "pageDownload")
		}
	}()

	if !statusOK(resp.StatusCode) {
		return nil, nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return body, finalURL, nil
}

// extract tries readability first and falls back to a plain goquery walk
// when no article can be found.
func (s *PageStrategy) extract(
	ctx context.Context,
	body []byte,
	pageURL *url.URL,
) (string, map[string]string) {
	metadata := map[string]string{}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		setIfNotEmpty(metadata, domain.MetaTitle, article.Title)
		setIfNotEmpty(metadata, domain.MetaAuthor, article.Byline)
		setIfNotEmpty(metadata, domain.MetaSiteName, article.SiteName)
		setIfNotEmpty(metadata, domain.MetaExcerpt, article.Excerpt)
		setIfNotEmpty(metadata, domain.MetaLanguage, article.Language)

		if text := articleMarkdown(article); text != "" {
			return text, metadata
		}
	} else {
		s.log.DebugContext(ctx, "Readability failed, falling back to raw text",
			"error", err,
			"url", pageURL.String())
	}

	title, text, err := plainText(body)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to parse HTML",
			"error", err,
			"url", pageURL.String())
		return "", metadata
	}

	if _, ok := metadata[domain.MetaTitle]; !ok {
		setIfNotEmpty(metadata, domain.MetaTitle, title)
	}

	return text, metadata
}

func articleMarkdown(article readability.Article) string {
	if strings.TrimSpace(article.Content) != "" {
		markdown, err := htmltomarkdown.ConvertString(article.Content)
		if err == nil && strings.TrimSpace(markdown) != "" {
			return strings.TrimSpace(markdown)
		}
	}

	return normalizeLines(article.TextContent)
}

func plainText(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find(noiseSelector).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find(".content").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find("p, li").Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(sel.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		return title, normalizeLines(root.Text()), nil
	}

	return title, strings.Join(lines, "\n"), nil
}

func normalizeLines(text string) string {
	var lines []string
	for line := range strings.Lines(text) {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
