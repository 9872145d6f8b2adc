package fetcher

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"linksummary/internal/domain"
)

const (
	youtubeWatchURL = "https://www.youtube.com/watch"

	watchPageMaxBytes = 6 << 20
	timedTextMaxBytes = 2 << 20

	playerResponseMarker = "ytInitialPlayerResponse = "
	captionKindASR       = "asr"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var errNoPlayerResponse = errors.New("ytInitialPlayerResponse not found in watch page")

// TranscriptSource returns a video transcript in exactly one language.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string, language string) (domain.Document, error)
}

// YouTubeClient reads caption tracks from the watch page player response.
type YouTubeClient struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	watchURL  string
	log       *slog.Logger
}

func NewYouTubeClient(
	client *http.Client,
	userAgent string,
	timeout time.Duration,
	log *slog.Logger,
) *YouTubeClient {
	return &YouTubeClient{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		watchURL:  youtubeWatchURL,
		log:       log,
	}
}

type playerResponse struct {
	VideoDetails *struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		LengthSeconds    string `json:"lengthSeconds"`
		ViewCount        string `json:"viewCount"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// Both the legacy <transcript><text> layout and srv3 <timedtext><body><p> are accepted.
type timedText struct {
	Lines []timedTextLine `xml:"text"`
	Body  struct {
		Paragraphs []timedTextLine `xml:"p"`
	} `xml:"body"`
}

type timedTextLine struct {
	Text     string `xml:",chardata"`
	Segments []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

func (c *YouTubeClient) Transcript(
	ctx context.Context,
	videoID string,
	language string,
) (domain.Document, error) {
	player, err := c.fetchPlayerResponse(ctx, videoID, language)
	if err != nil {
		return domain.Document{}, fmt.Errorf("fetch player response: %w", err)
	}

	var tracks []captionTrack
	if player.Captions != nil {
		tracks = player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	}

	if len(tracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return domain.Document{}, fmt.Errorf("captions unavailable: %s", player.PlayabilityStatus.Reason)
		}
		return domain.Document{}, errors.New("video has no caption tracks")
	}

	track, ok := pickTrack(tracks, language)
	if !ok {
		return domain.Document{}, fmt.Errorf("no %q transcript (available: %s)",
			language, strings.Join(trackLanguages(tracks), ", "))
	}

	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return domain.Document{}, fmt.Errorf("fetch timedtext: %w", err)
	}

	if text == "" {
		return domain.Document{}, fmt.Errorf("%q transcript is empty", language)
	}

	metadata := map[string]string{
		domain.MetaSource:   c.watchURL + "?v=" + url.QueryEscape(videoID),
		domain.MetaVideoID:  videoID,
		domain.MetaLanguage: track.LanguageCode,
	}
	if d := player.VideoDetails; d != nil {
		setIfNotEmpty(metadata, domain.MetaTitle, d.Title)
		setIfNotEmpty(metadata, domain.MetaAuthor, d.Author)
		setIfNotEmpty(metadata, domain.MetaLengthSeconds, d.LengthSeconds)
		setIfNotEmpty(metadata, domain.MetaViewCount, d.ViewCount)
		setIfNotEmpty(metadata, domain.MetaDescription, d.ShortDescription)
	}

	return domain.NewDocument(text, metadata), nil
}

func (c *YouTubeClient) fetchPlayerResponse(
	ctx context.Context,
	videoID string,
	language string,
) (*playerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	watchURL, err := url.Parse(c.watchURL)
	if err != nil {
		return nil, fmt.Errorf("parse watch URL: %w", err)
	}

	q := watchURL.Query()
	q.Set("v", videoID)
	if language != "" {
		q.Set("hl", language)
	}
	watchURL.RawQuery = q.Encode()

	body, err := c.get(ctx, watchURL.String(), watchPageMaxBytes, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}

	idx := strings.Index(string(body), playerResponseMarker)
	if idx < 0 {
		return nil, errNoPlayerResponse
	}

	raw := extractJSONObject(body[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errNoPlayerResponse
	}

	var player playerResponse
	if err = json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}

	return &player, nil
}

func (c *YouTubeClient) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.get(ctx, baseURL, timedTextMaxBytes, "application/xml,text/xml")
	if err != nil {
		return "", err
	}

	var tt timedText
	if err = xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	lines := tt.Lines
	if len(lines) == 0 {
		lines = tt.Body.Paragraphs
	}

	var sb strings.Builder
	for _, line := range lines {
		text := line.Text
		if strings.TrimSpace(text) == "" && len(line.Segments) > 0 {
			parts := make([]string, 0, len(line.Segments))
			for _, s := range line.Segments {
				parts = append(parts, s.Text)
			}
			text = strings.Join(parts, "")
		}

		// Caption text is frequently escaped twice.
		text = html.UnescapeString(html.UnescapeString(text))
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

func (c *YouTubeClient) get(
	ctx context.Context,
	rawURL string,
	maxBytes int64,
	accept string,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "youtubeGet")
		}
	}()

	if !statusOK(resp.StatusCode) {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// VideoID extracts the 11-character video ID from any supported YouTube URL shape.
func VideoID(u *url.URL) (string, error) {
	if u == nil {
		return "", errors.New("URL is nil")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string

	switch {
	case host == "youtu.be":
		id = segments[0]
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case len(segments) >= 2:
		switch segments[0] {
		case "shorts", "embed", "live", "v", "e":
			id = segments[1]
		}
	}

	id = strings.TrimSpace(id)
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("no video ID in %s", u.Redacted())
	}

	return id, nil
}

// pickTrack prefers a manual track over an auto-generated one. A track
// matches when its code equals language or is a regional variant of it.
func pickTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return captionTrack{}, false
	}

	matches := func(t captionTrack) bool {
		code := strings.ToLower(t.LanguageCode)
		return code == language || strings.HasPrefix(code, language+"-")
	}

	for _, t := range tracks {
		if matches(t) && t.Kind != captionKindASR && t.BaseURL != "" {
			return t, true
		}
	}

	for _, t := range tracks {
		if matches(t) && t.BaseURL != "" {
			return t, true
		}
	}

	return captionTrack{}, false
}

func trackLanguages(tracks []captionTrack) []string {
	langs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		lang := t.LanguageCode
		if t.Kind == captionKindASR {
			lang += " (auto)"
		}
		langs = append(langs, lang)
	}
	return langs
}

// extractJSONObject returns the balanced JSON object at the start of b.
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}

	depth := 0
	inString := false
	escaped := false

	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}

	return nil
}

func setIfNotEmpty(m map[string]string, key string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		m[key] = value
	}
}
