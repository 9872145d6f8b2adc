package domain

import (
	"maps"
	"net/url"
	"strings"
)

// SourceKind tells the fetcher which retrieval strategy a URL needs.
type SourceKind int

const (
	SourceGeneric SourceKind = iota
	SourceVideo
)

func (k SourceKind) String() string {
	switch k {
	case SourceVideo:
		return "video"
	default:
		return "generic"
	}
}

const (
	MetaSource        = "source"
	MetaTitle         = "title"
	MetaLanguage      = "language"
	MetaAuthor        = "author"
	MetaVideoID       = "video_id"
	MetaLengthSeconds = "length_seconds"
	MetaViewCount     = "view_count"
	MetaDescription   = "description"
	MetaSiteName      = "site_name"
	MetaExcerpt       = "excerpt"
)

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var videoHosts = map[string]struct{}{
	"youtube.com":              {},
	"www.youtube.com":          {},
	"m.youtube.com":            {},
	"music.youtube.com":        {},
	"youtu.be":                 {},
	"www.youtu.be":             {},
	"youtube-nocookie.com":     {},
	"www.youtube-nocookie.com": {},
}

// Classify maps a parsed URL to exactly one source kind.
func Classify(u *url.URL) SourceKind {
	if u == nil {
		return SourceGeneric
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if _, ok := videoHosts[host]; ok {
		return SourceVideo
	}
	if strings.HasSuffix(host, ".youtube.com") {
		return SourceVideo
	}

	return SourceGeneric
}

// Document is a unit of fetched content. It is not modified after creation.
type Document struct {
	text     string
	metadata map[string]string
}

func NewDocument(text string, metadata map[string]string) Document {
	return Document{
		text:     text,
		metadata: maps.Clone(metadata),
	}
}

func (d Document) Text() string {
	return d.text
}

// Metadata returns a copy of the document metadata.
func (d Document) Metadata() map[string]string {
	if d.metadata == nil {
		return map[string]string{}
	}

	return maps.Clone(d.metadata)
}

func (d Document) Meta(key string) string {
	return d.metadata[key]
}
