package pipeline_test

import (
	"errors"
	"testing"

	"linksummary/internal/domain"
	"linksummary/internal/pipeline"
)

func TestValidateMissingInput(t *testing.T) {
	tests := []struct{ url, credential string }{
		{url: "https://example.com", credential: ""},
		{url: "https://example.com", credential: "   "},
		{url: "", credential: "abc"},
		{url: " \t", credential: "abc"},
		{url: "not-a-url", credential: ""},
	}

	for _, tt := range tests {
		_, _, err := pipeline.Validate(tt.url, tt.credential)
		if !errors.Is(err, domain.ErrMissingInput) {
			t.Fatalf("Validate(%q, %q): expected MissingInput, got %v", tt.url, tt.credential, err)
		}
	}
}

func TestValidateInvalidURL(t *testing.T) {
	for _, raw := range []string{
		"not-a-url",
		"example.com",
		"ftp://example.com/file",
		"javascript:alert(1)",
		"https://",
		"https://exa mple.com",
		"https://..example.com",
		"/relative/path",
	} {
		_, _, err := pipeline.Validate(raw, "abc")
		if !errors.Is(err, domain.ErrInvalidURL) {
			t.Fatalf("Validate(%q): expected InvalidURL, got %v", raw, err)
		}
	}
}

func TestValidateAcceptsURLs(t *testing.T) {
	for _, raw := range []string{
		"https://example.com",
		"http://example.com/a/b?c=d#e",
		"  https://www.youtube.com/watch?v=dQw4w9WgXcQ  ",
		"https://localhost:8080/path",
	} {
		gotURL, gotCredential, err := pipeline.Validate(raw, "abc")
		if err != nil {
			t.Fatalf("Validate(%q): unexpected error: %v", raw, err)
		}
		if gotCredential != "abc" {
			t.Fatalf("Validate(%q): credential changed to %q", raw, gotCredential)
		}
		if gotURL == "" || gotURL[0] == ' ' {
			t.Fatalf("Validate(%q): expected trimmed URL, got %q", raw, gotURL)
		}
	}
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{text: "please read https://example.com/post?id=1 thanks", want: "https://example.com/post?id=1", wantOK: true},
		{text: "https://youtu.be/dQw4w9WgXcQ", want: "https://youtu.be/dQw4w9WgXcQ", wantOK: true},
		{text: "no links, just example.com", wantOK: false},
		{text: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := pipeline.ExtractURL(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("ExtractURL(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}
