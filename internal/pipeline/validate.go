package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"linksummary/internal/domain"

	"mvdan.cc/xurls/v2"
)

var errMissingFields = errors.New("API key and URL are both required")

// Validate gates the pipeline before any network call. It returns the
// trimmed URL and the credential unchanged.
func Validate(rawURL string, credential string) (string, string, error) {
	trimmedURL := strings.TrimSpace(rawURL)

	if strings.TrimSpace(credential) == "" || trimmedURL == "" {
		return "", "", domain.NewError(
			domain.KindMissingInput,
			domain.StageValidate,
			errMissingFields,
		)
	}

	if err := checkURL(trimmedURL); err != nil {
		return "", "", domain.NewError(domain.KindInvalidURL, domain.StageValidate, err)
	}

	return trimmedURL, credential, nil
}

func checkURL(raw string) error {
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%q contains whitespace", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if !u.IsAbs() {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%q has no host", raw)
	}

	if strings.HasPrefix(host, ".") || strings.Contains(host, "..") {
		return fmt.Errorf("malformed host %q", host)
	}

	return nil
}

// ExtractURL returns the first http(s) URL found in free text.
func ExtractURL(text string) (string, bool) {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return "", false
	}

	found := strings.TrimSpace(re.FindString(text))
	if found == "" {
		return "", false
	}

	return found, true
}
