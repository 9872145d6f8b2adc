package fetcher

import (
	"crypto/tls"
	"errors"
	"net/http"
)

const maxRedirects = 10

func newHTTPClient(tlsVerify bool) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}

	transport = transport.Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !tlsVerify, //nolint:gosec // Controlled by LINKSUMMARY_TLS_VERIFY.
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

func statusOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
