package httpclient

import (
	"net/http"
	"time"

	"github.com/ternarybob/herald/internal/common"
)

// NewDefaultClient creates a simple HTTP client with a timeout.
func NewDefaultClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewNoRedirectClient creates a client that surfaces redirects to the caller
// instead of following them. The resolver chases Location headers manually so
// it can stop at the first non-Google hop.
func NewNoRedirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// SetBrowserHeaders applies browser-like request headers. Google News serves
// bare redirect stubs to clients that do not look like a desktop browser.
// Accept-Encoding is left to the transport so its transparent gzip
// decompression stays enabled.
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", common.DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
}
