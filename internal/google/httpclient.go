package google

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/gapi/internal/logging"
)

// baseTransport is shared by every client so connections to the Google APIs
// are pooled across accounts and requests. HTTP/2 stays off to avoid the
// protocol errors seen against the Google APIs.
var baseTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	ForceAttemptHTTP2:     false,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// NewHTTPClient returns an HTTP client authorizing requests with ts. With
// debug set, every request and response is logged at debug level.
func NewHTTPClient(ts oauth2.TokenSource, debug bool) *http.Client {
	var base http.RoundTripper = baseTransport
	if debug {
		base = logging.HTTPTransport(base, slog.Default())
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   base,
		},
	}
}
