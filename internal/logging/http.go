package logging

import (
	"log/slog"
	"net/http"

	"github.com/motemen/go-loghttp"
)

var redactedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// HTTPTransport wraps base so every outgoing request and its response are
// logged at debug level.
func HTTPTransport(base http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if logger == nil {
		logger = slog.Default()
	}
	return &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			logger.Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
				"headers", redact(req.Header),
			)
		},
		LogResponse: func(resp *http.Response) {
			logger.Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status_code", resp.StatusCode,
			)
		},
	}
}

func redact(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range redactedHeaders {
		if out.Get(k) != "" {
			out.Set(k, "[redacted]")
		}
	}
	return out
}
