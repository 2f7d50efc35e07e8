// Package server holds the runtime state shared by all gapi tools and the
// HTTP plumbing around the MCP server.
//
// ServerContext creates Calendar and Tasks clients per account through a
// google.TokenProvider: the credentials-file provider on stdio and the
// bearer-token store on the streamable HTTP transport. On stdio the clients
// are cached and WatchCredentials drops a cached client as soon as its
// credentials file changes on disk.
//
// HTTPServer serves the streamable HTTP transport at /mcp behind Google
// bearer validation and a per-IP rate limit, together with the RFC 9728
// protected resource metadata and the health endpoints. MetricsServer exposes
// Prometheus metrics on a separate listener.
package server
