// Package google handles OAuth2 credentials for the Google Calendar and Tasks
// APIs.
//
// Credentials live in a directory (see Store) as JSON files: one
// client_secret.json describing the OAuth client, and one credentials file per
// account holding the authorized user token. The file layout matches the
// authorized-user format written by Google's client libraries, so existing
// credentials.json files can be reused as-is.
//
// The TokenProvider interface lets the MCP tools obtain token sources without
// caring whether tokens come from disk (stdio transport) or from bearer tokens
// presented by HTTP clients.
package google
