// Package resources provides MCP resources describing the account a session
// acts on. Resources are read-only data sources that MCP clients can fetch
// without calling a tool.
//
// On the HTTP transport every session resolves to the authenticated Google
// user, so each user sees their own data.
package resources
