// Package tasks provides a client for the Google Tasks v1 API and the
// plain-text renderings returned by the task MCP tools.
//
// Task lists are addressed by ID; "@default" selects the user's default list.
// Due dates are RFC 3339 timestamps, although the API only keeps the date
// part.
package tasks
