// Package tasks_tools exposes Google Tasks through MCP tools.
package tasks_tools
