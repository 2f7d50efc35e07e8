// Package cmd implements the command-line interface for gapi.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the Calendar and Tasks tools
//   - auth login|status|logout: Manage stored Google credentials per account
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Settings resolve as flag, then environment variable, then the optional
// TOML config file, then the built-in default.
package cmd
