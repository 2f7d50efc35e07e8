// Package logging provides structured logging utilities for gapi.
//
// All output goes to stderr: on the stdio transport stdout carries the MCP
// JSON-RPC stream and must not be written to.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger.Debug("tool call completed", logging.Tool("get_events"), logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("bearer token accepted", logging.UserHash(email))
//
// # Security Considerations
//
//   - User emails are hashed, also when they appear as the account
//   - Tokens are never logged directly, only their length
//   - The debug HTTP transport strips Authorization headers
package logging
