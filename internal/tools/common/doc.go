// Package common holds the pieces every tool package shares: account
// resolution, argument decoding, error results and the instrumented
// handler wrapper that records metrics, spans and audit logs.
package common
