package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/gapi/internal/logging"
)

// ToolInvocation describes one MCP tool call for the audit log.
//
// UserEmail is PII. It is only written verbatim when the AuditLogger is
// configured with IncludePII; otherwise the log carries a hash and the domain.
type ToolInvocation struct {
	Tool      string
	UserEmail string
	Account   string
	Service   string // calendar or tasks
	Operation string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool call.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

// WithUser sets the authenticated user's email.
func (ti *ToolInvocation) WithUser(email string) *ToolInvocation {
	ti.UserEmail = email
	return ti
}

// WithAccount sets the credentials account the tool acted on.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(service, operation string) *ToolInvocation {
	ti.Service = service
	ti.Operation = operation
	return ti
}

// WithSpanContext copies trace and span IDs from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete stops the timer and records the outcome.
func (ti *ToolInvocation) Complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ti *ToolInvocation) attrs(includePII bool) []any {
	attrs := []any{
		slog.String(logging.KeyTool, ti.Tool),
		slog.Duration(logging.KeyDuration, ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.UserEmail != "" {
		if includePII {
			attrs = append(attrs, slog.String("user", ti.UserEmail))
		} else {
			attrs = append(attrs, logging.UserHash(ti.UserEmail), logging.Domain(ti.UserEmail))
		}
	}
	switch {
	case ti.Account == "":
	case includePII:
		attrs = append(attrs, slog.String(logging.KeyAccount, ti.Account))
	default:
		attrs = append(attrs, logging.Account(ti.Account))
	}
	if ti.Service != "" {
		attrs = append(attrs, logging.Service(ti.Service))
	}
	if ti.Operation != "" {
		attrs = append(attrs, logging.Operation(ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, ti.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per tool call.
// A nil *AuditLogger logs nothing.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger returns an AuditLogger writing to logger (default: slog.Default()).
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger, config: config}
}

// LogToolInvocation logs ti at info on success and warn on failure.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.config.Enabled || ti == nil {
		return
	}
	if ti.Success {
		al.logger.Info("tool_executed", ti.attrs(al.config.IncludePII)...)
		return
	}
	al.logger.Warn("tool_failed", ti.attrs(al.config.IncludePII)...)
}
