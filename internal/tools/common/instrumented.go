package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/logging"
	"github.com/teemow/gapi/internal/mcp/oauth"
	"github.com/teemow/gapi/internal/server"
)

// Tool couples a tool definition with its handler and the Google operation it
// performs.
type Tool struct {
	Tool      mcp.Tool
	Handler   mcpserver.ToolHandlerFunc
	Service   string
	Operation string
	// Write marks tools that change data; they are hidden in read-only mode.
	Write bool
}

// ServerTools wraps every tool with instrumentation, dropping write tools
// when sc is read-only.
func ServerTools(sc *server.ServerContext, tools []Tool) []mcpserver.ServerTool {
	out := make([]mcpserver.ServerTool, 0, len(tools))
	for _, t := range tools {
		if t.Write && sc.ReadOnly() {
			continue
		}
		out = append(out, mcpserver.ServerTool{
			Tool:    t.Tool,
			Handler: InstrumentedToolHandler(t.Tool.Name, t.Service, t.Operation, sc, t.Handler),
		})
	}
	return out
}

// InstrumentedToolHandler wraps a tool handler with a span, tool and Google
// API metrics, and an audit log entry. Results with IsError set count as
// failures.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("get_events", "calendar", "list", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	service string,
	operation string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account := GetAccountFromArgs(ctx, request.GetArguments(), sc.DefaultAccount())

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.ToolSpanAttributes(account, sc.ReadOnly())...)
		defer span.End()

		invocation := instrumentation.NewToolInvocation(toolName).
			WithAccount(account).
			WithService(service, operation).
			WithSpanContext(ctx)
		if user, ok := oauth.UserFromContext(ctx); ok {
			invocation.WithUser(user.Email)
		}

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(resultText(result))
		}
		invocation.Complete(failure)
		if failure != nil {
			instrumentation.SetSpanError(span, failure)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		status := invocation.Status()
		metrics := sc.Metrics()
		metrics.RecordToolInvocation(ctx, toolName, status, account, duration)
		metrics.RecordGoogleAPIOperation(ctx, service, operation, status, duration)
		sc.AuditLogger().LogToolInvocation(invocation)

		sc.Logger().Debug("tool call finished",
			logging.Tool(toolName),
			logging.Status(status),
			"duration", duration)

		return result, err
	}
}

// TraceGoogleCall runs fn inside a client span for a Google API operation.
func TraceGoogleCall(ctx context.Context, service, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation, attrs...)
	defer span.End()

	if err := fn(ctx); err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			return text.Text
		}
	}
	return "tool returned an error"
}
