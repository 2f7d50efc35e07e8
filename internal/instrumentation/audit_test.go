package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gapi/internal/logging"
)

func auditRecord(t *testing.T, config AuditLoggingConfig, ti *ToolInvocation) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), config)
	al.LogToolInvocation(ti)
	if buf.Len() == 0 {
		return nil
	}
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestAuditLoggerAnonymizesByDefault(t *testing.T) {
	ti := NewToolInvocation("list_tasks").
		WithUser("alice@example.com").
		WithAccount("default").
		WithService(ServiceTasks, "list").
		Complete(nil)

	rec := auditRecord(t, AuditLoggingConfig{Enabled: true}, ti)
	require.NotNil(t, rec)
	assert.Equal(t, "tool_executed", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "list_tasks", rec["tool"])
	assert.Equal(t, logging.AnonymizeEmail("alice@example.com"), rec["user_hash"])
	assert.Equal(t, "example.com", rec["user_domain"])
	assert.NotContains(t, rec, "user")
	assert.Equal(t, "tasks", rec["service"])
}

func TestAuditLoggerIncludePII(t *testing.T) {
	ti := NewToolInvocation("delete_event").
		WithUser("alice@example.com").
		Complete(errors.New("Google API error 404: Not Found"))

	rec := auditRecord(t, AuditLoggingConfig{Enabled: true, IncludePII: true}, ti)
	require.NotNil(t, rec)
	assert.Equal(t, "tool_failed", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "alice@example.com", rec["user"])
	assert.Equal(t, "Google API error 404: Not Found", rec["error"])
	assert.Equal(t, StatusError, ti.Status())
}

func TestAuditLoggerAccountEmail(t *testing.T) {
	ti := NewToolInvocation("get_events").WithAccount("alice@example.com").Complete(nil)

	rec := auditRecord(t, AuditLoggingConfig{Enabled: true}, ti)
	assert.Equal(t, logging.AnonymizeEmail("alice@example.com"), rec["account"])

	rec = auditRecord(t, AuditLoggingConfig{Enabled: true, IncludePII: true}, ti)
	assert.Equal(t, "alice@example.com", rec["account"])
}

func TestAuditLoggerDisabled(t *testing.T) {
	assert.Nil(t, auditRecord(t, AuditLoggingConfig{}, NewToolInvocation("x").Complete(nil)))

	var al *AuditLogger
	assert.NotPanics(t, func() { al.LogToolInvocation(NewToolInvocation("x")) })
}
