package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys shared by the server, tools and audit log.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyAccount   = "account"
	KeyUserHash  = "user_hash"
	KeyDomain    = "user_domain"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyTransport = "transport"
)

// Status values. instrumentation imports this package, so they live here too.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

func Service(svc string) slog.Attr { return slog.String(KeyService, svc) }

func Tool(tool string) slog.Attr { return slog.String(KeyTool, tool) }

func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Account returns the account attribute. On the HTTP transport accounts are
// the caller's email address; those are logged hashed.
func Account(account string) slog.Attr {
	if strings.Contains(account, "@") {
		return slog.String(KeyAccount, AnonymizeEmail(account))
	}
	return slog.String(KeyAccount, account)
}

// Err returns the error attribute. A nil error yields an empty group, which
// slog drops, so Err(maybeNil) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an email so log lines stay correlatable without
// carrying the address.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(hash[:8])
}

func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken reports only the token length.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain returns the part after the single "@" of email, or "".
func ExtractDomain(email string) string {
	user, domain, ok := strings.Cut(email, "@")
	if !ok || user == "" || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// Domain is lower cardinality than the full address.
func Domain(email string) slog.Attr {
	return slog.String(KeyDomain, ExtractDomain(email))
}
