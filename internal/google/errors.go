package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNoClientSecret is returned when no usable credentials exist and there
	// is no client_secret.json to start a login flow with.
	ErrNoClientSecret = errors.New("no credentials and no client_secret.json")

	// ErrNoCredentials is returned when an account has no usable credentials
	// and interactive login is not available.
	ErrNoCredentials = errors.New("no credentials")

	// ErrInvalidAccount is returned for account names that cannot be mapped to
	// a credentials file.
	ErrInvalidAccount = errors.New("invalid account name")
)

// FormatError renders an error the way tool results report it to MCP clients.
// Google API failures carry their HTTP status and reason; anything else is
// reported verbatim.
func FormatError(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		reason := apiErr.Message
		if reason == "" && len(apiErr.Errors) > 0 {
			reason = apiErr.Errors[0].Message
		}
		if reason == "" {
			reason = http.StatusText(apiErr.Code)
		}
		return fmt.Sprintf("Google API error %d: %s", apiErr.Code, reason)
	}
	return fmt.Sprintf("Error: %v", err)
}
