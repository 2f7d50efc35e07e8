package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/mcp/oauth"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

const (
	ProfileURI          = "user://profile"
	CalendarSettingsURI = "user://calendar/settings"

	mimeJSON = "application/json"
)

// Resources returns the session-specific user resources.
func Resources(sc *server.ServerContext) []mcpserver.ServerResource {
	return []mcpserver.ServerResource{
		{
			Resource: mcp.NewResource(ProfileURI, "Current User Profile",
				mcp.WithResourceDescription("The Google account tool calls act on, and the permissions gapi holds for it"),
				mcp.WithMIMEType(mimeJSON),
			),
			Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return handleUserProfile(ctx, request, sc)
			},
		},
		{
			Resource: mcp.NewResource(CalendarSettingsURI, "Primary Calendar Settings",
				mcp.WithResourceDescription("ID, name and time zone of the current account's primary calendar"),
				mcp.WithMIMEType(mimeJSON),
			),
			Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return handleCalendarSettings(ctx, request, sc)
			},
		},
	}
}

// RegisterUserResources registers the user resources on s.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) {
	s.AddResources(Resources(sc)...)
}

func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := common.GetAccountFromArgs(ctx, nil, sc.DefaultAccount())

	profile := map[string]any{
		"account":       account,
		"authenticated": false,
		"readOnly":      sc.ReadOnly(),
		"scopes":        google.Scopes(),
		"description":   "Google account used for Calendar and Tasks",
	}
	if user, ok := oauth.UserFromContext(ctx); ok {
		profile["authenticated"] = true
		profile["email"] = user.Email
	} else {
		profile["hasCredentials"] = sc.TokenProvider().HasTokenForAccount(account)
	}

	return jsonContents(request.Params.URI, profile)
}

func handleCalendarSettings(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := common.GetAccountFromArgs(ctx, nil, sc.DefaultAccount())

	client, err := sc.CalendarClient(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no Calendar client available for account %s: %w", account, err)
	}
	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar settings: %s", google.FormatError(err))
	}

	primary, ok := lo.Find(calendars, func(c calendar.CalendarInfo) bool { return c.Primary })
	if !ok {
		return nil, fmt.Errorf("account %s has no primary calendar", account)
	}

	return jsonContents(request.Params.URI, map[string]any{
		"account":    account,
		"id":         primary.ID,
		"summary":    primary.Summary,
		"timeZone":   primary.TimeZone,
		"accessRole": primary.AccessRole,
		"calendars":  len(calendars),
	})
}

func jsonContents(uri string, data any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}
