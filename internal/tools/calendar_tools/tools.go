package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

// Tools returns every Calendar tool.
func Tools(sc *server.ServerContext) []common.Tool {
	var tools []common.Tool
	tools = append(tools, calendarListTools(sc)...)
	tools = append(tools, eventTools(sc)...)
	tools = append(tools, schedulingTools(sc)...)
	return tools
}

// RegisterCalendarTools registers the Calendar tools with s.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	s.AddTools(common.ServerTools(sc, Tools(sc))...)
}

func getCalendarClient(ctx context.Context, sc *server.ServerContext, request mcp.CallToolRequest) (*calendar.Client, error) {
	return sc.CalendarClient(ctx, common.GetAccountFromArgs(ctx, request.GetArguments(), sc.DefaultAccount()))
}

func calendarIDOrPrimary(id string) string {
	if id == "" {
		return calendar.PrimaryCalendarID
	}
	return id
}

func withCalendarID() mcp.ToolOption {
	return mcp.WithString("calendar_id",
		mcp.Description("Calendar ID (default: 'primary')"),
		mcp.DefaultString(calendar.PrimaryCalendarID),
	)
}
