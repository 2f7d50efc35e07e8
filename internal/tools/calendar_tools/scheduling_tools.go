package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

type freeBusyArgs struct {
	TimeMin     string   `mapstructure:"time_min" validate:"required"`
	TimeMax     string   `mapstructure:"time_max" validate:"required"`
	CalendarIDs []string `mapstructure:"calendar_ids"`
}

func schedulingTools(sc *server.ServerContext) []common.Tool {
	freeBusyTool := mcp.NewTool("freebusy",
		mcp.WithDescription("Check free/busy information for calendars."),
		common.WithAccount(),
		mcp.WithString("time_min",
			mcp.Required(),
			mcp.Description("Start of interval (RFC3339)"),
		),
		mcp.WithString("time_max",
			mcp.Required(),
			mcp.Description("End of interval (RFC3339)"),
		),
		mcp.WithArray("calendar_ids",
			mcp.Description("Calendar IDs to query (default: ['primary'])"),
			mcp.WithStringItems(),
		),
		mcp.WithTitleAnnotation("Free/busy"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	return []common.Tool{{
		Tool:      freeBusyTool,
		Handler:   handleFreeBusy(sc),
		Service:   instrumentation.ServiceCalendar,
		Operation: "freebusy",
	}}
}

func handleFreeBusy(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args freeBusyArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getCalendarClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var infos []calendar.FreeBusyInfo
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceCalendar, "freebusy", func(ctx context.Context) error {
			var err error
			infos, err = client.FreeBusy(ctx, args.TimeMin, args.TimeMax, args.CalendarIDs)
			return err
		})
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(calendar.FormatFreeBusy(infos)), nil
	}
}
