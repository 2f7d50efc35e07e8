package tasks_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tasks"
	"github.com/teemow/gapi/internal/tools/common"
)

type listTasksArgs struct {
	TaskListID    string `mapstructure:"task_list_id" validate:"required"`
	MaxResults    int64  `mapstructure:"max_results" validate:"omitempty,min=1,max=100"`
	ShowCompleted bool   `mapstructure:"show_completed"`
	ShowHidden    bool   `mapstructure:"show_hidden"`
	DueMax        string `mapstructure:"due_max"`
	DueMin        string `mapstructure:"due_min"`
}

type taskRefArgs struct {
	TaskListID string `mapstructure:"task_list_id" validate:"required"`
	TaskID     string `mapstructure:"task_id" validate:"required"`
}

type createTaskArgs struct {
	TaskListID string `mapstructure:"task_list_id" validate:"required"`
	Title      string `mapstructure:"title" validate:"required"`
	Notes      string `mapstructure:"notes"`
	Due        string `mapstructure:"due"`
	Parent     string `mapstructure:"parent"`
}

type updateTaskArgs struct {
	TaskListID string  `mapstructure:"task_list_id" validate:"required"`
	TaskID     string  `mapstructure:"task_id" validate:"required"`
	Title      *string `mapstructure:"title"`
	Notes      *string `mapstructure:"notes"`
	Status     *string `mapstructure:"status" validate:"omitempty,oneof=needsAction completed"`
	Due        *string `mapstructure:"due"`
}

// Tools returns every Tasks tool.
func Tools(sc *server.ServerContext) []common.Tool {
	listTaskListsTool := mcp.NewTool("list_task_lists",
		mcp.WithDescription("List all task lists."),
		common.WithAccount(),
		mcp.WithTitleAnnotation("List task lists"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	listTasksTool := mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks in a task list."),
		common.WithAccount(),
		mcp.WithString("task_list_id",
			mcp.Required(),
			mcp.Description("The task list ID"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum tasks to return (default: 100)"),
			mcp.DefaultNumber(tasks.DefaultMaxTasks),
			mcp.Min(1),
			mcp.Max(100),
		),
		mcp.WithBoolean("show_completed",
			mcp.Description("Include completed tasks (default: true)"),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("show_hidden",
			mcp.Description("Include hidden tasks (default: false)"),
			mcp.DefaultBool(false),
		),
		mcp.WithString("due_max",
			mcp.Description("Upper bound for due date (RFC3339)"),
		),
		mcp.WithString("due_min",
			mcp.Description("Lower bound for due date (RFC3339)"),
		),
		mcp.WithTitleAnnotation("List tasks"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	getTaskTool := mcp.NewTool("get_task",
		mcp.WithDescription("Get details of a specific task."),
		common.WithAccount(),
		mcp.WithString("task_list_id",
			mcp.Required(),
			mcp.Description("The task list ID"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID"),
		),
		mcp.WithTitleAnnotation("Get task"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	createTaskTool := mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task."),
		common.WithAccount(),
		mcp.WithString("task_list_id",
			mcp.Required(),
			mcp.Description("The task list ID to create in"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("notes",
			mcp.Description("Task notes/description"),
		),
		mcp.WithString("due",
			mcp.Description("Due date (RFC3339, e.g. '2026-02-28T00:00:00Z')"),
		),
		mcp.WithString("parent",
			mcp.Description("Parent task ID (for subtasks)"),
		),
		mcp.WithTitleAnnotation("Create task"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	updateTaskTool := mcp.NewTool("update_task",
		mcp.WithDescription("Update an existing task. Only provided fields are changed."),
		common.WithAccount(),
		mcp.WithString("task_list_id",
			mcp.Required(),
			mcp.Description("The task list ID"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID to update"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("notes",
			mcp.Description("New notes"),
		),
		mcp.WithString("status",
			mcp.Description("New status ('needsAction' or 'completed')"),
			mcp.Enum(tasks.StatusNeedsAction, tasks.StatusCompleted),
		),
		mcp.WithString("due",
			mcp.Description("New due date (RFC3339)"),
		),
		mcp.WithTitleAnnotation("Update task"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	deleteTaskTool := mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		common.WithAccount(),
		mcp.WithString("task_list_id",
			mcp.Required(),
			mcp.Description("The task list ID"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID to delete"),
		),
		mcp.WithTitleAnnotation("Delete task"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	return []common.Tool{
		{Tool: listTaskListsTool, Handler: handleListTaskLists(sc), Service: instrumentation.ServiceTasks, Operation: "list_task_lists"},
		{Tool: listTasksTool, Handler: handleListTasks(sc), Service: instrumentation.ServiceTasks, Operation: "list_tasks"},
		{Tool: getTaskTool, Handler: handleGetTask(sc), Service: instrumentation.ServiceTasks, Operation: "get_task"},
		{Tool: createTaskTool, Handler: handleCreateTask(sc), Service: instrumentation.ServiceTasks, Operation: "create_task", Write: true},
		{Tool: updateTaskTool, Handler: handleUpdateTask(sc), Service: instrumentation.ServiceTasks, Operation: "update_task", Write: true},
		{Tool: deleteTaskTool, Handler: handleDeleteTask(sc), Service: instrumentation.ServiceTasks, Operation: "delete_task", Write: true},
	}
}

// RegisterTasksTools registers the Tasks tools with s.
func RegisterTasksTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	s.AddTools(common.ServerTools(sc, Tools(sc))...)
}

func getTasksClient(ctx context.Context, sc *server.ServerContext, request mcp.CallToolRequest) (*tasks.Client, error) {
	return sc.TasksClient(ctx, common.GetAccountFromArgs(ctx, request.GetArguments(), sc.DefaultAccount()))
}

func taskListAttr(id string) attribute.KeyValue {
	return attribute.String(instrumentation.SpanAttrTaskListID, id)
}

func handleListTaskLists(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var lists []tasks.TaskList
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "list_task_lists", func(ctx context.Context) error {
			var err error
			lists, err = client.ListTaskLists(ctx)
			return err
		})
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatTaskLists(lists)), nil
	}
}

func handleListTasks(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := listTasksArgs{MaxResults: tasks.DefaultMaxTasks, ShowCompleted: true}
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var items []tasks.Task
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "list_tasks", func(ctx context.Context) error {
			var err error
			items, err = client.ListTasks(ctx, tasks.ListTasksOptions{
				TaskListID:    args.TaskListID,
				MaxResults:    args.MaxResults,
				ShowCompleted: &args.ShowCompleted,
				ShowHidden:    args.ShowHidden,
				DueMin:        args.DueMin,
				DueMax:        args.DueMax,
			})
			return err
		}, taskListAttr(args.TaskListID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatTasks(items)), nil
	}
}

func handleGetTask(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args taskRefArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var task *tasks.Task
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "get_task", func(ctx context.Context) error {
			var err error
			task, err = client.GetTask(ctx, args.TaskListID, args.TaskID)
			return err
		}, taskListAttr(args.TaskListID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatTaskDetails(*task)), nil
	}
}

func handleCreateTask(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args createTaskArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var created *tasks.Task
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "create_task", func(ctx context.Context) error {
			var err error
			created, err = client.CreateTask(ctx, args.TaskListID, tasks.TaskInput{
				Title:  args.Title,
				Notes:  args.Notes,
				Due:    args.Due,
				Parent: args.Parent,
			})
			return err
		}, taskListAttr(args.TaskListID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatCreated(created)), nil
	}
}

func handleUpdateTask(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args updateTaskArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		var updated *tasks.Task
		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "update_task", func(ctx context.Context) error {
			var err error
			updated, err = client.UpdateTask(ctx, args.TaskListID, args.TaskID, tasks.TaskPatch{
				Title:  args.Title,
				Notes:  args.Notes,
				Status: args.Status,
				Due:    args.Due,
			})
			return err
		}, taskListAttr(args.TaskListID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatUpdated(updated)), nil
	}
}

func handleDeleteTask(sc *server.ServerContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args taskRefArgs
		if err := common.DecodeArgs(ctx, request.GetArguments(), &args); err != nil {
			return common.ArgsErrorResult(err), nil
		}

		client, err := getTasksClient(ctx, sc, request)
		if err != nil {
			return common.ErrorResult(err), nil
		}

		err = common.TraceGoogleCall(ctx, instrumentation.ServiceTasks, "delete_task", func(ctx context.Context) error {
			return client.DeleteTask(ctx, args.TaskListID, args.TaskID)
		}, taskListAttr(args.TaskListID))
		if err != nil {
			return common.ErrorResult(err), nil
		}

		return mcp.NewToolResultText(tasks.FormatDeleted(args.TaskID)), nil
	}
}
