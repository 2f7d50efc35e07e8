package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"
)

// Client wraps the Google Tasks service
type Client struct {
	svc     *tasks.Service
	account string // The account this client is associated with
	now     func() time.Time
}

// NewClient creates a Tasks client for account. httpClient must already
// authorize requests.
func NewClient(ctx context.Context, account string, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tasks service: %w", err)
	}

	return &Client{
		svc:     svc,
		account: account,
		now:     time.Now,
	}, nil
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// ListTaskLists lists all task lists for the authenticated user
func (c *Client) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	result, err := c.svc.Tasklists.List().MaxResults(DefaultMaxTaskLists).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list task lists: %w", err)
	}

	lists := make([]TaskList, 0, len(result.Items))
	for _, tl := range result.Items {
		lists = append(lists, toTaskList(tl))
	}
	return lists, nil
}

// ListTasks lists the tasks of a task list.
func (c *Client) ListTasks(ctx context.Context, opts ListTasksOptions) ([]Task, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxTasks
	}

	call := c.svc.Tasks.List(opts.TaskListID).
		MaxResults(maxResults).
		ShowCompleted(lo.FromPtrOr(opts.ShowCompleted, true)).
		ShowHidden(opts.ShowHidden)
	if opts.DueMax != "" {
		call = call.DueMax(opts.DueMax)
	}
	if opts.DueMin != "" {
		call = call.DueMin(opts.DueMin)
	}

	result, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	items := make([]Task, 0, len(result.Items))
	for _, t := range result.Items {
		items = append(items, toTask(t))
	}
	return items, nil
}

// GetTask retrieves a specific task by ID
func (c *Client) GetTask(ctx context.Context, taskListID, taskID string) (*Task, error) {
	t, err := c.svc.Tasks.Get(taskListID, taskID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	result := toTask(t)
	return &result, nil
}

// CreateTask creates a task, optionally as a subtask of input.Parent.
func (c *Client) CreateTask(ctx context.Context, taskListID string, input TaskInput) (*Task, error) {
	task := &tasks.Task{
		Title: input.Title,
		Notes: input.Notes,
		Due:   input.Due,
	}

	call := c.svc.Tasks.Insert(taskListID, task)
	if input.Parent != "" {
		call = call.Parent(input.Parent)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	result := toTask(created)
	return &result, nil
}

// UpdateTask fetches a task, applies patch and writes the full task back.
// Completing a task stamps the completion time; reopening it clears it.
func (c *Client) UpdateTask(ctx context.Context, taskListID, taskID string, patch TaskPatch) (*Task, error) {
	existing, err := c.svc.Tasks.Get(taskListID, taskID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing task: %w", err)
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Notes != nil {
		existing.Notes = *patch.Notes
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
		switch *patch.Status {
		case StatusCompleted:
			completed := c.now().UTC().Format(time.RFC3339)
			existing.Completed = &completed
		case StatusNeedsAction:
			existing.Completed = nil
			existing.NullFields = append(existing.NullFields, "Completed")
		}
	}
	if patch.Due != nil {
		existing.Due = *patch.Due
	}

	updated, err := c.svc.Tasks.Update(taskListID, taskID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	result := toTask(updated)
	return &result, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, taskListID, taskID string) error {
	if err := c.svc.Tasks.Delete(taskListID, taskID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
