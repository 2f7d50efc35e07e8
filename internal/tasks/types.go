package tasks

import (
	tasks "google.golang.org/api/tasks/v1"
)

// Task status values accepted by the API.
const (
	StatusNeedsAction = "needsAction"
	StatusCompleted   = "completed"
)

// Defaults applied by ListTasks and ListTaskLists.
const (
	DefaultMaxTasks     = 100
	DefaultMaxTaskLists = 100
)

// TaskList represents a Google Tasks list.
type TaskList struct {
	ID      string
	Title   string
	Updated string
}

// Task represents a single task.
type Task struct {
	ID        string
	Title     string
	Notes     string
	Status    string
	Due       string
	Completed string
	Parent    string
	Position  string
	Hidden    bool
}

// ListTasksOptions selects the tasks returned by ListTasks.
type ListTasksOptions struct {
	TaskListID    string
	MaxResults    int64
	// ShowCompleted defaults to true when nil.
	ShowCompleted *bool
	ShowHidden    bool
	DueMin        string
	DueMax        string
}

// TaskInput describes a new task.
type TaskInput struct {
	Title string
	Notes string
	Due   string
	// Parent makes the new task a subtask.
	Parent string
}

// TaskPatch lists the fields to change on an existing task. Nil fields are
// left untouched.
type TaskPatch struct {
	Title  *string
	Notes  *string
	Status *string
	Due    *string
}

func toTaskList(tl *tasks.TaskList) TaskList {
	if tl == nil {
		return TaskList{}
	}
	return TaskList{
		ID:      tl.Id,
		Title:   tl.Title,
		Updated: tl.Updated,
	}
}

func toTask(t *tasks.Task) Task {
	if t == nil {
		return Task{}
	}
	task := Task{
		ID:       t.Id,
		Title:    t.Title,
		Notes:    t.Notes,
		Status:   t.Status,
		Due:      t.Due,
		Parent:   t.Parent,
		Position: t.Position,
		Hidden:   t.Hidden,
	}
	if t.Completed != nil {
		task.Completed = *t.Completed
	}
	return task
}
