package tasks

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Messages for empty results.
const (
	NoTaskListsMessage = "No task lists found."
	NoTasksMessage     = "No tasks found."
)

// notesPreviewLen is the number of characters of notes shown in task lists.
const notesPreviewLen = 200

// FormatTaskLists renders the task lists.
func FormatTaskLists(lists []TaskList) string {
	if len(lists) == 0 {
		return NoTaskListsMessage
	}
	return strings.Join(lo.Map(lists, func(tl TaskList, _ int) string {
		return fmt.Sprintf("- %s\n  ID: %s", orDefault(tl.Title, "?"), orDefault(tl.ID, "?"))
	}), "\n")
}

// FormatTask renders a task as a bullet with a notes preview.
func FormatTask(t Task) string {
	parts := []string{
		fmt.Sprintf("- [%s] %s", orDefault(t.Status, "?"), orDefault(t.Title, "(no title)")),
		"  ID: " + t.ID,
	}
	if t.Due != "" {
		parts = append(parts, "  Due: "+t.Due)
	}
	if t.Notes != "" {
		parts = append(parts, "  Notes: "+preview(t.Notes))
	}
	return strings.Join(parts, "\n")
}

// FormatTasks renders tasks separated by blank lines.
func FormatTasks(items []Task) string {
	if len(items) == 0 {
		return NoTasksMessage
	}
	return strings.Join(lo.Map(items, func(t Task, _ int) string {
		return FormatTask(t)
	}), "\n\n")
}

// FormatTaskDetails renders every populated field of a task.
func FormatTaskDetails(t Task) string {
	parts := []string{
		"Title: " + orDefault(t.Title, "?"),
		"Status: " + orDefault(t.Status, "?"),
		"ID: " + orDefault(t.ID, "?"),
	}
	if t.Due != "" {
		parts = append(parts, "Due: "+t.Due)
	}
	if t.Notes != "" {
		parts = append(parts, "Notes: "+t.Notes)
	}
	if t.Completed != "" {
		parts = append(parts, "Completed: "+t.Completed)
	}
	if t.Parent != "" {
		parts = append(parts, "Parent: "+t.Parent)
	}
	return strings.Join(parts, "\n")
}

// FormatCreated is the confirmation returned after creating a task.
func FormatCreated(t *Task) string {
	return fmt.Sprintf("Task created: %s\nID: %s", t.Title, t.ID)
}

// FormatUpdated is the confirmation returned after updating a task.
func FormatUpdated(t *Task) string {
	return fmt.Sprintf("Task updated: %s\nStatus: %s", t.Title, t.Status)
}

// FormatDeleted is the confirmation returned after deleting a task.
func FormatDeleted(taskID string) string {
	return fmt.Sprintf("Task %s deleted.", taskID)
}

// preview truncates notes to notesPreviewLen characters.
func preview(notes string) string {
	r := []rune(notes)
	if len(r) <= notesPreviewLen {
		return notes
	}
	return string(r[:notesPreviewLen]) + "..."
}

func orDefault(s, def string) string {
	return lo.Ternary(s == "", def, s)
}
