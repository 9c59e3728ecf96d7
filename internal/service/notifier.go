package service

import "context"

// Notifier receives fire-and-forget success messages after a mutation has
// been applied and persisted.
type Notifier interface {
	Success(ctx context.Context, message string)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, message string)

func (f NotifierFunc) Success(ctx context.Context, message string) {
	f(ctx, message)
}

type nopNotifier struct{}

func (nopNotifier) Success(context.Context, string) {}

const (
	msgTaskAdded       = "Task added successfully!"
	msgTaskUpdated     = "Task updated successfully!"
	msgTaskDeleted     = "Task deleted successfully!"
	msgCategoryAdded   = "Category added successfully!"
	msgCategoryDeleted = "Category deleted successfully!"
)
