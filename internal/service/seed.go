package service

import (
	"time"

	"task-manager/internal/model"
)

// DefaultCategories is the category list used when nothing was persisted.
func DefaultCategories() []model.Category {
	return []model.Category{
		{ID: model.AllCategoryID, Name: "All Tasks", Color: "#3b82f6"},
		{ID: "personal", Name: "Personal", Color: "#10b981"},
		{ID: "work", Name: "Work", Color: "#f59e0b"},
		{ID: "shopping", Name: "Shopping", Color: "#ef4444"},
		{ID: "health", Name: "Health", Color: "#8b5cf6"},
	}
}

// SampleTasks is the task list used when nothing was persisted.
func SampleTasks(now time.Time) []model.Task {
	return []model.Task{
		{
			ID:          "1",
			Title:       "Complete project proposal",
			Description: "Finish the quarterly project proposal for the new client",
			Priority:    model.PriorityHigh,
			Category:    "work",
			DueDate:     "2024-01-15",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "2",
			Title:       "Buy groceries",
			Description: "Milk, bread, eggs, and vegetables",
			Priority:    model.PriorityMedium,
			Category:    "shopping",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "3",
			Title:       "Morning workout",
			Description: "30 minutes cardio and strength training",
			Completed:   true,
			Priority:    model.PriorityLow,
			Category:    "health",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}
