package model

import (
	"strings"
	"unicode"
)

// AllCategoryID is the reserved pseudo-category meaning "no filter".
const AllCategoryID = "all"

// Category groups tasks by area (work, health, shopping, etc.).
// TaskCount is derived from the task list and never set by callers.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	TaskCount int    `json:"taskCount"`
}

// DisplayName falls back to a title-cased id when no category record is known.
func DisplayName(id string, categories []Category) string {
	for _, c := range categories {
		if c.ID == id && strings.TrimSpace(c.Name) != "" {
			return c.Name
		}
	}
	if id == AllCategoryID {
		return "All Tasks"
	}
	if id == "" {
		return id
	}
	runes := []rune(id)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
