package model

import (
	"strings"
	"time"
)

// Priority is a display and filtering label; it has no scheduling effect.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DueDateLayout is the on-disk and input format of Task.DueDate.
const DueDateLayout = "2006-01-02"

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts any casing and surrounding whitespace.
func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}

// Task represents a single to-do item.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	Category    string    `json:"category"`
	DueDate     string    `json:"dueDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Due returns the parsed due date in loc, or false when the task has none
// or the stored value is not a date.
func (t Task) Due(loc *time.Location) (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DueDateLayout, t.DueDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Overdue is true for open tasks whose due date is before the day of now.
func (t Task) Overdue(now time.Time) bool {
	if t.Completed {
		return false
	}
	d, ok := t.Due(now.Location())
	if !ok {
		return false
	}
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return d.Before(today)
}

// shortIDLen is how much of an id is shown to people. The tail of a UUIDv7
// is random while its head only changes about once a minute.
const shortIDLen = 8

// ShortID returns the last characters of id, or id itself when it is short.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}
