package service

import (
	"strings"
	"testing"
	"time"

	"task-manager/internal/model"
)

func TestDailySummary(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	store := newTestStore(t, emptyKV(), WithClock(func() time.Time { return now }))
	mustAdd(t, store, TaskInput{Title: "No date"})
	mustAdd(t, store, TaskInput{Title: "Next week", DueDate: "2025-03-17", Category: "work"})
	mustAdd(t, store, TaskInput{Title: "Late <draft>", Priority: model.PriorityHigh, DueDate: "2025-03-05"})
	mustAdd(t, store, TaskInput{Title: "Already done", Completed: true})

	summary := NewSummaryService(store)
	text := summary.DailySummary(now, FormatText)

	for _, want := range []string{
		"Daily summary",
		"2025-03-10",
		"Total 4 · completed 1 · pending 3 · progress 25%",
		"High priority open: 1",
		"Overdue: 1",
		"Late <draft> [high]",
		"(Work)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Already done") {
		t.Errorf("completed tasks must not be listed:\n%s", text)
	}

	late := strings.Index(text, "Late")
	week := strings.Index(text, "Next week")
	undated := strings.Index(text, "No date")
	if !(late < week && week < undated) {
		t.Errorf("expected due-date order, got:\n%s", text)
	}

	html := summary.DailySummary(now, FormatHTML)
	if !strings.Contains(html, "<b>Daily summary</b>") || !strings.Contains(html, "Late &lt;draft&gt;") {
		t.Errorf("expected escaped HTML summary, got:\n%s", html)
	}
}

func TestDailySummary_NothingOpen(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	store := newTestStore(t, emptyKV())

	text := NewSummaryService(store).DailySummary(now, FormatText)
	if !strings.Contains(text, "nothing open") {
		t.Errorf("expected the empty message, got:\n%s", text)
	}
}

func TestDueIcon(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task model.Task
		want string
	}{
		{"no due date", model.Task{}, iconDefault},
		{"overdue", model.Task{DueDate: "2025-03-09"}, iconOverdue},
		{"due tomorrow", model.Task{DueDate: "2025-03-11"}, iconDue},
		{"far away", model.Task{DueDate: "2025-04-01"}, iconDefault},
		{"completed late task", model.Task{DueDate: "2025-03-01", Completed: true}, iconDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DueIcon(tt.task, now); got != tt.want {
				t.Errorf("DueIcon = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSortByDueDate(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "old", CreatedAt: base},
		{ID: "late", DueDate: "2025-05-01"},
		{ID: "new", CreatedAt: base.Add(time.Hour)},
		{ID: "soon", DueDate: "2025-03-02"},
	}
	SortByDueDate(tasks, time.UTC)

	var got []string
	for _, task := range tasks {
		got = append(got, task.ID)
	}
	if strings.Join(got, ",") != "soon,late,new,old" {
		t.Errorf("order = %v", got)
	}
}
