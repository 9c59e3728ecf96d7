package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-manager/internal/model"
)

// SummaryFormat selects the markup of a summary.
type SummaryFormat int

const (
	FormatText SummaryFormat = iota
	FormatHTML
)

const (
	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
)

// SummaryService builds human-readable summaries for scheduled notifications.
type SummaryService struct {
	store *TaskStore
}

func NewSummaryService(store *TaskStore) *SummaryService {
	return &SummaryService{store: store}
}

// DailySummary lists open tasks, earliest due date first, with overall
// progress on top.
func (s *SummaryService) DailySummary(now time.Time, format SummaryFormat) string {
	overview := s.store.Overview(now)
	categories := s.store.Categories()
	pending, _ := SplitByCompletion(s.store.Tasks())
	SortByDueDate(pending, now.Location())

	bold := func(v string) string { return v }
	esc := func(v string) string { return v }
	if format == FormatHTML {
		bold = func(v string) string { return "<b>" + v + "</b>" }
		esc = html.EscapeString
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 %s\n", bold("Daily summary")))
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format(model.DueDateLayout)))
	builder.WriteString(fmt.Sprintf("Total %d · completed %d · pending %d · progress %d%%\n",
		overview.Total, overview.Completed, overview.Pending, overview.CompletionRate))
	if overview.HighPriorityPending > 0 {
		builder.WriteString(fmt.Sprintf("🔥 High priority open: %d\n", overview.HighPriorityPending))
	}
	if overview.Overdue > 0 {
		builder.WriteString(fmt.Sprintf("%s Overdue: %d\n", iconOverdue, overview.Overdue))
	}

	builder.WriteString(fmt.Sprintf("\n%s\n", bold("Open tasks")))
	if len(pending) == 0 {
		builder.WriteString("— nothing open, all caught up\n")
	}
	for _, task := range pending {
		builder.WriteString(formatSummaryTask(task, categories, now, esc))
	}

	return strings.TrimSpace(builder.String())
}

// SortByDueDate orders tasks with a due date first, earliest first; tasks
// without one keep newest-first order after them.
func SortByDueDate(tasks []model.Task, loc *time.Location) {
	sort.SliceStable(tasks, func(i, j int) bool {
		di, iok := tasks[i].Due(loc)
		dj, jok := tasks[j].Due(loc)
		switch {
		case iok && jok:
			return di.Before(dj)
		case iok:
			return true
		case jok:
			return false
		default:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
	})
}

// DueIcon marks overdue tasks and tasks due within two days.
func DueIcon(task model.Task, now time.Time) string {
	if task.Overdue(now) {
		return iconOverdue
	}
	if d, ok := task.Due(now.Location()); ok && !task.Completed && d.Sub(now) <= 48*time.Hour {
		return iconDue
	}
	return iconDefault
}

func formatSummaryTask(task model.Task, categories []model.Category, now time.Time, esc func(string) string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s [%s]", DueIcon(task, now), esc(task.Title), task.Priority))
	if name := model.DisplayName(task.Category, categories); name != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", esc(name)))
	}
	if d, ok := task.Due(now.Location()); ok {
		if task.Overdue(now) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · overdue", task.DueDate))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d left", task.DueDate, daysLeft))
		}
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", esc(desc)))
	}
	sb.WriteByte('\n')
	return sb.String()
}
