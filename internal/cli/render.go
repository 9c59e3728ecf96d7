package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Strikethrough(true)

	overdueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	priorityStyles = map[model.Priority]lipgloss.Style{
		model.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		model.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

func renderPriority(p model.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(fmt.Sprintf("%-6s", p))
}

// renderCategory draws the category name in its own color.
func renderCategory(id string, categories []model.Category) string {
	name := model.DisplayName(id, categories)
	for _, c := range categories {
		if c.ID == id && c.Color != "" {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("● " + name)
		}
	}
	return "● " + name
}

func renderTaskLine(task model.Task, categories []model.Category, now time.Time) string {
	box := "[ ]"
	title := task.Title
	if task.Completed {
		box = "[x]"
		title = doneStyle.Render(title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s  %s  %s  %s", box, mutedStyle.Render(model.ShortID(task.ID)), title,
		renderPriority(task.Priority), renderCategory(task.Category, categories))
	if task.DueDate != "" {
		due := "due " + task.DueDate
		if task.Overdue(now) {
			due = overdueStyle.Render(due + " (overdue)")
		}
		b.WriteString("  " + due)
	}
	return b.String()
}

// renderTaskSections prints active tasks before completed ones.
func renderTaskSections(tasks []model.Task, categories []model.Category, now time.Time) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("No tasks.")
	}
	active, completed := service.SplitByCompletion(tasks)

	var b strings.Builder
	section := func(title string, list []model.Task) {
		if len(list) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(list))) + "\n")
		for _, t := range list {
			b.WriteString(renderTaskLine(t, categories, now) + "\n")
		}
	}
	section("Active", active)
	section("Completed", completed)
	return strings.TrimRight(b.String(), "\n")
}

func renderTaskDetail(task model.Task, categories []model.Category, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(task.Title) + "\n")
	fmt.Fprintf(&b, "  id:        %s\n", task.ID)
	status := "open"
	if task.Completed {
		status = "completed"
	}
	fmt.Fprintf(&b, "  status:    %s\n", status)
	fmt.Fprintf(&b, "  priority:  %s\n", renderPriority(task.Priority))
	fmt.Fprintf(&b, "  category:  %s\n", renderCategory(task.Category, categories))
	if task.DueDate != "" {
		due := task.DueDate
		if task.Overdue(now) {
			due = overdueStyle.Render(due + " (overdue)")
		}
		fmt.Fprintf(&b, "  due:       %s\n", due)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "  notes:     %s\n", task.Description)
	}
	fmt.Fprintf(&b, "  created:   %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "  updated:   %s", task.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return b.String()
}

func renderCategories(categories []model.Category) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Categories (%d)", len(categories))) + "\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "  %-12s %s  %s\n", c.ID, renderCategory(c.ID, categories),
			mutedStyle.Render(fmt.Sprintf("%d tasks", c.TaskCount)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOverview(o service.Overview) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Progress") + "\n")
	fmt.Fprintf(&b, "  total:          %d\n", o.Total)
	fmt.Fprintf(&b, "  completed:      %d\n", o.Completed)
	fmt.Fprintf(&b, "  pending:        %d\n", o.Pending)
	fmt.Fprintf(&b, "  progress:       %d%%\n", o.CompletionRate)
	fmt.Fprintf(&b, "  created today:  %d\n", o.CreatedToday)
	fmt.Fprintf(&b, "  high priority:  %d\n", o.HighPriorityPending)
	overdue := fmt.Sprintf("%d", o.Overdue)
	if o.Overdue > 0 {
		overdue = overdueStyle.Render(overdue)
	}
	fmt.Fprintf(&b, "  overdue:        %s", overdue)
	return b.String()
}
