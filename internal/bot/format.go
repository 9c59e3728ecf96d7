package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

const (
	btnSkip             = "⏭️ Skip"
	btnConfirm          = "✅ Confirm"
	btnCancel           = "↩️ Cancel"
	btnCancelDialog     = "⏪ Cancel input"
	iconCompleted       = "✔️"
	menuLabelNewTask    = "➕ New task"
	menuLabelTasks      = "📋 Tasks"
	menuLabelCategories = "📂 Categories"
	menuLabelStats      = "📊 Stats"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func renderTaskList(state service.State, visible []model.Task, now time.Time, limit int) (string, [][]tgbotapi.InlineKeyboardButton) {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", escape(model.DisplayName(state.SelectedCategory, state.Categories))))
	if filters := describeFilters(state); filters != "" {
		builder.WriteString(filters + "\n")
	}

	if len(visible) == 0 {
		builder.WriteString("\nNo tasks here. Add one with /newtask.")
		return builder.String(), nil
	}

	active, completed := service.SplitByCompletion(visible)
	var buttons [][]tgbotapi.InlineKeyboardButton
	listed := 0
	section := func(title string, tasks []model.Task) {
		builder.WriteString(fmt.Sprintf("\n<b>%s (%d)</b>\n", title, len(tasks)))
		for _, task := range tasks {
			builder.WriteString(formatTask(task, state.Categories, now))
			if listed >= limit {
				continue
			}
			listed++
			label := fmt.Sprintf("✅ #%s · %s", model.ShortID(task.ID), shortTitle(task.Title, 20))
			if task.Completed {
				label = fmt.Sprintf("↩️ #%s · %s", model.ShortID(task.ID), shortTitle(task.Title, 20))
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+task.ID),
				tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
			))
		}
	}
	section("Active", active)
	section("Completed", completed)

	return strings.TrimSpace(builder.String()), buttons
}

func describeFilters(state service.State) string {
	var parts []string
	if state.SearchQuery != "" {
		parts = append(parts, fmt.Sprintf("🔎 “%s”", escape(state.SearchQuery)))
	}
	if state.FilterPriority != "" && state.FilterPriority != service.PriorityAll {
		parts = append(parts, "⚡ "+state.FilterPriority)
	}
	return strings.Join(parts, " · ")
}

func formatTask(task model.Task, categories []model.Category, now time.Time) string {
	var b strings.Builder
	if task.Completed {
		b.WriteString(fmt.Sprintf("%s <b>#%s</b> <s>%s</s>", iconCompleted, model.ShortID(task.ID), escape(normalizeTitle(task.Title))))
	} else {
		b.WriteString(fmt.Sprintf("%s <b>#%s</b> %s", service.DueIcon(task, now), model.ShortID(task.ID), escape(normalizeTitle(task.Title))))
	}
	b.WriteString(fmt.Sprintf(" · %s · %s\n", task.Priority, escape(model.DisplayName(task.Category, categories))))
	if task.DueDate != "" {
		if task.Overdue(now) {
			b.WriteString(fmt.Sprintf("   ⏰ Due %s — <b>overdue</b>\n", task.DueDate))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ Due %s\n", task.DueDate))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

func formatOverview(o service.Overview) string {
	var b strings.Builder
	b.WriteString("📊 <b>Progress</b>\n")
	b.WriteString(fmt.Sprintf("• Total: %d\n", o.Total))
	b.WriteString(fmt.Sprintf("• Completed: %d\n", o.Completed))
	b.WriteString(fmt.Sprintf("• Pending: %d\n", o.Pending))
	b.WriteString(fmt.Sprintf("• Progress: %d%%\n", o.CompletionRate))
	b.WriteString(fmt.Sprintf("• Created today: %d\n", o.CreatedToday))
	b.WriteString(fmt.Sprintf("• High priority open: %d\n", o.HighPriorityPending))
	b.WriteString(fmt.Sprintf("• Overdue: %d", o.Overdue))
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func categoryLabel(cat model.Category) string {
	var icon string
	switch cat.ID {
	case model.AllCategoryID:
		icon = "🗂"
	case "work":
		icon = "💼"
	case "shopping":
		icon = "🛒"
	case "health":
		icon = "🩺"
	case "personal":
		icon = "🧩"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(cat.Name)))
}

// splitNameColor treats a trailing #hex token as the color.
func splitNameColor(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", ""
	}
	last := fields[len(fields)-1]
	if len(fields) > 1 && strings.HasPrefix(last, "#") {
		return strings.Join(fields[:len(fields)-1], " "), last
	}
	return strings.Join(fields, " "), defaultCategoryColor
}

const defaultCategoryColor = "#6b7280"

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelStats),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(model.PriorityLow)),
			tgbotapi.NewKeyboardButton(string(model.PriorityMedium)),
			tgbotapi.NewKeyboardButton(string(model.PriorityHigh)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard lays out the real categories two per row.
func categoryKeyboard(categories []model.Category) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, c := range categories {
		if c.ID == model.AllCategoryID {
			continue
		}
		row = append(row, tgbotapi.NewKeyboardButton(c.Name))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}
