package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

const (
	cbTogglePrefix  = "toggle:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbSelectPrefix  = "select:"

	// Telegram rejects callback data longer than this.
	maxCallbackData = 64
	maxListedTasks  = 30
)

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your tasks and categories.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+helpText)
}

const helpText = "• /newtask — add a task step by step\n" +
	"• /tasks — show tasks for the selected category\n" +
	"• /done &lt;id&gt; — toggle completion\n" +
	"• /edit &lt;id&gt; &lt;field&gt; &lt;value&gt; — change title, description, priority, category or due\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /categories — categories with task counts\n" +
	"• /newcategory &lt;name&gt; [#color] — add a category\n" +
	"• /delcategory &lt;id&gt; — delete a category and its tasks\n" +
	"• /category &lt;id&gt; — select a category (all for everything)\n" +
	"• /search &lt;text&gt; — filter by text, empty to clear\n" +
	"• /priority &lt;low|medium|high|all&gt; — filter by priority\n" +
	"• /stats — progress overview\n" +
	"• /report — daily summary now\n" +
	"• /cancel — cancel the current input"

func (b *Bot) resolve(chatID int64, ref string) (model.Task, bool, error) {
	task, err := b.store.ResolveTask(ref)
	switch {
	case err == nil:
		return task, true, nil
	case errors.Is(err, service.ErrTaskNotFound):
		return model.Task{}, false, b.sendText(chatID, "Task not found.")
	case errors.Is(err, service.ErrAmbiguousTaskRef):
		return model.Task{}, false, b.sendText(chatID, "Several tasks match, use a longer id.")
	default:
		return model.Task{}, false, err
	}
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: /done 1a2b3c4d")
	}
	task, ok, err := b.resolve(msg.Chat.ID, ref)
	if !ok {
		return err
	}
	return b.toggleAndReport(ctx, msg.Chat.ID, task)
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, task model.Task) error {
	if err := b.store.ToggleTask(ctx, task.ID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Changed, but not saved: %s", escape(err.Error())))
	}
	log.Printf("[info] task toggled id=%s completed=%t", task.ID, !task.Completed)
	text := fmt.Sprintf("✅ «%s» done.", escape(task.Title))
	if task.Completed {
		text = fmt.Sprintf("↩️ «%s» is open again.", escape(task.Title))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleDelete(msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: /delete 1a2b3c4d")
	}
	task, ok, err := b.resolve(msg.Chat.ID, ref)
	if !ok {
		return err
	}
	return b.askDeleteConfirmation(msg.Chat.ID, task)
}

func (b *Bot) askDeleteConfirmation(chatID int64, task model.Task) error {
	b.setPendingDelete(task.ID)
	text := fmt.Sprintf("Delete «%s» (#%s)?", escape(task.Title), model.ShortID(task.ID))
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirmPrefix+task.ID),
		tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancelPrefix+task.ID),
	))
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) deleteAndReport(ctx context.Context, chatID int64, taskID string) error {
	task, ok := b.store.Task(taskID)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	if err := b.store.DeleteTask(ctx, taskID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Deleted, but not saved: %s", escape(err.Error())))
	}
	log.Printf("[info] task deleted id=%s", task.ID)
	return b.sendTaskList(chatID)
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /edit &lt;id&gt; &lt;title|description|priority|category|due&gt; &lt;value&gt;")
	}
	task, ok, err := b.resolve(msg.Chat.ID, fields[0])
	if !ok {
		return err
	}
	value := strings.Join(fields[2:], " ")
	patch, err := buildPatch(fields[1], value)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if err := b.store.UpdateTask(ctx, task.ID, patch); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not update: %s", escape(err.Error())))
	}
	log.Printf("[info] task updated id=%s field=%s", task.ID, fields[1])
	return nil
}

// buildPatch maps a field name and raw value to a TaskPatch. An empty value
// clears description and due date.
func buildPatch(field, value string) (service.TaskPatch, error) {
	var patch service.TaskPatch
	field = strings.ToLower(field)
	if value == "" && (field == "priority" || field == "category") {
		return patch, fmt.Errorf("%s needs a value", field)
	}
	switch field {
	case "title":
		patch.Title = &value
	case "description", "desc":
		patch.Description = &value
	case "priority":
		p := model.Priority(value)
		patch.Priority = &p
	case "category":
		id := service.CategoryID(strings.TrimSpace(value))
		patch.Category = &id
	case "due":
		if isSkipInput(value) {
			value = ""
		}
		patch.DueDate = &value
	default:
		return patch, fmt.Errorf("unknown field %q", field)
	}
	return patch, nil
}

func (b *Bot) handleCategories(msg *tgbotapi.Message) error {
	state := b.store.State()
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, cat := range state.Categories {
		marker := ""
		if cat.ID == state.SelectedCategory {
			marker = " ◀"
		}
		builder.WriteString(fmt.Sprintf("• %s <code>%s</code> — %d%s\n", categoryLabel(cat), escape(cat.ID), cat.TaskCount, marker))
		if data := cbSelectPrefix + cat.ID; len(data) <= maxCallbackData {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s (%d)", cat.Name, cat.TaskCount), data),
			))
		}
	}
	msgCfg := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	msgCfg.ParseMode = tgbotapi.ModeHTML
	if len(rows) > 0 {
		msgCfg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := b.api.Send(msgCfg)
	return err
}

func (b *Bot) handleNewCategory(ctx context.Context, msg *tgbotapi.Message) error {
	name, color := splitNameColor(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newcategory Side projects #14b8a6")
	}
	cat, err := b.store.AddCategory(ctx, name, color)
	switch {
	case errors.Is(err, service.ErrCategoryExists):
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Category <code>%s</code> already exists.", escape(service.CategoryID(name))))
	case err != nil:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not add category: %s", escape(err.Error())))
	}
	log.Printf("[info] category added id=%s", cat.ID)
	return nil
}

func (b *Bot) handleDeleteCategory(ctx context.Context, msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		return b.sendText(msg.Chat.ID, "Usage: /delcategory work")
	}
	if id == model.AllCategoryID {
		return b.sendText(msg.Chat.ID, "The <code>all</code> category cannot be deleted.")
	}
	if _, ok := b.store.Category(id); !ok {
		return b.sendText(msg.Chat.ID, "Category not found.")
	}
	if err := b.store.DeleteCategory(ctx, id); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Deleted, but not saved: %s", escape(err.Error())))
	}
	log.Printf("[info] category deleted id=%s", id)
	return nil
}

func (b *Bot) handleSelectCategory(msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		id = model.AllCategoryID
	}
	return b.selectCategory(msg.Chat.ID, id)
}

func (b *Bot) selectCategory(chatID int64, id string) error {
	if _, ok := b.store.Category(id); !ok {
		return b.sendText(chatID, "Category not found.")
	}
	b.store.SetSelectedCategory(id)
	return b.sendTaskList(chatID)
}

func (b *Bot) handleSearch(msg *tgbotapi.Message) error {
	b.store.SetSearchQuery(strings.TrimSpace(msg.CommandArguments()))
	return b.sendTaskList(msg.Chat.ID)
}

func (b *Bot) handlePriority(msg *tgbotapi.Message) error {
	if err := b.store.SetFilterPriority(msg.CommandArguments()); err != nil {
		return b.sendText(msg.Chat.ID, "Priority must be low, medium, high or all.")
	}
	return b.sendTaskList(msg.Chat.ID)
}

func (b *Bot) handleStats(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, formatOverview(b.store.Overview(b.now())))
}

func (b *Bot) sendTaskList(chatID int64) error {
	state := b.store.State()
	text, buttons := renderTaskList(state, b.store.VisibleTasks(), b.now(), maxListedTasks)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	b.ack(cb)
	chatID := cb.Message.Chat.ID
	if chatID != b.ownerChatID {
		return nil
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		task, ok := b.store.Task(strings.TrimPrefix(data, cbTogglePrefix))
		if !ok {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		if err := b.toggleAndReport(ctx, chatID, task); err != nil {
			return err
		}
		return b.sendTaskList(chatID)
	case strings.HasPrefix(data, cbDeletePrefix):
		task, ok := b.store.Task(strings.TrimPrefix(data, cbDeletePrefix))
		if !ok {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.askDeleteConfirmation(chatID, task)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID := strings.TrimPrefix(data, cbConfirmPrefix)
		if !b.takePendingDelete(taskID) {
			return b.sendText(chatID, "That confirmation has expired.")
		}
		return b.deleteAndReport(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearPendingDelete()
		return b.sendText(chatID, "Kept it.")
	case strings.HasPrefix(data, cbSelectPrefix):
		return b.selectCategory(chatID, strings.TrimPrefix(data, cbSelectPrefix))
	default:
		return nil
	}
}
