package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stagePriority
	stageDueDate
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	log.Printf("[info] start new task conversation chat=%d", msg.Chat.ID)
	b.setConversation(&conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation()
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty. What is it called?", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category (or «Skip» for Personal).", categoryKeyboard(b.store.Categories()))
	case stageCategory:
		if !isSkipInput(text) {
			id, ok := matchCategory(text, b.store.Categories())
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Unknown category. Pick one from the keyboard or add it with /newcategory first.", categoryKeyboard(b.store.Categories()))
			}
			state.input.Category = id
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "⚡ Priority?", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, ok := model.ParsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Choose low, medium or high.", priorityKeyboard())
			}
			state.input.Priority = p
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2025-11-30</code> (or «Skip»).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			if _, err := time.Parse(model.DueDateLayout, text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I cannot read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.DueDate = text
		}
		err := b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation()
		return err
	default:
		b.clearConversation()
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.store.AddTask(ctx, input)
	if err != nil && task.ID == "" {
		return b.sendText(chatID, fmt.Sprintf("Could not add the task: %s", escape(err.Error())))
	}
	if err != nil {
		log.Printf("[warn] task %s added but not saved: %v", task.ID, err)
	}

	log.Printf("[info] task created id=%s priority=%s category=%s", task.ID, task.Priority, task.Category)

	var summary strings.Builder
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", model.ShortID(task.ID)))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(model.DisplayName(task.Category, b.store.Categories()))))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	if task.DueDate != "" {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

// matchCategory accepts a category id or display name, ignoring case.
// The "all" pseudo-category is not a valid task category.
func matchCategory(text string, categories []model.Category) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(text))
	for _, c := range categories {
		if c.ID == model.AllCategoryID {
			continue
		}
		if c.ID == want || strings.ToLower(c.Name) == want || service.CategoryID(want) == c.ID {
			return c.ID, true
		}
	}
	return "", false
}
