package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/service"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI authorizes against Telegram.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return api, nil
}

// Notifier forwards store success messages to the owner chat.
type Notifier struct {
	api    API
	chatID int64
}

func NewNotifier(api API, chatID int64) *Notifier {
	return &Notifier{api: api, chatID: chatID}
}

// Success implements service.Notifier.
func (n *Notifier) Success(_ context.Context, message string) {
	msg := tgbotapi.NewMessage(n.chatID, "✅ "+escape(message))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("notify: %v", err)
	}
}

// Bot is a chat front end for a single owner over the task store.
type Bot struct {
	api          API
	ownerChatID  int64
	store        *service.TaskStore
	summarySvc   *service.SummaryService
	now          func() time.Time
	conversation *conversationState
	pendingCheck string // task id awaiting delete confirmation
	mu           sync.Mutex
}

func New(api API, ownerChatID int64, store *service.TaskStore, summarySvc *service.SummaryService) *Bot {
	return &Bot{
		api:         api,
		ownerChatID: ownerChatID,
		store:       store,
		summarySvc:  summarySvc,
		now:         time.Now,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.HandleUpdate(ctx, update); err != nil {
			log.Printf("handle update: %v", err)
		}
	}

	return ctx.Err()
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() {
			return nil
		}
		if msg.Chat.ID != b.ownerChatID {
			log.Printf("[info] ignoring chat %d", msg.Chat.ID)
			return b.sendPlain(msg.Chat.ID, "This task manager is private.")
		}
		return b.handleMessage(ctx, msg)
	}
	return nil
}

// SendSummary pushes the daily summary to the owner chat.
func (b *Bot) SendSummary(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendText(b.ownerChatID, b.summarySvc.DailySummary(b.now(), service.FormatHTML))
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation()
		b.clearPendingDelete()
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command /%s %s", msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation() {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.sendTaskList(msg.Chat.ID)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "categories":
		return b.handleCategories(msg)
	case "newcategory":
		return b.handleNewCategory(ctx, msg)
	case "delcategory":
		return b.handleDeleteCategory(ctx, msg)
	case "category":
		return b.handleSelectCategory(msg)
	case "search":
		return b.handleSearch(msg)
	case "priority":
		return b.handlePriority(msg)
	case "stats":
		return b.handleStats(msg)
	case "report":
		return b.SendSummary(ctx)
	case "cancel":
		b.clearConversation()
		b.clearPendingDelete()
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(msg.Chat.ID)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendPlain(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) setConversation(state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversation = state
}

func (b *Bot) getConversation() *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversation
}

func (b *Bot) hasConversation() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversation != nil
}

func (b *Bot) clearConversation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversation = nil
}

func (b *Bot) setPendingDelete(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingCheck = taskID
}

// takePendingDelete returns and clears the pending id if it matches.
func (b *Bot) takePendingDelete(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingCheck == "" || b.pendingCheck != taskID {
		return false
	}
	b.pendingCheck = ""
	return true
}

func (b *Bot) clearPendingDelete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingCheck = ""
}
