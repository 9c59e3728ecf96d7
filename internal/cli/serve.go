package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/bot"
	"task-manager/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and scheduled summaries",
		Long: `serve polls Telegram for the owner's messages and sends a summary every
REPORT_INTERVAL_HOURS, plus once a day at SUMMARY_TIME when that is set.

Requires TELEGRAM_TOKEN and OWNER_CHAT_ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runServe(cmd.Context())
		},
	}
}

func (o *rootOptions) runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}

	store, closeDB, err := openStore(ctx, cfg, service.WithNotifier(bot.NewNotifier(api, cfg.OwnerChatID)))
	if err != nil {
		return err
	}
	defer closeDB()

	unsubscribe := store.Subscribe(func(state service.State) {
		log.Printf("[info] state changed tasks=%d categories=%d selected=%s",
			len(state.Tasks), len(state.Categories), state.SelectedCategory)
	})
	defer unsubscribe()

	summarySvc := service.NewSummaryService(store)
	telegramBot := bot.New(api, cfg.OwnerChatID, store, summarySvc)

	scheduler := service.NewSchedulerService(time.Local, 30*time.Second)
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval("report", cfg.ReportInterval, telegramBot.SendSummary); err != nil {
			return err
		}
	}
	if cfg.SummaryTime != "" {
		if _, err := scheduler.ScheduleDaily("daily-summary", cfg.SummaryTime, telegramBot.SendSummary); err != nil {
			return err
		}
	}
	if scheduler.Entries() > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("Task manager bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("Shutdown complete.")
	return nil
}
