package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/service"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show progress figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				fmt.Fprintln(out, renderOverview(store.Overview(time.Now())))
				return nil
			})
		},
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the daily summary sent by the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				summary := service.NewSummaryService(store)
				fmt.Fprintln(out, summary.DailySummary(time.Now(), service.FormatText))
				return nil
			})
		},
	}
}
