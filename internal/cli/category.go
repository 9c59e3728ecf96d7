package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

const defaultCategoryColor = "#6b7280"

func newCategoryCmd(opts *rootOptions) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories"},
		Short:   "Manage categories",
	}
	categoryCmd.AddCommand(newCategoryAddCmd(opts))
	categoryCmd.AddCommand(newCategoryListCmd(opts))
	categoryCmd.AddCommand(newCategoryRemoveCmd(opts))
	return categoryCmd
}

func newCategoryAddCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a category; its id is the lowercased name with dashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color, _ := cmd.Flags().GetString("color")
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				cat, err := store.AddCategory(cmd.Context(), args[0], color)
				if cat.ID == "" {
					return err
				}
				fmt.Fprintf(out, "  %s %s\n", cat.ID, renderCategory(cat.ID, store.Categories()))
				return err
			})
		},
	}
	cmd.Flags().String("color", defaultCategoryColor, "Hex color")
	return cmd
}

func newCategoryListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories with task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				fmt.Fprintln(out, renderCategories(store.Categories()))
				return nil
			})
		},
	}
}

func newCategoryRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"delete"},
		Short:   "Delete a category and every task in it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if id == model.AllCategoryID {
				return fmt.Errorf("the %q category cannot be deleted", model.AllCategoryID)
			}
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				if _, ok := store.Category(id); !ok {
					return fmt.Errorf("unknown category %q", id)
				}
				return store.DeleteCategory(cmd.Context(), id)
			})
		},
	}
}
