package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

func newTaskCmd(opts *rootOptions) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	taskCmd.AddCommand(newTaskAddCmd(opts))
	taskCmd.AddCommand(newTaskListCmd(opts))
	taskCmd.AddCommand(newTaskShowCmd(opts))
	taskCmd.AddCommand(newTaskEditCmd(opts))
	taskCmd.AddCommand(newTaskToggleCmd(opts))
	taskCmd.AddCommand(newTaskRemoveCmd(opts))
	return taskCmd
}

func newTaskAddCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			priority, _ := cmd.Flags().GetString("priority")
			category, _ := cmd.Flags().GetString("category")
			due, _ := cmd.Flags().GetString("due")

			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				task, err := store.AddTask(cmd.Context(), service.TaskInput{
					Title:       args[0],
					Description: description,
					Priority:    model.Priority(priority),
					Category:    service.CategoryID(category),
					DueDate:     due,
				})
				if task.ID == "" {
					return err
				}
				fmt.Fprintln(out, renderTaskLine(task, store.Categories(), time.Now()))
				return err
			})
		},
	}
	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().StringP("priority", "p", "", "low, medium or high (default medium)")
	cmd.Flags().StringP("category", "c", "", "Category id or name (default personal)")
	cmd.Flags().String("due", "", "Due date as YYYY-MM-DD")
	return cmd
}

func newTaskListCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			search, _ := cmd.Flags().GetString("search")
			priority, _ := cmd.Flags().GetString("priority")
			completed, _ := cmd.Flags().GetBool("completed")

			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				if category == "" {
					category = model.AllCategoryID
				}
				if _, ok := store.Category(category); !ok && category != model.AllCategoryID {
					return fmt.Errorf("unknown category %q", category)
				}
				if err := store.SetFilterPriority(priority); err != nil {
					return err
				}
				store.SetSearchQuery(search)
				store.SetSelectedCategory(category)

				tasks := store.VisibleTasks()
				if completed {
					_, tasks = service.SplitByCompletion(tasks)
				}
				state := store.State()
				fmt.Fprintln(out, headerStyle.Render(model.DisplayName(state.SelectedCategory, state.Categories)))
				fmt.Fprintln(out, renderTaskSections(tasks, state.Categories, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringP("category", "c", "", "Only tasks in this category id")
	cmd.Flags().StringP("search", "s", "", "Match text in title or description")
	cmd.Flags().StringP("priority", "p", service.PriorityAll, "low, medium, high or all")
	cmd.Flags().Bool("completed", false, "Only completed tasks")
	return cmd
}

func newTaskShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				task, err := store.ResolveTask(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderTaskDetail(task, store.Categories(), time.Now()))
				return nil
			})
		},
	}
}

func newTaskEditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Change fields of a task",
		Long:  "Only the flags that are given are changed. Pass --due \"\" to clear the due date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				task, err := store.ResolveTask(args[0])
				if err != nil {
					return err
				}
				return store.UpdateTask(cmd.Context(), task.ID, patch)
			})
		},
	}
	cmd.Flags().StringP("title", "t", "", "New title")
	cmd.Flags().StringP("description", "d", "", "New description")
	cmd.Flags().StringP("priority", "p", "", "low, medium or high")
	cmd.Flags().StringP("category", "c", "", "Category id or name")
	cmd.Flags().String("due", "", "Due date as YYYY-MM-DD, empty to clear")
	return cmd
}

var errNothingToChange = errors.New("nothing to change, pass at least one field flag")

// patchFromFlags builds a patch from the flags set on the command line.
func patchFromFlags(cmd *cobra.Command) (service.TaskPatch, error) {
	var patch service.TaskPatch
	flags := cmd.Flags()
	changed := false
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
		changed = true
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
		changed = true
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p := model.Priority(v)
		patch.Priority = &p
		changed = true
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		id := service.CategoryID(v)
		patch.Category = &id
		changed = true
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		patch.DueDate = &v
		changed = true
	}
	if !changed {
		return patch, errNothingToChange
	}
	return patch, nil
}

func newTaskToggleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Flip a task between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				task, err := store.ResolveTask(args[0])
				if err != nil {
					return err
				}
				if err := store.ToggleTask(cmd.Context(), task.ID); err != nil {
					return err
				}
				state := "completed"
				if task.Completed {
					state = "open"
				}
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ %s is %s", task.Title, state)))
				return nil
			})
		},
	}
}

func newTaskRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *service.TaskStore, out io.Writer) error {
				task, err := store.ResolveTask(args[0])
				if err != nil {
					return err
				}
				return store.DeleteTask(cmd.Context(), task.ID)
			})
		},
	}
}
