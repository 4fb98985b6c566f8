package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/taskrail/internal/record"
)

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, reorder, list, and discard tasks",
	}

	cmd.AddCommand(newTaskAddCommand(rootOpts))
	cmd.AddCommand(newTaskMoveCommand(rootOpts))
	cmd.AddCommand(newTaskListCommand(rootOpts))
	cmd.AddCommand(newTaskDiscardCommand(rootOpts))
	cmd.AddCommand(newTaskStatusCommand(rootOpts))
	cmd.AddCommand(newTaskAssignCommand(rootOpts))

	return cmd
}

func newTaskAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		scopeID  string
		parentID string
		status   string
	)

	cmd := &cobra.Command{
		Use:     "add <title>",
		Short:   "Create a task at the end of its sibling list",
		Example: `  taskrail task add "Brake inspection" --scope job-1 --actor tech-1
  taskrail task add "Check pads" --scope job-1 --parent <task-id> --actor tech-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			fields := record.Fields{
				record.FieldTitle:   args[0],
				record.FieldScopeID: scopeID,
			}
			if parentID != "" {
				fields[record.FieldParentID] = parentID
			}
			if status != "" {
				fields[record.FieldStatus] = status
			}

			p := s.engine.Create(actorFromFlags(rootOpts), fields)
			if err := awaitPending(cmd.Context(), p); err != nil {
				return fail(formatter, err)
			}

			rec, err := s.engine.Get(cmd.Context(), p.RecordID())
			if err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(rec)
			}
			fmt.Fprintf(formatter.Writer, "created %s at position %g\n", rec.ID, rec.Position)
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "job scope the task belongs to (required)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id for a nested task")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default open)")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func newTaskMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var beforeID, afterID string

	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task between two siblings",
		Long: `Move a task so it lands between the named neighbors. Either neighbor
may be omitted for a list end; neighbors under a different parent
reparent the task. With no neighbors the task moves to the end of its
current sibling list.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			p := s.engine.Move(actorFromFlags(rootOpts), args[0], beforeID, afterID)
			if err := awaitPending(cmd.Context(), p); err != nil {
				return fail(formatter, err)
			}

			rec, err := s.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(rec)
			}
			fmt.Fprintf(formatter.Writer, "moved %s to position %g\n", rec.ID, rec.Position)
			return nil
		},
	}

	cmd.Flags().StringVar(&beforeID, "after", "", "neighbor the task lands after")
	cmd.Flags().StringVar(&afterID, "before", "", "neighbor the task lands before")

	return cmd
}

func newTaskListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		scopeID  string
		parentID string
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the non-discarded tasks of one sibling scope, in order",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			h := s.cache.Where(cmd.Context(), scopeID, parentID)
			defer h.Close()

			tasks, _, err := h.Snapshot()
			if err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(tasks)
			}
			for _, t := range tasks {
				fmt.Fprintf(formatter.Writer, "%g\t%s\t%s\t%s\n", t.Position, t.ID, t.Status, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "job scope to list (required)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id; empty lists top-level tasks")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func newTaskDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "discard <task-id>",
		Short:         "Soft-delete a task and renumber the survivors",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			actor := actorFromFlags(rootOpts)
			rec, err := s.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return fail(formatter, err)
			}

			p := s.engine.Discard(actor, args[0])
			if err := awaitPending(cmd.Context(), p); err != nil {
				return fail(formatter, err)
			}

			// The survivors' renumbering queues behind the discard; the
			// process exits right after, so wait for it instead of
			// leaving it in the queue.
			rp := s.engine.Renormalize(actor, rec.ScopeID, rec.ParentID)
			if err := awaitPending(cmd.Context(), rp); err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"id": args[0], "discarded": true})
			}
			fmt.Fprintf(formatter.Writer, "discarded %s\n", args[0])
			return nil
		},
	}

	return cmd
}

func newTaskStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status <task-id> <open|in_progress|done>",
		Short:         "Change a task's workflow status",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			p := s.engine.ChangeStatus(actorFromFlags(rootOpts), args[0], record.Status(args[1]))
			if err := awaitPending(cmd.Context(), p); err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"id": args[0], "status": args[1]})
			}
			fmt.Fprintf(formatter.Writer, "%s is now %s\n", args[0], args[1])
			return nil
		},
	}

	return cmd
}

func newTaskAssignCommand(rootOpts *RootOptions) *cobra.Command {
	var assigneeID string

	cmd := &cobra.Command{
		Use:           "assign <task-id>",
		Short:         "Assign a task to a user, or clear the assignment",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			formatter := newFormatter(rootOpts, cmd)

			p := s.engine.AssignUser(actorFromFlags(rootOpts), args[0], assigneeID)
			if err := awaitPending(cmd.Context(), p); err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"id": args[0], "assignee_id": assigneeID})
			}
			if assigneeID == "" {
				fmt.Fprintf(formatter.Writer, "cleared assignment on %s\n", args[0])
				return nil
			}
			fmt.Fprintf(formatter.Writer, "assigned %s to %s\n", args[0], assigneeID)
			return nil
		},
	}

	cmd.Flags().StringVar(&assigneeID, "to", "", "assignee user id; empty clears the assignment")

	return cmd
}

// newFormatter builds an OutputFormatter bound to the command's
// writers.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
