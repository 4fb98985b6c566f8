package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <record-id>",
		Short: "Show the audit trail for one record, oldest first",
		Long: `Print the activity log entries recorded for a record. Every accepted
mutation leaves exactly one entry; renormalizations appear as a single
task.reorder entry on the scope.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()
			formatter := newFormatter(rootOpts, cmd)

			entries, err := st.ActivityFor(cmd.Context(), args[0])
			if err != nil {
				return fail(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(formatter.Writer, "%s\t%s\t%s\t%s\n",
					e.RecordedAt.UTC().Format(time.RFC3339), e.ActorID, e.Action, e.SubjectID)
				if rootOpts.Verbose && e.ChangeHash != "" {
					fmt.Fprintf(formatter.Writer, "  change %s\n", e.ChangeHash)
				}
			}
			return nil
		},
	}

	return cmd
}
