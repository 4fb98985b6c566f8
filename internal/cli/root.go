package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/taskrail/internal/record"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // path to yaml config file
	Database string // overrides the config file's database path
	Actor    string // caller identity for mutations
	Role     string // caller role: technician | admin
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the taskrail CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taskrail",
		Short: "Ordered task lists with optimistic sync",
		Long: `taskrail manages hierarchical ordered task lists backed by a local
SQLite store. Mutations run through the same permission guard,
attribution, and audit pipeline the sync engine applies.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if role := record.Role(opts.Role); role != "" &&
				role != record.RoleTechnician && role != record.RoleAdmin {
				return fmt.Errorf("invalid role %q: must be %s or %s",
					opts.Role, record.RoleTechnician, record.RoleAdmin)
			}

			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to yaml config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "acting user id")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "", "acting user role (technician|admin)")

	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
