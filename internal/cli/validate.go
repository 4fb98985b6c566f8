package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/taskrail/internal/policy"
)

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate permission policies",
	}
	cmd.AddCommand(newPolicyValidateCommand(rootOpts))
	return cmd
}

// policyValidation holds the validate result for the JSON envelope.
type policyValidation struct {
	Valid   bool     `json:"valid"`
	Actions []string `json:"actions,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func newPolicyValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <policy-dir>",
		Short: "Compile CUE policy files without applying them",
		Long: `Compile every CUE policy file in a directory and check that actions,
roles, and creator windows are well formed. Nothing is written; a
failure here is exactly the failure startup would report.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPolicyValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = formatter.Error("not_found", fmt.Sprintf("policy directory %s not found", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("policy directory %s not found", dir))
	}

	pol, err := policy.Load(dir)
	if err != nil {
		return outputPolicyInvalid(formatter, err)
	}

	var granted []string
	for _, action := range policy.Actions() {
		if _, ok := pol.Rule(action); ok {
			granted = append(granted, string(action))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(policyValidation{Valid: true, Actions: granted})
	}
	fmt.Fprintf(formatter.Writer, "✓ policy valid (%d actions)\n", len(granted))
	formatter.VerboseLog("granted actions: %v", granted)
	return nil
}

func outputPolicyInvalid(formatter *OutputFormatter, err error) error {
	message := err.Error()
	var loadErr *policy.LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
		if loadErr.Path != "" {
			message = fmt.Sprintf("%s: %s", loadErr.Path, loadErr.Message)
		}
	}

	if formatter.Format == "json" {
		_ = formatter.Error("invalid_policy", message, policyValidation{Valid: false, Error: message})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ policy invalid")
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "  %s\n", message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("policy validation failed: %s", message))
}
