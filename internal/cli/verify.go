package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stores for broken member, group and score relations",
		Long: `Scan the member set, group links and score table and report every
relation that does not hold: score rows outside the member's group, group
links for non-members, and members with more than one score row.

Exit codes:
  0 - No violations
  1 - One or more violations
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			violations, err := a.registry.CheckIntegrity(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to check integrity", err)
			}

			out := formatter(cmd, opts)
			if len(violations) == 0 {
				return out.Success(violations, "✓ No integrity violations")
			}

			if opts.Format == "json" {
				_ = out.Error("E_INTEGRITY", fmt.Sprintf("%d violation(s)", len(violations)), violations)
			} else {
				lines := make([]string, len(violations))
				for i, v := range violations {
					lines[i] = "  " + v.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %d violation(s)\n%s\n", len(violations), strings.Join(lines, "\n"))
			}
			return NewExitError(ExitFailure, "integrity violations found")
		},
	}
}
