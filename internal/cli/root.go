package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // explicit config file; empty means ./dmap.yaml if present
	Caller  uint64 // authenticated caller id for call commands
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dmap CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dmap",
		Short: "dmap - group score registry",
		Long: `A member registry with group assignment and per-group scores,
stored in a double map keyed by (group, member).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default ./dmap.yaml)")
	cmd.PersistentFlags().Uint64Var(&opts.Caller, "caller", 0, "authenticated caller id")

	// Calls
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewAssignCommand(opts))
	cmd.AddCommand(NewRemoveMemberCommand(opts))
	cmd.AddCommand(NewRemoveGroupCommand(opts))
	cmd.AddCommand(NewEntryCommand(opts))

	// Queries
	cmd.AddCommand(NewMembersCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewScoreCommand(opts))
	cmd.AddCommand(NewScoresCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	// Operations
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}
