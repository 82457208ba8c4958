package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dmap/internal/ir"
)

// MemberOutput is the JSON payload of group and score lookups.
type MemberOutput struct {
	Member ir.AccountID `json:"member"`
	Group  *ir.GroupID  `json:"group,omitempty"`
	Score  *ir.Score    `json:"score,omitempty"`
}

// NewMembersCommand creates the members command.
func NewMembersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "members",
		Short:         "List members in ascending id order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			members, err := a.registry.Members(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list members", err)
			}

			ids := make([]string, len(members))
			for i, m := range members {
				ids[i] = strconv.FormatUint(uint64(m), 10)
			}
			out := formatter(cmd, opts)
			return out.Success(members, strings.Join(ids, "\n"))
		},
	}
}

// NewGroupCommand creates the group command.
func NewGroupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "group <member>",
		Short:         "Show the group a member is assigned to",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := parseMember(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			g, ok, err := a.registry.GroupOf(cmd.Context(), member)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read group", err)
			}
			out := formatter(cmd, opts)
			if !ok {
				_ = out.Error("NO_GROUP", fmt.Sprintf("member %d has no group", member), nil)
				return NewExitError(ExitFailure, "no group")
			}
			return out.Success(MemberOutput{Member: member, Group: &g}, strconv.FormatUint(uint64(g), 10))
		},
	}
}

// NewScoreCommand creates the score command.
func NewScoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "score <member>",
		Short:         "Show a member's score in its current group",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := parseMember(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			s, ok, err := a.registry.ScoreOf(ctx, member)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read score", err)
			}
			out := formatter(cmd, opts)
			if !ok {
				_ = out.Error("NO_SCORE", fmt.Sprintf("member %d has no score", member), nil)
				return NewExitError(ExitFailure, "no score")
			}
			g, _, err := a.registry.GroupOf(ctx, member)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read group", err)
			}
			return out.Success(MemberOutput{Member: member, Group: &g, Score: &s},
				fmt.Sprintf("%d (group %d)", s, g))
		},
	}
}

// NewScoresCommand creates the scores command.
func NewScoresCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "scores <group>",
		Short:         "List every score row of a group",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := parseUint32("group", args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.registry.GroupScores(cmd.Context(), ir.GroupID(group))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list scores", err)
			}

			var text strings.Builder
			for i, row := range rows {
				if i > 0 {
					text.WriteByte('\n')
				}
				fmt.Fprintf(&text, "%d\t%d", row.Member, row.Score)
			}
			return formatter(cmd, opts).Success(rows, text.String())
		},
	}
}

func parseMember(s string) (ir.AccountID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid arguments", fmt.Errorf("member %q: %w", s, err))
	}
	return ir.AccountID(v), nil
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
}
