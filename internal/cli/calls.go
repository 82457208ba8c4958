package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/ir"
)

// CallOutput is the JSON payload of a successful call.
type CallOutput struct {
	Seq    int64    `json:"seq"`
	CallID string   `json:"call_id"`
	Call   string   `json:"call"`
	Event  ir.Event `json:"event"`
}

// callBuilder turns positional arguments into a call. Caller is filled in
// from --caller afterwards.
type callBuilder func(args []string) (engine.Call, error)

// newCallCommand creates a command that executes one call as --caller.
func newCallCommand(opts *RootOptions, use, short, example string, nargs int, build callBuilder) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Example:       example,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, args, build)
		},
	}
}

func runCall(cmd *cobra.Command, opts *RootOptions, args []string, build callBuilder) error {
	if err := requireCaller(cmd); err != nil {
		return err
	}
	call, err := build(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	call.Caller = ir.AccountID(opts.Caller)

	a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	out := formatter(cmd, opts)
	res, err := a.engine.Exec(cmd.Context(), call)
	if err != nil {
		return out.CallFailed(res.Call, err)
	}
	return out.Success(CallOutput{
		Seq:    res.Call.Seq,
		CallID: res.Call.CallID,
		Call:   res.Call.String(),
		Event:  res.Event,
	}, res.Event.String())
}

// NewJoinCommand creates the join command.
func NewJoinCommand(opts *RootOptions) *cobra.Command {
	return newCallCommand(opts, "join", "Join the registry as a member",
		"  dmap join --caller 1", 0,
		func([]string) (engine.Call, error) {
			return engine.Call{Op: engine.OpJoin}, nil
		})
}

// NewAssignCommand creates the assign command.
func NewAssignCommand(opts *RootOptions) *cobra.Command {
	return newCallCommand(opts, "assign <group> <score>", "Move into a group with a score",
		"  dmap assign 3 5 --caller 1", 2,
		func(args []string) (engine.Call, error) {
			group, err := parseUint32("group", args[0])
			if err != nil {
				return engine.Call{}, err
			}
			score, err := parseUint32("score", args[1])
			if err != nil {
				return engine.Call{}, err
			}
			return engine.Call{Op: engine.OpAssignToGroup, Group: ir.GroupID(group), Score: ir.Score(score)}, nil
		})
}

// NewRemoveMemberCommand creates the remove-member command.
func NewRemoveMemberCommand(opts *RootOptions) *cobra.Command {
	return newCallCommand(opts, "remove-member", "Leave the registry, dropping group link and score",
		"  dmap remove-member --caller 1", 0,
		func([]string) (engine.Call, error) {
			return engine.Call{Op: engine.OpRemoveMember}, nil
		})
}

// NewRemoveGroupCommand creates the remove-group command.
func NewRemoveGroupCommand(opts *RootOptions) *cobra.Command {
	return newCallCommand(opts, "remove-group <group>", "Clear every score in the caller's group",
		"  dmap remove-group 3 --caller 1", 1,
		func(args []string) (engine.Call, error) {
			group, err := parseUint32("group", args[0])
			if err != nil {
				return engine.Call{}, err
			}
			return engine.Call{Op: engine.OpRemoveGroupScores, Group: ir.GroupID(group)}, nil
		})
}

// NewEntryCommand creates the entry command group.
func NewEntryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Single-value entries",
	}

	cmd.AddCommand(newCallCommand(opts, "set <value>", "Store a value for the caller",
		"  dmap entry set 10 --caller 7", 1,
		func(args []string) (engine.Call, error) {
			v, err := parseUint32("value", args[0])
			return engine.Call{Op: engine.OpEntrySet, Value: v}, err
		}))
	cmd.AddCommand(newCallCommand(opts, "get <account>", "Read the value stored for an account",
		"  dmap entry get 7 --caller 8", 1,
		func(args []string) (engine.Call, error) {
			account, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return engine.Call{}, fmt.Errorf("account %q: %w", args[0], err)
			}
			return engine.Call{Op: engine.OpEntryGet, Account: ir.AccountID(account)}, nil
		}))
	cmd.AddCommand(newCallCommand(opts, "take", "Remove and return the caller's value",
		"  dmap entry take --caller 7", 0,
		func([]string) (engine.Call, error) {
			return engine.Call{Op: engine.OpEntryTake}, nil
		}))
	cmd.AddCommand(newCallCommand(opts, "increase <value>", "Add to the caller's value",
		"  dmap entry increase 5 --caller 7", 1,
		func(args []string) (engine.Call, error) {
			v, err := parseUint32("value", args[0])
			return engine.Call{Op: engine.OpEntryIncrease, Value: v}, err
		}))

	return cmd
}

func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}
	return uint32(v), nil
}
