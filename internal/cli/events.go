package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After int64
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the event log",
		Example: `  dmap events
  dmap events --after 10 --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.events.ReadEvents(cmd.Context(), opts.After, opts.Limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read events", err)
			}

			var text strings.Builder
			for i, ev := range events {
				if i > 0 {
					text.WriteByte('\n')
				}
				fmt.Fprintf(&text, "%d\t%s", ev.Seq, ev)
				if opts.Verbose && ev.CallID != "" {
					fmt.Fprintf(&text, "\tcall=%s", ev.CallID)
				}
			}
			return formatter(cmd, opts.RootOptions).Success(events, text.String())
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}
