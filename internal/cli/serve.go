package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string // overrides server.listen

	// ready, if set, receives the bound address once the server listens.
	ready chan<- string
}

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		Long: `Start the single-writer engine and the HTTP API.

Calls arrive with the caller id in the X-Caller-ID header, set by the
authenticating proxy in front of dmap. Every call is queued and executed
one at a time; each emitted event is stored and logged.

Example:
  dmap serve
  dmap serve --listen 0.0.0.0:9000 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	a, err := openApp(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.log.Error().Err(closeErr).Msg("error closing store")
		}
	}()

	// Events are stored first, then mirrored to the log.
	a.wire(eventlog.Multi{
		Primary:   a.events,
		Followers: []eventlog.Sink{eventlog.Logger{Log: a.log}},
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := a.cfg.Server.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	router := httpapi.NewRouter(&httpapi.Server{
		Engine:   a.engine,
		Registry: a.registry,
		Entries:  a.entries,
		Events:   a.events,
		Log:      a.log,
	}, a.cfg.Server.Mode)
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	engineDone := make(chan error, 1)
	go func() { engineDone <- a.engine.Run(ctx) }()

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ln) }()

	a.log.Info().Str("addr", ln.Addr().String()).Str("backend", a.cfg.Backend).Msg("dmap server started")
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveDone:
		cancel()
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("server forced to shutdown")
	}
	a.engine.Stop()
	if err := <-engineDone; err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error().Err(err).Msg("engine error")
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}
	a.log.Info().Msg("server exited gracefully")
	return nil
}
