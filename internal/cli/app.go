package cli

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/dmap/internal/config"
	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/registry"
	"github.com/roach88/dmap/internal/store"
)

// app is the wired runtime a command operates on.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	kv       kv.Store
	events   eventlog.Log
	registry *registry.Registry
	entries  *entries.Entries
	engine   *engine.Engine

	// resumeAt is the last event seq at open. Call seqs, and so event seqs,
	// continue after it.
	resumeAt int64
}

// openApp loads configuration and opens the configured backend.
//
// The sqlite backend keeps state and the event log in one database. The
// memory backend lives only as long as the process, which is what serve and
// tests want.
func openApp(ctx context.Context, opts *RootOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	log := newLogger(cfg.Log, opts.Verbose, stderr)

	a := &app{cfg: cfg, log: log}
	switch cfg.Backend {
	case config.BackendMemory:
		a.kv = kv.NewMemory()
		a.events = eventlog.NewMemory()
	default:
		st, err := store.Open(cfg.Store.Path, store.WithDriver(cfg.Store.Driver), store.WithLogger(log))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		a.kv = st
		a.events = st
	}

	a.resumeAt, err = a.events.LastSeq(ctx)
	if err != nil {
		a.kv.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read event log", err)
	}
	a.wire(a.events)
	return a, nil
}

// wire builds the registry, entries and engine on top of a.kv, sending
// events to sink.
func (a *app) wire(sink eventlog.Sink) {
	a.registry = registry.New(a.kv, sink, registry.WithLogger(a.log))
	a.entries = entries.New(a.kv, sink, a.log)
	a.engine = engine.New(a.registry, a.entries,
		engine.WithClock(engine.NewClockAt(a.resumeAt)),
		engine.WithLogger(a.log))
}

func (a *app) Close() error {
	return a.kv.Close()
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// requireCaller rejects call commands run without --caller. Account 0 is a
// valid caller, so the flag must be set explicitly.
func requireCaller(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("caller") {
		return NewExitError(ExitCommandError, "--caller is required")
	}
	return nil
}
