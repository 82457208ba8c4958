package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/config"
	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/eventlog"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		verbose bool
		want    zerolog.Level
	}{
		{"configured level", config.LogConfig{Level: "warn", Format: "console"}, false, zerolog.WarnLevel},
		{"verbose overrides", config.LogConfig{Level: "error", Format: "console"}, true, zerolog.DebugLevel},
		{"unknown level", config.LogConfig{Level: "loud"}, false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newLogger(tt.cfg, tt.verbose, &bytes.Buffer{})
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(config.LogConfig{Level: "info", Format: "json"}, false, buf)
	log.Info().Str("k", "v").Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestOpenApp_Memory(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "dmap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: memory\nlog:\n  level: error\n"), 0o644))

	a, err := openApp(t.Context(), &RootOptions{Config: cfgPath}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &eventlog.Memory{}, a.events)
	res, err := a.engine.Exec(t.Context(), engine.Call{Op: engine.OpJoin, Caller: 4})
	require.NoError(t, err)
	assert.Equal(t, "NewMember(4)", res.Event.String())
}

func TestOpenApp_ResumesCallSeq(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustExecute(t, cfg, "join", "--caller", "1")
	mustExecute(t, cfg, "join", "--caller", "2")

	a, err := openApp(t.Context(), &RootOptions{Config: cfg}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, int64(2), a.resumeAt)
	res, err := a.engine.Exec(t.Context(), engine.Call{Op: engine.OpJoin, Caller: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Call.Seq)
}

func TestOpenApp_EventSeqsFollowCalls(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustExecute(t, cfg, "join", "--caller", "1")

	a, err := openApp(t.Context(), &RootOptions{Config: cfg}, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = a.engine.Exec(t.Context(), engine.Call{Op: engine.OpJoin, Caller: 1})
	require.Error(t, err)
	res, err := a.engine.Exec(t.Context(), engine.Call{Op: engine.OpJoin, Caller: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Event.Seq)
	require.NoError(t, a.Close())

	assert.Equal(t, "1\tNewMember(1)\n3\tNewMember(2)\n", mustExecute(t, cfg, "events"))

	a, err = openApp(t.Context(), &RootOptions{Config: cfg}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, int64(3), a.resumeAt)
}
