package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeConfig writes a dmap.yaml pointing at a fresh SQLite database and
// returns its path and the database path.
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "dmap.db")
	cfgPath = filepath.Join(dir, "dmap.yaml")
	content := fmt.Sprintf(`backend: sqlite
store:
  driver: sqlite3
  path: %s
server:
  listen: 127.0.0.1:0
  mode: test
log:
  level: error
`, dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, dbPath
}

// execute runs the root command with --config cfg and returns stdout.
func execute(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// mustExecute runs a command that must succeed.
func mustExecute(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out, err := execute(t, cfg, args...)
	require.NoError(t, err, "dmap %v: %s", args, out)
	return out
}
