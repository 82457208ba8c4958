package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/httpapi"
)

func TestServe_CallsAndShutdown(t *testing.T) {
	cfg, _ := writeConfig(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Config: cfg},
		Listen:      "127.0.0.1:0",
		ready:       ready,
	}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- runServe(cmd, opts) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/v1/members", nil)
	require.NoError(t, err)
	req.Header.Set(httpapi.CallerHeader, "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/v1/members")
	require.NoError(t, err)
	var body struct {
		Members []uint64 `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, []uint64{1}, body.Members)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, out.String(), "Listening on "+addr)

	// State survives the restart.
	assert.Equal(t, "1\n", mustExecute(t, cfg, "members"))
}
