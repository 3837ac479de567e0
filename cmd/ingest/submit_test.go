package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sandbox "docpipe.ingest/internal/adapters/handler/http"
	"docpipe.ingest/internal/adapters/queue/memory"
	memrepo "docpipe.ingest/internal/adapters/repository/memory"
	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/services"
)

func startSandbox(t *testing.T) string {
	t.Helper()
	return startSandboxWithDelay(t, time.Millisecond)
}

func startSandboxWithDelay(t *testing.T, stepDelay time.Duration) string {
	t.Helper()
	bus := memory.NewBus(0)
	srv := sandbox.NewServer(services.NewPipeline(bus, memrepo.NewRepository(), stepDelay), bus, sandbox.NewHub())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		ts.Close()
	})
	return ts.URL
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmit_Success(t *testing.T) {
	url := startSandbox(t)
	out, err := run(t, "submit", "--base-url", url, "--wait", "10s", writeFile(t, "notes.txt", "hello world"))

	require.NoError(t, err)
	assert.Contains(t, out, "parsing notes.txt (11 bytes)")
	assert.Contains(t, out, "job finished, closing log stream")
}

func TestSubmit_FailedJobExitsWithOne(t *testing.T) {
	url := startSandbox(t)
	_, err := run(t, "submit", "--base-url", url, "--wait", "10s", writeFile(t, "fail.txt", "x"))

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, exitFailed, exit.code)
}

func TestSubmit_WaitTimeoutReleasesStream(t *testing.T) {
	url := startSandboxWithDelay(t, time.Second)
	out, err := run(t, "submit", "--base-url", url, "--wait", "200ms", writeFile(t, "slow.txt", "hello"))

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, exitUnsettled, exit.code)
	assert.Contains(t, exit.msg, "stopped waiting for job")
	assert.Contains(t, out, "log stream connection closed")
	assert.NotContains(t, out, "job finished")
}

func TestSubmit_MissingFile(t *testing.T) {
	_, err := run(t, "submit", filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestSubmit_RequiresFiles(t *testing.T) {
	_, err := run(t, "submit")
	require.Error(t, err)
}

func TestHealth_PrintsSnapshot(t *testing.T) {
	url := startSandbox(t)
	out, err := run(t, "health", "--base-url", url)

	require.NoError(t, err)
	assert.Contains(t, out, `"postgres_status": "CONNECTED"`)
	assert.Contains(t, out, `"sqlite_status": "AVAILABLE"`)
}

func TestHealth_UnreachableBackend(t *testing.T) {
	out, err := run(t, "health", "--base-url", "http://127.0.0.1:1")

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.code)
	assert.Contains(t, out, `"postgres_status": "DISCONNECTED"`)
}

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor(domain.StatusSuccess))

	var exit *exitError
	require.ErrorAs(t, exitFor(domain.StatusFailed), &exit)
	assert.Equal(t, exitFailed, exit.code)
	require.ErrorAs(t, exitFor(domain.StatusIdle), &exit)
	assert.Equal(t, exitUnsettled, exit.code)
}
